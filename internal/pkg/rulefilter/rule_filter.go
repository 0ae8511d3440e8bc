// Package rulefilter is the deterministic pre-filter that runs before the
// statistical model. A returned verdict always means "not spam" and is
// authoritative: the classifier must not run for that item.
package rulefilter

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"detector/internal/pkg/config"
	"detector/internal/pkg/models"
)

// Honorific markers checked within the head of the title or description.
var honorifics = []string{"さま", "様", "さん"}

// Minimum description length, in code points, below which a posting is not
// worth running the model on.
const minBodyLength = 60

// How far into the text an honorific still counts as addressing someone.
const honorificWindow = 24

// HistoryLookup reports a user's prior submissions. Implemented by the
// record store; stubbed in tests.
type HistoryLookup interface {
	WorksByUser(ctx context.Context, userID int64) ([]models.WorkHistory, error)
}

// Item is the rule filter's view of the thing being evaluated. For the
// message domain Nickname is unused and Title may be empty.
type Item struct {
	UserID      int64
	Nickname    string
	Title       string
	Description string
}

type Filter struct {
	regexUsers     []*regexp.Regexp
	users          []string
	keywords       []string
	regexHeadWords []*regexp.Regexp
	history        HistoryLookup
}

func New(cfg *config.Config, history HistoryLookup) (*Filter, error) {
	f := &Filter{
		users:    cfg.Whitelists.Users,
		keywords: cfg.Whitelists.Keywords,
		history:  history,
	}

	for _, pattern := range cfg.Whitelists.RegexUsers {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad user whitelist pattern %q: %w", pattern, err)
		}
		f.regexUsers = append(f.regexUsers, re)
	}
	for _, pattern := range cfg.Whitelists.RegexHeadWords {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad head-word pattern %q: %w", pattern, err)
		}
		f.regexHeadWords = append(f.regexHeadWords, re)
	}

	return f, nil
}

// EvaluateProject runs all checks in order; the first match wins. A nil
// verdict means defer to the classifier.
func (f *Filter) EvaluateProject(ctx context.Context, item Item) (*models.RuleVerdict, error) {
	if v := f.userWhitelist(item); v != nil {
		return v, nil
	}
	if v := f.keywordWhitelist(item); v != nil {
		return v, nil
	}
	if v := f.lengthCheck(item); v != nil {
		return v, nil
	}
	return f.honorificHistory(ctx, item)
}

// EvaluateMessage is the message-domain variant: the user whitelist is
// skipped because thread participants are not posting under a public
// nickname context.
func (f *Filter) EvaluateMessage(ctx context.Context, item Item) (*models.RuleVerdict, error) {
	if v := f.keywordWhitelist(item); v != nil {
		return v, nil
	}
	if v := f.lengthCheck(item); v != nil {
		return v, nil
	}
	return f.honorificHistory(ctx, item)
}

func (f *Filter) userWhitelist(item Item) *models.RuleVerdict {
	for _, re := range f.regexUsers {
		if re.MatchString(item.Nickname) {
			return &models.RuleVerdict{Predict: 0, Reason: "whitelist_user"}
		}
	}
	for _, nickname := range f.users {
		if nickname == item.Nickname {
			return &models.RuleVerdict{Predict: 0, Reason: "whitelist_user"}
		}
	}
	return nil
}

func (f *Filter) keywordWhitelist(item Item) *models.RuleVerdict {
	for _, re := range f.regexHeadWords {
		if m := re.FindString(item.Description); m != "" {
			return &models.RuleVerdict{
				Predict: 0,
				Reason:  fmt.Sprintf("whitelist_keyword: %s", m),
			}
		}
	}
	for _, keyword := range f.keywords {
		if keyword != "" && containsKeyword(item.Description, keyword) {
			return &models.RuleVerdict{
				Predict: 0,
				Reason:  fmt.Sprintf("whitelist_keyword: %s", keyword),
			}
		}
	}
	return nil
}

func (f *Filter) lengthCheck(item Item) *models.RuleVerdict {
	if utf8.RuneCountInString(item.Description) < minBodyLength {
		return &models.RuleVerdict{Predict: 0, Reason: "less_than_60"}
	}
	return nil
}

// The honorific rule: an addressee marker near the head of the title or
// description, from an author with at least one prior submission and no
// recorded violations, reads as a direct reply rather than a broadcast.
func (f *Filter) honorificHistory(ctx context.Context, item Item) (*models.RuleVerdict, error) {
	if !hasHonorific(item.Title) && !hasHonorific(item.Description) {
		return nil, nil
	}

	works, err := f.history.WorksByUser(ctx, item.UserID)
	if err != nil {
		return nil, fmt.Errorf("honorific history lookup: %w", err)
	}
	if len(works) == 0 {
		return nil, nil
	}
	for _, work := range works {
		if work.ViolationStatus != 0 {
			return nil, nil
		}
	}

	return &models.RuleVerdict{Predict: 0, Reason: "honorific_suffix"}, nil
}

func hasHonorific(doc string) bool {
	head := headRunes(doc, honorificWindow)
	for _, h := range honorifics {
		if containsKeyword(head, h) {
			return true
		}
	}
	return false
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

func containsKeyword(s, keyword string) bool {
	return keyword != "" && strings.Contains(s, keyword)
}

// Package scraper handles everything URL: extracting links from message
// bodies, matching them against the redis URL blacklist, fetching pages in
// the ambiguous score band, and rebuilding the blacklist from confirmed
// spam. Most spam carries a link, so this is the second opinion when the
// classifier is unsure.
package scraper

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/cloudflare/ahocorasick"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"detector/internal/pkg/circuitbreaker"
	"detector/internal/pkg/config"
	"detector/internal/pkg/corpus"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/metrics"
)

const userAgent = "Mozilla/5.0 (compatible; spam-detector/1.0)"

// Evidence is what one scrape pass found in a message body.
type Evidence struct {
	URLs        []string `json:"urls"`
	Blacklisted []string `json:"url_blacklist"`
	Keywords    []string `json:"keywords,omitempty"`
}

// PositiveSource supplies confirmed spam documents for blacklist rebuilds.
type PositiveSource interface {
	RecentPositives(ctx context.Context) ([]corpus.Entry, error)
}

type Scraper struct {
	cfg     *config.Config
	client  *redis.Client
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker

	urlRe    *regexp.Regexp
	headRe   *regexp.Regexp
	keywords []string
	matcher  *ahocorasick.Matcher
}

func New(cfg *config.Config, client *redis.Client, breaker *circuitbreaker.CircuitBreaker) *Scraper {
	lowered := make([]string, len(cfg.BlacklistKeywords))
	for i, kw := range cfg.BlacklistKeywords {
		lowered[i] = strings.ToLower(kw)
	}

	return &Scraper{
		cfg:     cfg,
		client:  client,
		breaker: breaker,
		http: &http.Client{
			Timeout: time.Duration(cfg.ScrapeTimeoutS) * time.Second,
		},
		urlRe:    regexp.MustCompile(cfg.URLPattern),
		headRe:   regexp.MustCompile(`(?i)` + cfg.BlacklistHeadPattern),
		keywords: cfg.BlacklistKeywords,
		matcher:  ahocorasick.NewStringMatcher(lowered),
	}
}

// trusted reports whether the url belongs to a domain that spam never
// points at, such as the marketplace itself or the chat tool.
func (s *Scraper) trusted(u string) bool {
	for _, domain := range s.cfg.TrustedDomains {
		if strings.Contains(u, domain) {
			return true
		}
	}
	return false
}

// ExtractURLs pulls every untrusted link out of a message body.
func (s *Scraper) ExtractURLs(body string) []string {
	var out []string
	for _, u := range s.urlRe.FindAllString(body, -1) {
		if s.trusted(u) {
			continue
		}
		out = append(out, u)
	}
	return out
}

// parseURL canonicalizes a link. Relative paths and javascript
// pseudo-links have no host and come back empty. A trailing ')' is a
// markdown artifact and is stripped.
func parseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || u.Scheme == "" {
		return ""
	}
	u.Path = strings.TrimSuffix(u.Path, ")")
	u.Fragment = ""
	return u.String()
}

// Run extracts the links from one message body and matches them against
// the URL blacklist. No page is fetched here; the caller decides whether a
// blacklisted link is enough.
func (s *Scraper) Run(ctx context.Context, body string) (*Evidence, error) {
	urls := s.ExtractURLs(body)
	ev := &Evidence{URLs: urls, Blacklisted: []string{}}
	if len(urls) == 0 {
		return ev, nil
	}

	blacklist, err := s.client.SMembers(ctx, s.cfg.Keys.URLBlacklist).Result()
	if err != nil {
		return nil, fmt.Errorf("read url blacklist: %w", err)
	}
	known := make(map[string]bool, len(blacklist))
	for _, u := range blacklist {
		known[u] = true
	}

	for _, u := range urls {
		parsed := parseURL(u)
		if parsed == "" {
			continue
		}
		if known[parsed] {
			ev.Blacklisted = append(ev.Blacklisted, parsed)
		}
	}
	return ev, nil
}

// Fetch downloads one page body through the circuit breaker. A timeout or
// an error status yields an empty page, not an error: a page that cannot
// be inspected is treated as if it held nothing.
func (s *Scraper) Fetch(ctx context.Context, pageURL string) string {
	return s.fetch(ctx, pageURL, true)
}

func (s *Scraper) fetch(ctx context.Context, pageURL string, followRedirects bool) string {
	metrics.ScrapeRequests.Inc()
	start := time.Now()
	defer func() {
		metrics.ScrapeLatency.Observe(time.Since(start).Seconds())
	}()

	var body string
	err := s.breaker.Execute(func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		client := s.http
		if !followRedirects {
			noRedirect := *s.http
			noRedirect.CheckRedirect = func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			}
			client = &noRedirect
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			logger.Log.Warn("scrape returned error status",
				zap.Int("status", resp.StatusCode), zap.String("url", pageURL))
			return nil
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		body = string(raw)
		return nil
	})
	if err != nil {
		logger.Log.Warn("scrape fetch failed", zap.String("url", pageURL), zap.Error(err))
		return ""
	}
	return body
}

// ExtractHrefs returns the canonicalized href of every anchor in a page.
func ExtractHrefs(page string) []string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, attr := range n.Attr {
				if attr.Key != "href" {
					continue
				}
				if u := parseURL(attr.Val); u != "" {
					hrefs = append(hrefs, u)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs
}

// FindKeywords scans the text nodes of a page for blacklisted keywords,
// case-insensitively. A keyword only counts when a text node starts with
// it after trimming, so words like "online" do not trip the "LINE" entry.
func (s *Scraper) FindKeywords(page string) []string {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil
	}

	var found []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" && len(s.matcher.Match([]byte(strings.ToLower(text)))) > 0 {
				if m := s.headRe.FindString(text); m != "" {
					found = append(found, m)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return found
}

// resolveShortURL follows one goo.gl-style interstitial page and returns
// the link it points at.
func (s *Scraper) resolveShortURL(ctx context.Context, shortURL string) string {
	page := s.fetch(ctx, shortURL, false)
	if page == "" {
		return ""
	}
	hrefs := ExtractHrefs(page)
	if len(hrefs) == 0 {
		return ""
	}
	return hrefs[0]
}

// BuildBlacklist rebuilds the URL blacklist from the links found in
// confirmed spam. Shortened goo.gl links are resolved to their target
// first. The old set is replaced wholesale.
func (s *Scraper) BuildBlacklist(ctx context.Context, source PositiveSource) (int64, error) {
	entries, err := source.RecentPositives(ctx)
	if err != nil {
		return 0, err
	}

	unique := make(map[string]bool)
	for _, e := range entries {
		for _, raw := range s.ExtractURLs(e.Text) {
			if strings.Contains(raw, "goo.gl") {
				raw = s.resolveShortURL(ctx, raw)
				if raw == "" || s.trusted(raw) {
					continue
				}
			}
			if u := parseURL(raw); u != "" {
				unique[u] = true
			}
		}
	}

	if err := s.client.Del(ctx, s.cfg.Keys.URLBlacklist).Err(); err != nil {
		return 0, fmt.Errorf("reset url blacklist: %w", err)
	}
	for u := range unique {
		if err := s.client.SAdd(ctx, s.cfg.Keys.URLBlacklist, u).Err(); err != nil {
			return 0, fmt.Errorf("fill url blacklist: %w", err)
		}
	}

	count, err := s.client.SCard(ctx, s.cfg.Keys.URLBlacklist).Result()
	if err != nil {
		return 0, fmt.Errorf("count url blacklist: %w", err)
	}
	logger.Log.Info("rebuilt url blacklist", zap.Int64("urls", count))
	return count, nil
}

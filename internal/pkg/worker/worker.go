// Package worker runs the detection cycles. The message cycle pops one
// trigger id from the queue, assembles the sender side of the thread,
// scores it and applies the threshold band; the project cycle evaluates a
// single posting on demand. Failed cycles re-enqueue their id and return
// the error.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pemistahl/lingua-go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/classifier"
	"detector/internal/pkg/config"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/metrics"
	"detector/internal/pkg/models"
	"detector/internal/pkg/normalizer"
	"detector/internal/pkg/notifier"
	"detector/internal/pkg/queue"
	"detector/internal/pkg/realtime"
	"detector/internal/pkg/rulefilter"
	"detector/internal/pkg/scraper"
)

// Records is the slice of the record store the worker needs.
type Records interface {
	BoardThread(ctx context.Context, messageID int64) ([]models.ThreadMessage, error)
	WorkWithUser(ctx context.Context, workID int64) (*models.WorkItem, error)
	CreateVerdict(ctx context.Context, v *models.Verdict) (int64, error)
}

// URLChecker matches message links against the URL blacklist.
type URLChecker interface {
	Run(ctx context.Context, body string) (*scraper.Evidence, error)
}

type Worker struct {
	cfg      *config.Config
	client   *redis.Client
	queue    queue.Queue
	records  Records
	rules    *rulefilter.Filter
	norm     *normalizer.Normalizer
	clf      *classifier.Classifier
	urls     URLChecker
	notify   notifier.Notifier
	emitter  realtime.Emitter
	language lingua.LanguageDetector
}

func New(
	cfg *config.Config,
	client *redis.Client,
	q queue.Queue,
	records Records,
	rules *rulefilter.Filter,
	norm *normalizer.Normalizer,
	arts artifact.Store,
	urls URLChecker,
	notify notifier.Notifier,
	emitter realtime.Emitter,
) *Worker {
	detector := lingua.NewLanguageDetectorBuilder().
		FromLanguages(lingua.Japanese, lingua.English).
		Build()

	return &Worker{
		cfg:      cfg,
		client:   client,
		queue:    q,
		records:  records,
		rules:    rules,
		norm:     norm,
		clf:      classifier.New(arts),
		urls:     urls,
		notify:   notify,
		emitter:  emitter,
		language: detector,
	}
}

// RunCycle pops one trigger id and runs the message detection path. An
// empty queue is a quiet cycle, not an error. Any failure puts the id back
// on the queue tail and is returned to the caller.
func (w *Worker) RunCycle(ctx context.Context) error {
	id, err := w.queue.Pop(ctx)
	if errors.Is(err, queue.ErrQueueEmpty) {
		metrics.CyclesProcessed.WithLabelValues("idle").Inc()
		return nil
	}
	if err != nil {
		metrics.CyclesProcessed.WithLabelValues("failed").Inc()
		return err
	}

	if err := w.DetectMessage(ctx, id); err != nil {
		metrics.CyclesProcessed.WithLabelValues("failed").Inc()
		logger.Log.Error("message detection failed",
			zap.Int64("message_id", id), zap.Error(err))
		if qErr := w.queue.Requeue(ctx, id); qErr != nil {
			logger.Log.Error("re-enqueue failed",
				zap.Int64("message_id", id), zap.Error(qErr))
		}
		return err
	}

	metrics.CyclesProcessed.WithLabelValues("ok").Inc()
	return nil
}

// assembleItem extracts the sender side of the thread. It returns nil when
// nothing is worth scoring: the thread has no usable messages, the trigger
// was written by the recipient, or the sender wrote nothing.
func assembleItem(thread []models.ThreadMessage, triggerID int64) *models.MessageItem {
	if len(thread) == 0 {
		return nil
	}

	var item *models.MessageItem
	for _, msg := range thread {
		if msg.ID == triggerID && msg.OwnerID != msg.AuthorID {
			return nil
		}
		if msg.OwnerID != msg.AuthorID || msg.Description == "" {
			continue
		}
		if item == nil {
			item = &models.MessageItem{
				MessageID: triggerID,
				BoardID:   msg.BoardID,
				UserID:    msg.OwnerID,
				Nickname:  msg.Nickname,
			}
		}
		item.Descriptions = append(item.Descriptions, msg.Description)
	}
	return item
}

// DetectMessage runs the full message path for one trigger id: assemble,
// score, band, persist, notify, emit.
func (w *Worker) DetectMessage(ctx context.Context, messageID int64) error {
	thread, err := w.records.BoardThread(ctx, messageID)
	if err != nil {
		return err
	}
	item := assembleItem(thread, messageID)
	if item == nil {
		return nil
	}

	body := strings.Join(item.Descriptions, " ")

	// The rule layer is advisory on the message path: log what it would
	// have decided, score regardless.
	if rv, err := w.rules.EvaluateMessage(ctx, rulefilter.Item{
		UserID:      item.UserID,
		Description: body,
	}); err != nil {
		logger.Log.Warn("rule filter failed on message path", zap.Error(err))
	} else if rv != nil {
		logger.Log.Info("rule filter would clear message",
			zap.Int64("message_id", messageID), zap.String("reason", rv.Reason))
	}

	language := w.detectLanguage(body)

	pred, err := w.clf.Score(ctx, w.norm.Parse(body))
	if err != nil {
		return err
	}

	logger.Log.Info("scored message",
		zap.Int64("message_id", messageID),
		zap.Int64("board_id", item.BoardID),
		zap.Float64("score", pred.Score),
		zap.Int("predict", pred.Predict))

	// Below the band nothing happens at all.
	if pred.Score < w.cfg.ScoreThresholdMsgScrape {
		return nil
	}

	// In the ambiguous band a blacklisted link is required to proceed.
	var bizFilter *string
	if pred.Score < w.cfg.ScoreThresholdMsgSpam {
		evidence, err := w.urls.Run(ctx, strings.Join(item.Descriptions, ""))
		if err != nil {
			return err
		}
		if len(evidence.Blacklisted) == 0 {
			return nil
		}
		raw, err := json.Marshal(evidence)
		if err != nil {
			return fmt.Errorf("serialize scrape evidence: %w", err)
		}
		s := string(raw)
		bizFilter = &s
	}

	verdict := &models.Verdict{
		BoardID:   item.BoardID,
		MessageID: item.MessageID,
		Score:     strconv.FormatFloat(pred.Score, 'g', -1, 64),
		Predict:   pred.Predict,
		BizFilter: bizFilter,
	}
	if _, err := w.records.CreateVerdict(ctx, verdict); err != nil {
		return err
	}

	if pred.Score >= w.cfg.ScoreThresholdNotify {
		if err := w.notifyMessage(ctx, item, verdict.Score, pred.Vocabulary, language); err != nil {
			logger.Log.Error("message notification failed", zap.Error(err))
		}
	}

	if _, err := w.emitter.EmitSpamUpdate(ctx, realtime.SpamUpdate{
		BoardID:   item.BoardID,
		MessageID: item.MessageID,
		Predict:   pred.Predict,
	}); err != nil {
		logger.Log.Error("realtime emit failed", zap.Error(err))
	}

	return nil
}

// notifyMessage alerts the operations room once per offending author. The
// dedup set keeps a campaign of fifty messages from paging fifty times.
func (w *Worker) notifyMessage(ctx context.Context, item *models.MessageItem, score, vocabulary, language string) error {
	seen, err := w.client.SIsMember(ctx, w.cfg.Keys.DetectedUserIDs, item.UserID).Result()
	if err != nil {
		return fmt.Errorf("check notified authors: %w", err)
	}
	if seen {
		return nil
	}
	if err := w.client.SAdd(ctx, w.cfg.Keys.DetectedUserIDs, item.UserID).Err(); err != nil {
		return fmt.Errorf("record notified author: %w", err)
	}

	body := fmt.Sprintf(
		"---%s-----------------------------------\nScore: %s\nVocabulary: %s\nLanguage: %s\nBoard Url: %s\nUser Edit Url: %s",
		time.Now().Format("2006-01-02 15:04:05"),
		score,
		vocabulary,
		language,
		fmt.Sprintf(w.cfg.URLBoardAdmin, item.BoardID),
		fmt.Sprintf(w.cfg.URLUserAdmin, item.UserID),
	)
	return w.notify.Post(ctx, w.cfg.RoomIDMsg, body)
}

// detectLanguage tags the notification body so reviewers can spot campaigns
// written in an unexpected language at a glance.
func (w *Worker) detectLanguage(body string) string {
	lang, ok := w.language.DetectLanguageOf(body)
	if !ok {
		return "unknown"
	}
	return lang.String()
}

// DetectProject scores one project posting. The rule layer is
// authoritative here: a verdict means not spam and the classifier never
// runs. Project verdicts are notify-only; nothing is persisted.
func (w *Worker) DetectProject(ctx context.Context, workID int64) error {
	work, err := w.records.WorkWithUser(ctx, workID)
	if err != nil {
		return err
	}
	if work.Title == "" || work.Description == "" {
		return nil
	}

	rv, err := w.rules.EvaluateProject(ctx, rulefilter.Item{
		UserID:      work.UserID,
		Nickname:    work.Nickname,
		Title:       work.Title,
		Description: work.Description,
	})
	if err != nil {
		return err
	}
	if rv != nil {
		metrics.RuleVerdicts.WithLabelValues(rv.Reason).Inc()
		logger.Log.Info("rule filter cleared project",
			zap.Int64("work_id", workID), zap.String("reason", rv.Reason))
		return nil
	}

	doc := w.norm.Parse(work.Title + " " + work.Description)
	pred, err := w.clf.Score(ctx, doc)
	if err != nil {
		return err
	}

	logger.Log.Info("scored project",
		zap.Int64("work_id", workID),
		zap.Float64("score", pred.Score),
		zap.Int("predict", pred.Predict))

	if pred.Score < w.cfg.ScoreThresholdWorks {
		return nil
	}

	body := fmt.Sprintf(
		"---%s-----------------------------------\nTitle: %s\nScore: %s\nVocabulary: %s\nLanguage: %s\nWork Url: %s\nUser Url: %s",
		work.Created.Format("2006-01-02 15:04:05"),
		headRunes(work.Title, 30),
		strconv.FormatFloat(pred.Score, 'g', -1, 64),
		pred.Vocabulary,
		w.detectLanguage(work.Title+" "+work.Description),
		fmt.Sprintf(w.cfg.URLWorkDetail, work.ID),
		fmt.Sprintf(w.cfg.URLUserAdmin, work.UserID),
	)
	return w.notify.Post(ctx, w.cfg.RoomIDWorks, body)
}

func headRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		runes = runes[:n]
	}
	return string(runes)
}

package worker

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gonum.org/v1/gonum/mat"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/config"
	"detector/internal/pkg/ml"
	"detector/internal/pkg/models"
	"detector/internal/pkg/normalizer"
	"detector/internal/pkg/queue"
	"detector/internal/pkg/realtime"
	"detector/internal/pkg/rulefilter"
	"detector/internal/pkg/scraper"
)

type fakeQueue struct {
	ids      []int64
	requeued []int64
}

func (q *fakeQueue) Push(ctx context.Context, id int64) error { return nil }

func (q *fakeQueue) Pop(ctx context.Context) (int64, error) {
	if len(q.ids) == 0 {
		return 0, queue.ErrQueueEmpty
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, nil
}

func (q *fakeQueue) Requeue(ctx context.Context, id int64) error {
	q.requeued = append(q.requeued, id)
	return nil
}

func (q *fakeQueue) Len(ctx context.Context) (int64, error) { return int64(len(q.ids)), nil }

type fakeRecords struct {
	thread    []models.ThreadMessage
	threadErr error
	work      *models.WorkItem
	verdicts  []*models.Verdict
}

func (r *fakeRecords) BoardThread(ctx context.Context, messageID int64) ([]models.ThreadMessage, error) {
	return r.thread, r.threadErr
}

func (r *fakeRecords) WorkWithUser(ctx context.Context, workID int64) (*models.WorkItem, error) {
	return r.work, nil
}

func (r *fakeRecords) CreateVerdict(ctx context.Context, v *models.Verdict) (int64, error) {
	r.verdicts = append(r.verdicts, v)
	return int64(len(r.verdicts)), nil
}

func (r *fakeRecords) WorksByUser(ctx context.Context, userID int64) ([]models.WorkHistory, error) {
	return nil, nil
}

// stubModel scores every document with a fixed value.
type stubModel struct {
	score   float64
	predict int
}

func (m *stubModel) Fit(x [][]float64, y []int) error     { return nil }
func (m *stubModel) Predict(x []float64) int              { return m.predict }
func (m *stubModel) DecisionFunction(x []float64) float64 { return m.score }

type fakeArtifacts struct {
	bundle    *artifact.Bundle
	loadCalls int
}

func (a *fakeArtifacts) Publish(ctx context.Context, vect *ml.Vectorizer, reducer *ml.Reducer, model ml.Model) (string, error) {
	return "", nil
}

func (a *fakeArtifacts) Current(ctx context.Context) (string, error) { return "v1", nil }

func (a *fakeArtifacts) Load(ctx context.Context, version string) (*artifact.Bundle, error) {
	a.loadCalls++
	return a.bundle, nil
}

type fakeURLChecker struct {
	evidence scraper.Evidence
	calls    int
}

func (u *fakeURLChecker) Run(ctx context.Context, body string) (*scraper.Evidence, error) {
	u.calls++
	ev := u.evidence
	return &ev, nil
}

type fakeNotifier struct {
	rooms  []string
	bodies []string
}

func (n *fakeNotifier) Post(ctx context.Context, roomID, body string) error {
	n.rooms = append(n.rooms, roomID)
	n.bodies = append(n.bodies, body)
	return nil
}

type fakeEmitter struct {
	updates []realtime.SpamUpdate
}

func (e *fakeEmitter) EmitSpamUpdate(ctx context.Context, u realtime.SpamUpdate) (int64, error) {
	e.updates = append(e.updates, u)
	return 1, nil
}

type fixture struct {
	worker    *Worker
	queue     *fakeQueue
	records   *fakeRecords
	artifacts *fakeArtifacts
	urls      *fakeURLChecker
	notifier  *fakeNotifier
	emitter   *fakeEmitter
}

func newFixture(t *testing.T, score float64, predict int) *fixture {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	norm, err := normalizer.New(cfg)
	if err != nil {
		t.Fatalf("failed to build normalizer: %v", err)
	}

	f := &fixture{
		queue:    &fakeQueue{},
		records:  &fakeRecords{},
		urls:     &fakeURLChecker{},
		notifier: &fakeNotifier{},
		emitter:  &fakeEmitter{},
	}
	f.artifacts = &fakeArtifacts{bundle: &artifact.Bundle{
		Version:    "v1",
		Vectorizer: &ml.Vectorizer{Vocabulary: map[string]int{}, IDF: []float64{}},
		Reducer:    &ml.Reducer{K: 1, Dim: 1, Components: mat.NewDense(1, 1, []float64{1})},
		Model:      &stubModel{score: score, predict: predict},
	}}

	rules, err := rulefilter.New(cfg, f.records)
	if err != nil {
		t.Fatalf("failed to build rule filter: %v", err)
	}

	f.worker = New(cfg, client, f.queue, f.records, rules, norm,
		f.artifacts, f.urls, f.notifier, f.emitter)
	return f
}

// A spam-looking thread: the board owner wrote two messages, the client
// one, and the trigger is the owner's latest.
func spamThread() []models.ThreadMessage {
	return []models.ThreadMessage{
		{ID: 100, BoardID: 3204962, OwnerID: 1538229, AuthorID: 1538229,
			Nickname: "roger3gogo", Description: "在宅で稼げる副業を紹介します"},
		{ID: 101, BoardID: 3204962, OwnerID: 1538229, AuthorID: 99,
			Nickname: "client99", Description: "興味ないです"},
		{ID: 102, BoardID: 3204962, OwnerID: 1538229, AuthorID: 1538229,
			Nickname: "roger3gogo", Description: "登録は無料です"},
	}
}

func TestRunCycleEmptyQueue(t *testing.T) {
	f := newFixture(t, 0, 0)
	if err := f.worker.RunCycle(context.Background()); err != nil {
		t.Fatalf("empty queue should be quiet, got %v", err)
	}
	if f.artifacts.loadCalls != 0 {
		t.Error("classifier ran on an empty queue")
	}
}

func TestRunCycleRequeuesOnFailure(t *testing.T) {
	f := newFixture(t, 0, 0)
	f.queue.ids = []int64{102}
	f.records.threadErr = errors.New("db down")

	if err := f.worker.RunCycle(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if len(f.queue.requeued) != 1 || f.queue.requeued[0] != 102 {
		t.Errorf("requeued = %v, want [102]", f.queue.requeued)
	}
}

func TestRecipientTriggerIsSkipped(t *testing.T) {
	f := newFixture(t, 5, 1)
	f.records.thread = spamThread()

	// Trigger 101 was written by the client, not the owner.
	if err := f.worker.DetectMessage(context.Background(), 101); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.artifacts.loadCalls != 0 {
		t.Error("classifier ran for a recipient-authored trigger")
	}
	if len(f.records.verdicts) != 0 {
		t.Errorf("verdicts = %v, want none", f.records.verdicts)
	}
}

func TestEmptyThreadIsSkipped(t *testing.T) {
	f := newFixture(t, 5, 1)
	f.records.thread = nil

	if err := f.worker.DetectMessage(context.Background(), 7); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if f.artifacts.loadCalls != 0 {
		t.Error("classifier ran for an empty thread")
	}
}

func TestHighScorePersistsNotifiesEmits(t *testing.T) {
	f := newFixture(t, 2.5, 1)
	f.records.thread = spamThread()

	if err := f.worker.DetectMessage(context.Background(), 102); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if len(f.records.verdicts) != 1 {
		t.Fatalf("verdicts = %d, want 1", len(f.records.verdicts))
	}
	v := f.records.verdicts[0]
	if v.BoardID != 3204962 || v.MessageID != 102 || v.Predict != 1 {
		t.Errorf("verdict = %+v", v)
	}
	if v.Score != "2.5" {
		t.Errorf("score = %q, want \"2.5\"", v.Score)
	}
	if v.BizFilter != nil {
		t.Errorf("biz_filter = %v, want nil above the scrape band", *v.BizFilter)
	}
	if f.urls.calls != 0 {
		t.Error("scraper ran above the ambiguous band")
	}

	if len(f.notifier.bodies) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.bodies))
	}
	if !strings.Contains(f.notifier.bodies[0], "Score: 2.5") {
		t.Errorf("notification body %q is missing the score", f.notifier.bodies[0])
	}
	if !strings.Contains(f.notifier.bodies[0], "Language: Japanese") {
		t.Errorf("notification body %q is missing the detected language", f.notifier.bodies[0])
	}

	if len(f.emitter.updates) != 1 {
		t.Fatalf("emits = %d, want 1", len(f.emitter.updates))
	}
	u := f.emitter.updates[0]
	if u.BoardID != 3204962 || u.MessageID != 102 || u.Predict != 1 {
		t.Errorf("update = %+v", u)
	}
	if u.FeedbackFromAdmin != 0 || u.FeedbackFromUser != 0 {
		t.Errorf("fresh verdict carries feedback: %+v", u)
	}
}

func TestNotificationDedupPerAuthor(t *testing.T) {
	f := newFixture(t, 2.5, 1)
	f.records.thread = spamThread()
	ctx := context.Background()

	if err := f.worker.DetectMessage(ctx, 102); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if err := f.worker.DetectMessage(ctx, 100); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if len(f.records.verdicts) != 2 {
		t.Errorf("verdicts = %d, want 2 (dedup is notification-only)", len(f.records.verdicts))
	}
	if len(f.notifier.bodies) != 1 {
		t.Errorf("notifications = %d, want 1 (same author)", len(f.notifier.bodies))
	}
}

func TestBelowBandDoesNothing(t *testing.T) {
	f := newFixture(t, -1.2686, 0)
	f.records.thread = spamThread()

	if err := f.worker.DetectMessage(context.Background(), 102); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(f.records.verdicts) != 0 || len(f.notifier.bodies) != 0 || len(f.emitter.updates) != 0 {
		t.Error("negative score should end the cycle quietly")
	}
	if f.urls.calls != 0 {
		t.Error("scraper ran below the band")
	}
}

func TestAmbiguousBandWithoutBlacklistStops(t *testing.T) {
	f := newFixture(t, 1.5, 0)
	f.records.thread = spamThread()

	if err := f.worker.DetectMessage(context.Background(), 102); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if f.urls.calls != 1 {
		t.Errorf("scraper calls = %d, want 1", f.urls.calls)
	}
	if len(f.records.verdicts) != 0 {
		t.Error("no verdict expected without blacklisted urls")
	}
}

func TestAmbiguousBandWithBlacklistPersists(t *testing.T) {
	f := newFixture(t, 1.5, 0)
	f.records.thread = spamThread()
	f.urls.evidence = scraper.Evidence{
		URLs:        []string{"http://bad.example.com/join"},
		Blacklisted: []string{"http://bad.example.com/join"},
	}

	if err := f.worker.DetectMessage(context.Background(), 102); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	if len(f.records.verdicts) != 1 {
		t.Fatalf("verdicts = %d, want 1", len(f.records.verdicts))
	}
	v := f.records.verdicts[0]
	if v.BizFilter == nil || !strings.Contains(*v.BizFilter, "bad.example.com") {
		t.Errorf("biz_filter = %v, want scrape evidence", v.BizFilter)
	}
}

func TestDetectProjectWhitelistedUserSkipsClassifier(t *testing.T) {
	f := newFixture(t, 5, 1)
	f.records.work = &models.WorkItem{
		ID:          77,
		Title:       "ロゴ作成",
		Description: strings.Repeat("会社のロゴを作成してください。", 10),
		UserID:      12,
		Nickname:    "webciel",
	}

	if err := f.worker.DetectProject(context.Background(), 77); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if f.artifacts.loadCalls != 0 {
		t.Error("classifier ran for a whitelisted user")
	}
	if len(f.notifier.bodies) != 0 {
		t.Error("no notification expected")
	}
}

func TestDetectProjectHighScoreNotifies(t *testing.T) {
	f := newFixture(t, 3.5, 1)
	f.records.work = &models.WorkItem{
		ID:          77,
		Title:       "簡単なお仕事です",
		Description: strings.Repeat("登録するだけで高収入を得られます。", 10),
		UserID:      12,
		Nickname:    "spammer12",
	}

	if err := f.worker.DetectProject(context.Background(), 77); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(f.notifier.rooms) != 1 {
		t.Fatalf("notifications = %d, want 1", len(f.notifier.rooms))
	}
	if f.notifier.rooms[0] != "83551854" {
		t.Errorf("room = %q, want the works room", f.notifier.rooms[0])
	}
	if !strings.Contains(f.notifier.bodies[0], "Title: 簡単なお仕事です") {
		t.Errorf("body %q is missing the title", f.notifier.bodies[0])
	}
	if !strings.Contains(f.notifier.bodies[0], "Language: Japanese") {
		t.Errorf("body %q is missing the detected language", f.notifier.bodies[0])
	}
}

func TestDetectProjectLowScoreQuiet(t *testing.T) {
	f := newFixture(t, 0.5, 0)
	f.records.work = &models.WorkItem{
		ID:          77,
		Title:       "ウェブ開発",
		Description: strings.Repeat("既存サイトの改修をお願いします。", 10),
		UserID:      12,
		Nickname:    "legituser",
	}

	if err := f.worker.DetectProject(context.Background(), 77); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	if len(f.notifier.bodies) != 0 {
		t.Error("no notification expected below the works threshold")
	}
}

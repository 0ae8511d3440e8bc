package trainer

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/config"
	"detector/internal/pkg/corpus"
)

// Spam documents share one vocabulary, ham documents another, and every
// document carries a unique filler token that the frequency bounds drop.
func seedCorpora(t *testing.T, store corpus.Store, posKey, negKey string, positives, negatives int) {
	t.Helper()
	ctx := context.Background()

	for i := 0; i < positives; i++ {
		text := fmt.Sprintf("副業 収入 登録 紹介 無料 f%d", i)
		if err := store.Set(ctx, posKey, corpus.Entry{ID: int64(i + 1), Text: text}); err != nil {
			t.Fatalf("seed positive: %v", err)
		}
	}
	for i := 0; i < negatives; i++ {
		text := fmt.Sprintf("納品 修正 確認 請求 契約 g%d", i)
		if err := store.Set(ctx, negKey, corpus.Entry{ID: int64(1000 + i), Text: text}); err != nil {
			t.Fatalf("seed negative: %v", err)
		}
	}
}

func newTestTrainer(t *testing.T) (*Trainer, *config.Config, corpus.Store, artifact.Store) {
	t.Helper()
	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	corpusStore := corpus.NewStore(client)
	artifactStore := artifact.NewStore(client, cfg.Keys.ArtifactMsg)
	return New(cfg, corpusStore, artifactStore), cfg, corpusStore, artifactStore
}

func TestTrainPublishesWorkingModel(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, artifactStore := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetMsgPos, cfg.Keys.DatasetMsgNeg, 12, 12)

	version, err := tr.Train(ctx, MessageDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}

	bundle, err := artifactStore.Load(ctx, version)
	if err != nil {
		t.Fatalf("published artifact not loadable: %v", err)
	}

	spam := bundle.Reducer.Transform(bundle.Vectorizer.Transform("副業 収入 登録 紹介 無料"))
	ham := bundle.Reducer.Transform(bundle.Vectorizer.Transform("納品 修正 確認 請求 契約"))

	if bundle.Model.Predict(spam) != 1 {
		t.Error("spam document not classified as spam")
	}
	if bundle.Model.Predict(ham) != 0 {
		t.Error("ham document classified as spam")
	}
	if bundle.Model.DecisionFunction(spam) <= bundle.Model.DecisionFunction(ham) {
		t.Error("spam should score higher than ham")
	}
}

func TestTrainRefusesTinyCorpus(t *testing.T) {
	tr, cfg, corpusStore, _ := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetMsgPos, cfg.Keys.DatasetMsgNeg, 3, 3)

	if _, err := tr.Train(context.Background(), MessageDatasets(cfg.Keys)); err == nil {
		t.Error("expected error for undersized dataset")
	}
}

func TestTrainProjectDatasets(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, artifactStore := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetPjtMlmPos, cfg.Keys.DatasetPjtMlmNeg, 12, 12)

	version, err := tr.Train(ctx, ProjectDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("train failed: %v", err)
	}
	if _, err := artifactStore.Load(ctx, version); err != nil {
		t.Fatalf("published artifact not loadable: %v", err)
	}
}

func TestLoadDatasetBalancesClasses(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, _ := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetMsgPos, cfg.Keys.DatasetMsgNeg, 12, 40)

	docs, labels, err := tr.loadDataset(ctx, MessageDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if len(docs) != 24 {
		t.Errorf("got %d documents, want 24 (negatives truncated)", len(docs))
	}

	var pos int
	for _, y := range labels {
		pos += y
	}
	if pos != 12 || len(labels)-pos != 12 {
		t.Errorf("class balance broken: %d positive of %d", pos, len(labels))
	}
}

func TestLoadDatasetMergesExtraPositives(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, _ := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetMsgPos, cfg.Keys.DatasetMsgNeg, 10, 40)

	for i := 0; i < 4; i++ {
		text := fmt.Sprintf("案件 勧誘 外部 誘導 連絡 e%d", i)
		entry := corpus.Entry{ID: int64(2000 + i), Text: text}
		if err := corpusStore.Set(ctx, cfg.Keys.DatasetPjtMlmPos, entry); err != nil {
			t.Fatalf("seed extra positive: %v", err)
		}
	}

	docs, labels, err := tr.loadDataset(ctx, MessageDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	var pos int
	for _, y := range labels {
		pos += y
	}
	if pos != 14 {
		t.Errorf("positives = %d, want 10 message + 4 work", pos)
	}
	// Negatives truncate to the combined positive count.
	if len(labels)-pos != 14 {
		t.Errorf("negatives = %d, want 14", len(labels)-pos)
	}

	found := false
	for i, doc := range docs {
		if labels[i] == 1 && doc == "案件 勧誘 外部 誘導 連絡 e0" {
			found = true
		}
	}
	if !found {
		t.Error("extra positive missing from the positive class")
	}
}

func TestLoadDatasetTakesNewestNegatives(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, _ := newTestTrainer(t)
	seedCorpora(t, corpusStore, cfg.Keys.DatasetMsgPos, cfg.Keys.DatasetMsgNeg, 10, 30)

	docs, labels, err := tr.loadDataset(ctx, MessageDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}

	// Negative ids run 1000..1029; only the newest ten (g20..g29) survive.
	for i, doc := range docs {
		if labels[i] == 0 && doc == "納品 修正 確認 請求 契約 g0" {
			t.Error("oldest negative survived truncation")
		}
	}
}

func TestGridSearchUnsupportedKind(t *testing.T) {
	tr, cfg, _, _ := newTestTrainer(t)
	_, err := tr.GridSearch(context.Background(), "xgboost", MessageDatasets(cfg.Keys))
	if !errors.Is(err, ErrUnsupportedKind) {
		t.Errorf("got %v, want ErrUnsupportedKind", err)
	}
}

// For the grid search the corpus is split 75/25 before the pipeline fit,
// so each class alternates between two vocabulary variants to keep every
// term inside the document-frequency bounds of the training split.
func seedVariantCorpora(t *testing.T, cfg *config.Config, store corpus.Store) {
	t.Helper()
	ctx := context.Background()

	spam := []string{"副業 収入 登録 紹介 無料", "儲かる 投資 案内 友達 招待"}
	ham := []string{"納品 修正 確認 請求 契約", "翻訳 原稿 締切 相談 検収"}

	for i := 0; i < 20; i++ {
		text := fmt.Sprintf("%s f%d", spam[i%2], i)
		if err := store.Set(ctx, cfg.Keys.DatasetMsgPos, corpus.Entry{ID: int64(i + 1), Text: text}); err != nil {
			t.Fatalf("seed positive: %v", err)
		}
		text = fmt.Sprintf("%s g%d", ham[i%2], i)
		if err := store.Set(ctx, cfg.Keys.DatasetMsgNeg, corpus.Entry{ID: int64(1000 + i), Text: text}); err != nil {
			t.Fatalf("seed negative: %v", err)
		}
	}
}

func TestGridSearchPA(t *testing.T) {
	ctx := context.Background()
	tr, cfg, corpusStore, _ := newTestTrainer(t)
	seedVariantCorpora(t, cfg, corpusStore)

	report, err := tr.GridSearch(ctx, "pa", MessageDatasets(cfg.Keys))
	if err != nil {
		t.Fatalf("grid search failed: %v", err)
	}
	if report.Kind != "pa" {
		t.Errorf("kind = %q, want pa", report.Kind)
	}
	if report.BestParams["C"] != 0.1 {
		t.Errorf("best params = %v, want C=0.1", report.BestParams)
	}
	if report.Accuracy < 0.9 {
		t.Errorf("holdout accuracy %v on separable data", report.Accuracy)
	}

	total := 0
	for i := 0; i < 2; i++ {
		for j := 0; j < 2; j++ {
			total += report.Confusion[i][j]
		}
	}
	if total != 10 {
		t.Errorf("confusion matrix covers %d samples, want 10", total)
	}
}

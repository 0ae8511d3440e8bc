// Package trainer fits the detection pipeline from the curated corpora and
// publishes the result through the artifact store. Production training uses
// the pinned passive-aggressive configuration; the grid search exists to
// re-validate that choice offline when the corpora shift.
package trainer

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/config"
	"detector/internal/pkg/corpus"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/ml"
)

var ErrUnsupportedKind = errors.New("unsupported model kind")

// Datasets with fewer positive samples than this are refused. A fit over a
// tiny corpus publishes a model that flags everything or nothing.
const minPositives = 10

const cvFolds = 5

type Trainer struct {
	cfg       *config.Config
	corpus    corpus.Store
	artifacts artifact.Store
}

func New(cfg *config.Config, store corpus.Store, artifacts artifact.Store) *Trainer {
	return &Trainer{cfg: cfg, corpus: store, artifacts: artifacts}
}

// Datasets names the corpora one fit draws from. ExtraPositiveKey is
// optional: its entries are folded into the positive side before the
// negatives are truncated.
type Datasets struct {
	PositiveKey      string
	NegativeKey      string
	ExtraPositiveKey string
}

// MessageDatasets is the production message-domain selection. Confirmed
// work spam supplements the message positives; it measurably improves
// holdout accuracy, while the reverse direction does not.
func MessageDatasets(keys config.Keys) Datasets {
	return Datasets{
		PositiveKey:      keys.DatasetMsgPos,
		NegativeKey:      keys.DatasetMsgNeg,
		ExtraPositiveKey: keys.DatasetPjtMlmPos,
	}
}

// ProjectDatasets is the corpus pair for the project posting model.
func ProjectDatasets(keys config.Keys) Datasets {
	return Datasets{
		PositiveKey: keys.DatasetPjtMlmPos,
		NegativeKey: keys.DatasetPjtMlmNeg,
	}
}

// ProjectViolationDatasets is the corpus pair for the terms-violation model.
func ProjectViolationDatasets(keys config.Keys) Datasets {
	return Datasets{
		PositiveKey: keys.DatasetPjtVlPos,
		NegativeKey: keys.DatasetPjtVlNeg,
	}
}

// loadDataset assembles documents and labels from one dataset selection.
// All sides are taken newest first; extra positives are appended to the
// positive class, and the negatives are truncated to the combined positive
// count so the classes stay balanced.
func (t *Trainer) loadDataset(ctx context.Context, ds Datasets) ([]string, []int, error) {
	pos, err := t.corpus.EntriesDesc(ctx, ds.PositiveKey)
	if err != nil {
		return nil, nil, err
	}
	if ds.ExtraPositiveKey != "" {
		extra, err := t.corpus.EntriesDesc(ctx, ds.ExtraPositiveKey)
		if err != nil {
			return nil, nil, err
		}
		pos = append(pos, extra...)
	}
	neg, err := t.corpus.EntriesDesc(ctx, ds.NegativeKey)
	if err != nil {
		return nil, nil, err
	}

	if len(pos) < minPositives {
		return nil, nil, fmt.Errorf("dataset %s: %d positives, need at least %d", ds.PositiveKey, len(pos), minPositives)
	}
	if len(neg) > len(pos) {
		neg = neg[:len(pos)]
	}

	docs := make([]string, 0, len(pos)+len(neg))
	labels := make([]int, 0, len(pos)+len(neg))
	for _, e := range pos {
		docs = append(docs, e.Text)
		labels = append(labels, 1)
	}
	for _, e := range neg {
		docs = append(docs, e.Text)
		labels = append(labels, 0)
	}
	return docs, labels, nil
}

// fitPipeline fits the vectorizer and reducer on docs and returns the
// reduced design matrix.
func fitPipeline(docs []string, stopWords []string) (*ml.Vectorizer, *ml.Reducer, [][]float64, error) {
	vect := ml.NewVectorizer(stopWords)
	if err := vect.Fit(docs); err != nil {
		return nil, nil, nil, err
	}

	rows := make([]ml.SparseVector, len(docs))
	for i, doc := range docs {
		rows[i] = vect.Transform(doc)
	}

	reducer := ml.NewReducer(ml.DefaultComponents)
	if err := reducer.Fit(rows); err != nil {
		return nil, nil, nil, err
	}
	return vect, reducer, reducer.TransformAll(rows), nil
}

// Train fits the pipeline on one dataset selection with the pinned model
// configuration and publishes it as the new current artifact.
func (t *Trainer) Train(ctx context.Context, ds Datasets) (string, error) {
	docs, labels, err := t.loadDataset(ctx, ds)
	if err != nil {
		return "", err
	}

	vect, reducer, x, err := fitPipeline(docs, t.cfg.StopWords)
	if err != nil {
		return "", err
	}

	model := ml.NewPassiveAggressive()
	if err := model.Fit(x, labels); err != nil {
		return "", err
	}

	version, err := t.artifacts.Publish(ctx, vect, reducer, model)
	if err != nil {
		return "", err
	}

	logger.Log.Info("trained spam model",
		zap.String("version", version),
		zap.String("dataset", ds.PositiveKey),
		zap.Int("samples", len(docs)),
		zap.Int("vocabulary", len(vect.Vocabulary)))
	return version, nil
}

// Package classifier scores normalized, segmented documents with the
// currently published artifact generation.
package classifier

import (
	"context"
	"strings"
	"time"

	"detector/internal/pkg/artifact"
	"detector/internal/pkg/metrics"
	"detector/internal/pkg/models"
)

// Terms shown in the human-readable explanation of a prediction.
const vocabularyTerms = 18

type Classifier struct {
	arts artifact.Store
}

func New(arts artifact.Store) *Classifier {
	return &Classifier{arts: arts}
}

// Score runs one document through the fitted pipeline. The artifact version
// is pinned for the whole call so a concurrent publish cannot mix
// generations. An empty document scores like any other; the zero vector
// lands wherever the model's bias puts it.
func (c *Classifier) Score(ctx context.Context, doc string) (*models.Prediction, error) {
	start := time.Now()
	defer func() {
		metrics.ClassifierLatency.Observe(time.Since(start).Seconds())
	}()

	version, err := c.arts.Current(ctx)
	if err != nil {
		return nil, err
	}
	bundle, err := c.arts.Load(ctx, version)
	if err != nil {
		return nil, err
	}

	vec := bundle.Vectorizer.Transform(doc)
	reduced := bundle.Reducer.Transform(vec)

	pred := &models.Prediction{
		Predict:    bundle.Model.Predict(reduced),
		Score:      bundle.Model.DecisionFunction(reduced),
		Vocabulary: strings.Join(bundle.Vectorizer.TopTerms(vec, vocabularyTerms), " "),
	}
	metrics.ClassifierScore.Observe(pred.Score)
	return pred, nil
}

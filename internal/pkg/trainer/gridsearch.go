package trainer

import (
	"context"
	"fmt"
	"math/rand"

	"go.uber.org/zap"

	"detector/internal/pkg/logger"
	"detector/internal/pkg/ml"
)

// Report is the outcome of one grid search: the best hyperparameters by
// cross-validated accuracy and the held-out evaluation of that candidate.
type Report struct {
	Kind       string
	BestParams map[string]float64
	BestScore  float64

	// Held-out metrics, indexed by class label.
	Accuracy  float64
	Confusion [2][2]int
	Precision [2]float64
	Recall    [2]float64
	F1        [2]float64
}

type candidate struct {
	params map[string]float64
	build  func() ml.Model
}

func candidatesFor(kind string) ([]candidate, error) {
	logRange := []float64{1e-5, 1e-4, 1e-3, 1e-2, 1e-1, 1, 10, 100}

	switch kind {
	case "pa":
		return []candidate{{
			params: map[string]float64{"C": 0.1},
			build:  func() ml.Model { return ml.NewPassiveAggressive() },
		}}, nil

	case "sgd":
		var cands []candidate
		for _, alpha := range logRange {
			alpha := alpha
			cands = append(cands, candidate{
				params: map[string]float64{"alpha": alpha},
				build:  func() ml.Model { return ml.NewSGDClassifier(alpha) },
			})
		}
		return cands, nil

	case "svc":
		var cands []candidate
		for _, c := range logRange {
			c := c
			cands = append(cands, candidate{
				params: map[string]float64{"C": c},
				build:  func() ml.Model { return ml.NewLinearSVM(c) },
			})
		}
		return cands, nil

	case "rf":
		var cands []candidate
		for _, n := range []int{10, 100, 1000} {
			for _, depth := range []int{10, 40, 60, 80, 100} {
				n, depth := n, depth
				cands = append(cands, candidate{
					params: map[string]float64{"n_estimators": float64(n), "max_depth": float64(depth)},
					build:  func() ml.Model { return ml.NewRandomForest(n, depth) },
				})
			}
		}
		return cands, nil
	}

	return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
}

// GridSearch evaluates every hyperparameter candidate of one model kind by
// five-fold cross validation on a 75% training split, then reports held-out
// metrics for the winner. Nothing is published; the report is advisory.
func (t *Trainer) GridSearch(ctx context.Context, kind string, ds Datasets) (*Report, error) {
	cands, err := candidatesFor(kind)
	if err != nil {
		return nil, err
	}

	docs, labels, err := t.loadDataset(ctx, ds)
	if err != nil {
		return nil, err
	}

	rng := rand.New(rand.NewSource(0))
	perm := rng.Perm(len(docs))
	split := len(docs) * 3 / 4

	trainDocs := make([]string, 0, split)
	trainY := make([]int, 0, split)
	testDocs := make([]string, 0, len(docs)-split)
	testY := make([]int, 0, len(docs)-split)
	for i, p := range perm {
		if i < split {
			trainDocs = append(trainDocs, docs[p])
			trainY = append(trainY, labels[p])
		} else {
			testDocs = append(testDocs, docs[p])
			testY = append(testY, labels[p])
		}
	}

	// The feature pipeline is fitted on the training split only, so the
	// held-out metrics see no training data.
	vect, reducer, trainX, err := fitPipeline(trainDocs, t.cfg.StopWords)
	if err != nil {
		return nil, err
	}

	report := &Report{Kind: kind, BestScore: -1}
	for _, cand := range cands {
		score, err := crossValidate(cand, trainX, trainY)
		if err != nil {
			return nil, err
		}
		if score > report.BestScore {
			report.BestScore = score
			report.BestParams = cand.params
			report.evaluate(cand, trainX, trainY, testDocs, testY, vect, reducer)
		}
	}

	logger.Log.Info("grid search finished",
		zap.String("kind", kind),
		zap.Float64("cv_accuracy", report.BestScore),
		zap.Float64("holdout_accuracy", report.Accuracy),
		zap.Any("params", report.BestParams))
	return report, nil
}

// crossValidate returns the mean k-fold accuracy of one candidate.
func crossValidate(cand candidate, x [][]float64, y []int) (float64, error) {
	n := len(x)
	var total float64
	for fold := 0; fold < cvFolds; fold++ {
		lo := n * fold / cvFolds
		hi := n * (fold + 1) / cvFolds

		var fx [][]float64
		var fy []int
		for i := 0; i < n; i++ {
			if i >= lo && i < hi {
				continue
			}
			fx = append(fx, x[i])
			fy = append(fy, y[i])
		}

		model := cand.build()
		if err := model.Fit(fx, fy); err != nil {
			return 0, err
		}

		correct := 0
		for i := lo; i < hi; i++ {
			if model.Predict(x[i]) == y[i] {
				correct++
			}
		}
		if hi > lo {
			total += float64(correct) / float64(hi-lo)
		}
	}
	return total / cvFolds, nil
}

// evaluate refits the candidate on the full training split and fills in the
// held-out confusion matrix and per-class metrics.
func (r *Report) evaluate(cand candidate, trainX [][]float64, trainY []int, testDocs []string, testY []int, vect *ml.Vectorizer, reducer *ml.Reducer) {
	model := cand.build()
	if err := model.Fit(trainX, trainY); err != nil {
		return
	}

	r.Confusion = [2][2]int{}
	correct := 0
	for i, doc := range testDocs {
		pred := model.Predict(reducer.Transform(vect.Transform(doc)))
		r.Confusion[testY[i]][pred]++
		if pred == testY[i] {
			correct++
		}
	}
	if len(testY) > 0 {
		r.Accuracy = float64(correct) / float64(len(testY))
	}

	for class := 0; class < 2; class++ {
		tp := r.Confusion[class][class]
		predicted := r.Confusion[0][class] + r.Confusion[1][class]
		actual := r.Confusion[class][0] + r.Confusion[class][1]

		if predicted > 0 {
			r.Precision[class] = float64(tp) / float64(predicted)
		}
		if actual > 0 {
			r.Recall[class] = float64(tp) / float64(actual)
		}
		if r.Precision[class]+r.Recall[class] > 0 {
			r.F1[class] = 2 * r.Precision[class] * r.Recall[class] / (r.Precision[class] + r.Recall[class])
		}
	}
}

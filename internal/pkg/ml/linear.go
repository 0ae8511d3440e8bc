package ml

import (
	"errors"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// Online passive-aggressive classifier (PA-I). The hyperparameters here
// came out of grid search and are pinned for production training.
type PassiveAggressive struct {
	C      float64
	Epochs int
	Seed   int64

	Weights   []float64
	Intercept float64
}

func NewPassiveAggressive() *PassiveAggressive {
	return &PassiveAggressive{C: 0.1, Epochs: 5, Seed: 0}
}

func (m *PassiveAggressive) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("passive-aggressive fit: bad input shape")
	}

	dim := len(x[0])
	m.Weights = make([]float64, dim)
	m.Intercept = 0

	rng := rand.New(rand.NewSource(m.Seed))
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, i := range order {
			yi := signedLabel(y[i])
			margin := floats.Dot(m.Weights, x[i]) + m.Intercept
			loss := 1 - yi*margin
			if loss <= 0 {
				continue
			}
			// +1 accounts for the intercept term.
			sq := floats.Dot(x[i], x[i]) + 1
			tau := math.Min(m.C, loss/sq)
			floats.AddScaled(m.Weights, tau*yi, x[i])
			m.Intercept += tau * yi
		}
	}

	return nil
}

func (m *PassiveAggressive) DecisionFunction(x []float64) float64 {
	return floats.Dot(m.Weights, x) + m.Intercept
}

func (m *PassiveAggressive) Predict(x []float64) int {
	return labelOf(m.DecisionFunction(x))
}

// Hinge-loss SGD classifier with L2 regularization.
type SGDClassifier struct {
	Alpha  float64
	Epochs int
	Seed   int64

	Weights   []float64
	Intercept float64
}

func NewSGDClassifier(alpha float64) *SGDClassifier {
	return &SGDClassifier{Alpha: alpha, Epochs: 5, Seed: 0}
}

func (m *SGDClassifier) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("sgd fit: bad input shape")
	}

	dim := len(x[0])
	m.Weights = make([]float64, dim)
	m.Intercept = 0

	rng := rand.New(rand.NewSource(m.Seed))
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	// Learning-rate schedule eta_t = 1 / (alpha * (t + t0)).
	t0 := 1.0 / m.Alpha
	t := 0.0

	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, i := range order {
			t++
			eta := 1.0 / (m.Alpha * (t + t0))
			yi := signedLabel(y[i])
			margin := floats.Dot(m.Weights, x[i]) + m.Intercept

			floats.Scale(1-eta*m.Alpha, m.Weights)
			if yi*margin < 1 {
				floats.AddScaled(m.Weights, eta*yi, x[i])
				m.Intercept += eta * yi
			}
		}
	}

	return nil
}

func (m *SGDClassifier) DecisionFunction(x []float64) float64 {
	return floats.Dot(m.Weights, x) + m.Intercept
}

func (m *SGDClassifier) Predict(x []float64) int {
	return labelOf(m.DecisionFunction(x))
}

// Linear SVM trained by subgradient descent on the primal margin
// objective. C plays the usual inverse-regularization role.
type LinearSVM struct {
	C      float64
	Epochs int
	Seed   int64

	Weights   []float64
	Intercept float64
}

func NewLinearSVM(c float64) *LinearSVM {
	return &LinearSVM{C: c, Epochs: 20, Seed: 0}
}

func (m *LinearSVM) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("linear svm fit: bad input shape")
	}

	// lambda = 1 / (C * n) maps C onto the regularized objective.
	lambda := 1.0 / (m.C * float64(len(x)))

	dim := len(x[0])
	m.Weights = make([]float64, dim)
	m.Intercept = 0

	rng := rand.New(rand.NewSource(m.Seed))
	order := make([]int, len(x))
	for i := range order {
		order[i] = i
	}

	t := 0.0
	for epoch := 0; epoch < m.Epochs; epoch++ {
		rng.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, i := range order {
			t++
			eta := 1.0 / (lambda * t)
			yi := signedLabel(y[i])
			margin := floats.Dot(m.Weights, x[i]) + m.Intercept

			floats.Scale(1-eta*lambda, m.Weights)
			if yi*margin < 1 {
				floats.AddScaled(m.Weights, eta*yi, x[i])
				m.Intercept += eta * yi
			}
		}
	}

	return nil
}

func (m *LinearSVM) DecisionFunction(x []float64) float64 {
	return floats.Dot(m.Weights, x) + m.Intercept
}

func (m *LinearSVM) Predict(x []float64) int {
	return labelOf(m.DecisionFunction(x))
}

func signedLabel(y int) float64 {
	if y == 1 {
		return 1
	}
	return -1
}

func labelOf(score float64) int {
	if score > 0 {
		return 1
	}
	return 0
}

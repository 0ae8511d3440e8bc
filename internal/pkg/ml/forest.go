package ml

import (
	"errors"
	"math"
	"math/rand"
	"sort"
)

// A bagged ensemble of CART trees over the reduced feature space. Slower
// to evaluate than the linear models, kept in the grid search because it
// is the strongest non-linear baseline.
type RandomForest struct {
	NEstimators int
	MaxDepth    int
	Seed        int64

	Trees []*TreeNode
}

// One node of a fitted decision tree. Leaf nodes carry the positive-class
// fraction of the training samples that reached them.
type TreeNode struct {
	Feature   int
	Threshold float64
	Left      *TreeNode
	Right     *TreeNode
	Leaf      bool
	Value     float64
}

func NewRandomForest(nEstimators, maxDepth int) *RandomForest {
	return &RandomForest{NEstimators: nEstimators, MaxDepth: maxDepth, Seed: 0}
}

func (m *RandomForest) Fit(x [][]float64, y []int) error {
	if len(x) == 0 || len(x) != len(y) {
		return errors.New("random forest fit: bad input shape")
	}

	rng := rand.New(rand.NewSource(m.Seed))
	dim := len(x[0])
	mtry := int(math.Sqrt(float64(dim)))
	if mtry < 1 {
		mtry = 1
	}

	m.Trees = make([]*TreeNode, 0, m.NEstimators)
	for i := 0; i < m.NEstimators; i++ {
		// Bootstrap sample.
		idx := make([]int, len(x))
		for j := range idx {
			idx[j] = rng.Intn(len(x))
		}
		m.Trees = append(m.Trees, buildTree(x, y, idx, m.MaxDepth, mtry, rng))
	}

	return nil
}

// DecisionFunction maps the mean leaf probability onto a signed score
// centered at zero, so thresholding behaves like the linear models.
func (m *RandomForest) DecisionFunction(x []float64) float64 {
	return 2*m.probability(x) - 1
}

func (m *RandomForest) Predict(x []float64) int {
	if m.probability(x) >= 0.5 {
		return 1
	}
	return 0
}

func (m *RandomForest) probability(x []float64) float64 {
	if len(m.Trees) == 0 {
		return 0
	}
	var sum float64
	for _, t := range m.Trees {
		sum += t.evaluate(x)
	}
	return sum / float64(len(m.Trees))
}

func (t *TreeNode) evaluate(x []float64) float64 {
	node := t
	for !node.Leaf {
		if x[node.Feature] <= node.Threshold {
			node = node.Left
		} else {
			node = node.Right
		}
	}
	return node.Value
}

func buildTree(x [][]float64, y []int, idx []int, depth, mtry int, rng *rand.Rand) *TreeNode {
	pos := 0
	for _, i := range idx {
		pos += y[i]
	}
	value := float64(pos) / float64(len(idx))

	if depth == 0 || pos == 0 || pos == len(idx) || len(idx) < 2 {
		return &TreeNode{Leaf: true, Value: value}
	}

	feature, threshold, ok := bestSplit(x, y, idx, mtry, rng)
	if !ok {
		return &TreeNode{Leaf: true, Value: value}
	}

	var left, right []int
	for _, i := range idx {
		if x[i][feature] <= threshold {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}
	if len(left) == 0 || len(right) == 0 {
		return &TreeNode{Leaf: true, Value: value}
	}

	return &TreeNode{
		Feature:   feature,
		Threshold: threshold,
		Left:      buildTree(x, y, left, depth-1, mtry, rng),
		Right:     buildTree(x, y, right, depth-1, mtry, rng),
	}
}

// Picks the gini-optimal split over a random feature subset.
func bestSplit(x [][]float64, y []int, idx []int, mtry int, rng *rand.Rand) (int, float64, bool) {
	dim := len(x[0])
	features := rng.Perm(dim)[:mtry]

	bestGini := math.Inf(1)
	bestFeature, bestThreshold := -1, 0.0

	for _, f := range features {
		values := make([]float64, len(idx))
		for j, i := range idx {
			values[j] = x[i][f]
		}
		sort.Float64s(values)

		for j := 1; j < len(values); j++ {
			if values[j] == values[j-1] {
				continue
			}
			threshold := (values[j] + values[j-1]) / 2

			var nl, pl, nr, pr int
			for _, i := range idx {
				if x[i][f] <= threshold {
					nl++
					pl += y[i]
				} else {
					nr++
					pr += y[i]
				}
			}
			if nl == 0 || nr == 0 {
				continue
			}

			g := weightedGini(nl, pl) + weightedGini(nr, pr)
			if g < bestGini {
				bestGini = g
				bestFeature = f
				bestThreshold = threshold
			}
		}
	}

	if bestFeature < 0 {
		return 0, 0, false
	}
	return bestFeature, bestThreshold, true
}

func weightedGini(n, pos int) float64 {
	p := float64(pos) / float64(n)
	return float64(n) * 2 * p * (1 - p)
}

// Package ml holds the fixed feature pipeline: a term-frequency vectorizer,
// a truncated-SVD dimensionality reducer, and the linear classifiers fitted
// by the trainer. Shapes are pinned: 1,280-term vocabulary, 128 reduced
// dimensions, unigrams only.
package ml

import (
	"errors"
	"math"
	"sort"
	"strings"
	"unicode/utf8"
)

// A sparse weighted-term vector produced by the vectorizer.
type SparseVector struct {
	Indices []int
	Data    []float64
	Dim     int
}

// TF-IDF vectorizer over whitespace-separated tokens. Documents are
// expected to be already normalized and segmented.
type Vectorizer struct {
	MaxDF       float64
	MinDF       int
	MaxFeatures int
	StopWords   map[string]bool

	// Fitted state.
	Vocabulary map[string]int
	IDF        []float64
}

var ErrEmptyVocabulary = errors.New("empty vocabulary: no term satisfies the document-frequency bounds")

func NewVectorizer(stopWords []string) *Vectorizer {
	sw := make(map[string]bool, len(stopWords))
	for _, w := range stopWords {
		sw[w] = true
	}
	return &Vectorizer{
		MaxDF:       0.5,
		MinDF:       5,
		MaxFeatures: 1280,
		StopWords:   sw,
	}
}

// Splits a document into analyzable tokens: lower-cased, two or more
// code points, not a stop word. Single-character tokens are dropped the
// same way a \w\w+ word analyzer would drop them.
func (v *Vectorizer) analyze(doc string) []string {
	fields := strings.Fields(doc)
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.ToLower(f)
		if utf8.RuneCountInString(f) < 2 {
			continue
		}
		if v.StopWords[f] {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// Fit learns the vocabulary and IDF weights from the corpus: terms outside
// the document-frequency bounds are discarded, the remainder is capped at
// MaxFeatures by total count, and indices are assigned in lexicographic
// order.
func (v *Vectorizer) Fit(docs []string) error {
	df := make(map[string]int)
	tf := make(map[string]int)

	for _, doc := range docs {
		seen := make(map[string]bool)
		for _, t := range v.analyze(doc) {
			tf[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	n := len(docs)
	maxDF := int(v.MaxDF * float64(n))

	candidates := make([]string, 0, len(df))
	for term, d := range df {
		if d < v.MinDF || d > maxDF {
			continue
		}
		candidates = append(candidates, term)
	}
	if len(candidates) == 0 {
		return ErrEmptyVocabulary
	}

	if v.MaxFeatures > 0 && len(candidates) > v.MaxFeatures {
		sort.Slice(candidates, func(i, j int) bool {
			if tf[candidates[i]] != tf[candidates[j]] {
				return tf[candidates[i]] > tf[candidates[j]]
			}
			return candidates[i] < candidates[j]
		})
		candidates = candidates[:v.MaxFeatures]
	}
	sort.Strings(candidates)

	v.Vocabulary = make(map[string]int, len(candidates))
	v.IDF = make([]float64, len(candidates))
	for i, term := range candidates {
		v.Vocabulary[term] = i
		v.IDF[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
	}

	return nil
}

// Transform maps one document to its L2-normalized TF-IDF vector. An empty
// document transforms to an empty (all-zero) vector, not an error.
func (v *Vectorizer) Transform(doc string) SparseVector {
	counts := make(map[int]int)
	for _, t := range v.analyze(doc) {
		if idx, ok := v.Vocabulary[t]; ok {
			counts[idx]++
		}
	}

	vec := SparseVector{Dim: len(v.IDF)}
	if len(counts) == 0 {
		return vec
	}

	vec.Indices = make([]int, 0, len(counts))
	for idx := range counts {
		vec.Indices = append(vec.Indices, idx)
	}
	sort.Ints(vec.Indices)

	vec.Data = make([]float64, len(vec.Indices))
	var sq float64
	for i, idx := range vec.Indices {
		w := float64(counts[idx]) * v.IDF[idx]
		vec.Data[i] = w
		sq += w * w
	}
	if norm := math.Sqrt(sq); norm > 0 {
		for i := range vec.Data {
			vec.Data[i] /= norm
		}
	}

	return vec
}

// TopTerms returns the document's terms ordered by raw TF-IDF weight,
// descending, capped at limit. Used for the human-readable explanation of
// a prediction.
func (v *Vectorizer) TopTerms(vec SparseVector, limit int) []string {
	inverse := make(map[int]string, len(v.Vocabulary))
	for term, idx := range v.Vocabulary {
		inverse[idx] = term
	}

	type weighted struct {
		idx    int
		weight float64
	}
	ws := make([]weighted, len(vec.Indices))
	for i, idx := range vec.Indices {
		ws[i] = weighted{idx: idx, weight: vec.Data[i]}
	}
	sort.Slice(ws, func(i, j int) bool {
		if ws[i].weight != ws[j].weight {
			return ws[i].weight > ws[j].weight
		}
		return ws[i].idx < ws[j].idx
	})

	if len(ws) > limit {
		ws = ws[:limit]
	}
	terms := make([]string, len(ws))
	for i, w := range ws {
		terms[i] = inverse[w.idx]
	}
	return terms
}

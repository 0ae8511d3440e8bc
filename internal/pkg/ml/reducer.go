package ml

import (
	"bytes"
	"encoding/gob"
	"errors"

	"gonum.org/v1/gonum/mat"
)

// Truncated-SVD dimensionality reducer. Unlike a kernel method it needs no
// input standardization, and at 128 components accuracy is flat across a
// wide range, so the width is pinned by configuration rather than tuned.
type Reducer struct {
	K          int
	Components *mat.Dense // K x Dim
	Dim        int
}

const DefaultComponents = 128

func NewReducer(k int) *Reducer {
	if k <= 0 {
		k = DefaultComponents
	}
	return &Reducer{K: k}
}

// Fit factorizes the document-term matrix and keeps the top right-singular
// vectors. If the corpus is smaller than K the width shrinks to fit.
func (r *Reducer) Fit(rows []SparseVector) error {
	if len(rows) == 0 {
		return errors.New("reducer fit: empty input")
	}
	dim := rows[0].Dim
	if dim == 0 {
		return errors.New("reducer fit: zero-width input")
	}

	dense := mat.NewDense(len(rows), dim, nil)
	for i, row := range rows {
		for j, idx := range row.Indices {
			dense.Set(i, idx, row.Data[j])
		}
	}

	var svd mat.SVD
	if ok := svd.Factorize(dense, mat.SVDThin); !ok {
		return errors.New("reducer fit: SVD did not converge")
	}

	var v mat.Dense
	svd.VTo(&v)
	_, cols := v.Dims()

	k := r.K
	if k > cols {
		k = cols
	}

	components := mat.NewDense(k, dim, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < dim; j++ {
			components.Set(i, j, v.At(j, i))
		}
	}

	r.Components = components
	r.Dim = dim
	return nil
}

// Transform projects one sparse vector into the reduced space.
func (r *Reducer) Transform(vec SparseVector) []float64 {
	k, _ := r.Components.Dims()
	out := make([]float64, k)
	for i := 0; i < k; i++ {
		var sum float64
		for j, idx := range vec.Indices {
			sum += vec.Data[j] * r.Components.At(i, idx)
		}
		out[i] = sum
	}
	return out
}

// mat.Dense has no exported fields, so the reducer carries its own gob
// representation built on the matrix binary encoding.
type reducerState struct {
	K          int
	Dim        int
	Components []byte
}

func (r *Reducer) GobEncode() ([]byte, error) {
	state := reducerState{K: r.K, Dim: r.Dim}
	if r.Components != nil {
		raw, err := r.Components.MarshalBinary()
		if err != nil {
			return nil, err
		}
		state.Components = raw
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Reducer) GobDecode(data []byte) error {
	var state reducerState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&state); err != nil {
		return err
	}
	r.K = state.K
	r.Dim = state.Dim
	r.Components = nil
	if len(state.Components) > 0 {
		var m mat.Dense
		if err := m.UnmarshalBinary(state.Components); err != nil {
			return err
		}
		r.Components = &m
	}
	return nil
}

// TransformAll projects a batch for training.
func (r *Reducer) TransformAll(rows []SparseVector) [][]float64 {
	out := make([][]float64, len(rows))
	for i, row := range rows {
		out[i] = r.Transform(row)
	}
	return out
}

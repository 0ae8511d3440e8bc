package ml

import (
	"bytes"
	"compress/gzip"
	"encoding/gob"
	"fmt"
	"io"
)

// Model is a fitted binary classifier over reduced feature vectors.
// Labels are 0 (not spam) and 1 (spam); the decision function is a signed
// real value where more positive means more confidently spam.
type Model interface {
	Fit(x [][]float64, y []int) error
	Predict(x []float64) int
	DecisionFunction(x []float64) float64
}

func init() {
	// Concrete model types cross the artifact store as gob interface
	// values.
	gob.Register(&PassiveAggressive{})
	gob.Register(&SGDClassifier{})
	gob.Register(&LinearSVM{})
	gob.Register(&RandomForest{})
}

// modelEnvelope lets a Model interface value round-trip through gob.
type modelEnvelope struct {
	Model Model
}

// EncodeArtifact serializes any fitted artifact and gzips it for storage.
func EncodeArtifact(v any) ([]byte, error) {
	var raw bytes.Buffer
	if m, ok := v.(Model); ok {
		if err := gob.NewEncoder(&raw).Encode(modelEnvelope{Model: m}); err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
	} else {
		if err := gob.NewEncoder(&raw).Encode(v); err != nil {
			return nil, fmt.Errorf("encode artifact: %w", err)
		}
	}

	var out bytes.Buffer
	zw := gzip.NewWriter(&out)
	if _, err := zw.Write(raw.Bytes()); err != nil {
		return nil, fmt.Errorf("compress artifact: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress artifact: %w", err)
	}
	return out.Bytes(), nil
}

// DecodeArtifact reverses EncodeArtifact into v, which must be a pointer.
func DecodeArtifact(data []byte, v any) error {
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}
	raw, err := io.ReadAll(zr)
	if err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}
	if err := zr.Close(); err != nil {
		return fmt.Errorf("decompress artifact: %w", err)
	}
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(v); err != nil {
		return fmt.Errorf("decode artifact: %w", err)
	}
	return nil
}

// DecodeModel decodes a Model that was encoded by EncodeArtifact.
func DecodeModel(data []byte) (Model, error) {
	var env modelEnvelope
	if err := DecodeArtifact(data, &env); err != nil {
		return nil, err
	}
	return env.Model, nil
}

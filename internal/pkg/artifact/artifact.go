// Package artifact persists the fitted {vectorizer, reducer, classifier}
// triple in redis under a versioned key prefix. Readers resolve the
// current version through a pointer key, so a publish is atomic from the
// detection worker's point of view: the three blobs are written first and
// the pointer is flipped last.
package artifact

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"detector/internal/pkg/logger"
	"detector/internal/pkg/metrics"
	"detector/internal/pkg/ml"

	"go.uber.org/zap"
)

var ErrNoArtifact = errors.New("no published artifact")

// Bundle is one fitted, loadable model version.
type Bundle struct {
	Version    string
	Vectorizer *ml.Vectorizer
	Reducer    *ml.Reducer
	Model      ml.Model
}

type Store interface {
	Publish(ctx context.Context, vect *ml.Vectorizer, reducer *ml.Reducer, model ml.Model) (string, error)
	Current(ctx context.Context) (string, error)
	Load(ctx context.Context, version string) (*Bundle, error)
}

type store struct {
	client *redis.Client
	prefix string
}

func NewStore(client *redis.Client, prefix string) Store {
	return &store{client: client, prefix: prefix}
}

func (s *store) key(version, part string) string {
	return fmt.Sprintf("%s:%s:%s", s.prefix, version, part)
}

func (s *store) pointerKey() string {
	return s.prefix + ":current"
}

// Publish stores a new version and makes it current. Blobs from older
// versions are left behind for rollback; they are small and redis-side
// expiry is a deployment concern.
func (s *store) Publish(ctx context.Context, vect *ml.Vectorizer, reducer *ml.Reducer, model ml.Model) (string, error) {
	version := uuid.NewString()

	parts := []struct {
		name string
		v    any
	}{
		{"vect", vect},
		{"lsa", reducer},
		{"clf", model},
	}
	for _, p := range parts {
		blob, err := ml.EncodeArtifact(p.v)
		if err != nil {
			return "", fmt.Errorf("publish %s: %w", p.name, err)
		}
		if err := s.client.Set(ctx, s.key(version, p.name), blob, 0).Err(); err != nil {
			return "", fmt.Errorf("publish %s: %w", p.name, err)
		}
	}

	if err := s.client.Set(ctx, s.pointerKey(), version, 0).Err(); err != nil {
		return "", fmt.Errorf("publish pointer: %w", err)
	}

	metrics.ArtifactPublishes.Inc()
	logger.Log.Info("published model artifact", zap.String("version", version))
	return version, nil
}

// Current returns the published version identifier.
func (s *store) Current(ctx context.Context) (string, error) {
	version, err := s.client.Get(ctx, s.pointerKey()).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrNoArtifact
	}
	if err != nil {
		return "", fmt.Errorf("resolve current artifact: %w", err)
	}
	return version, nil
}

// Load fetches and decodes one version. The worker pins a version for a
// whole detection cycle so a concurrent publish cannot mix generations.
func (s *store) Load(ctx context.Context, version string) (*Bundle, error) {
	blob, err := s.client.Get(ctx, s.key(version, "vect")).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNoArtifact
	}
	if err != nil {
		return nil, fmt.Errorf("load vectorizer: %w", err)
	}
	var vect ml.Vectorizer
	if err := ml.DecodeArtifact(blob, &vect); err != nil {
		return nil, err
	}

	blob, err = s.client.Get(ctx, s.key(version, "lsa")).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load reducer: %w", err)
	}
	var reducer ml.Reducer
	if err := ml.DecodeArtifact(blob, &reducer); err != nil {
		return nil, err
	}

	blob, err = s.client.Get(ctx, s.key(version, "clf")).Bytes()
	if err != nil {
		return nil, fmt.Errorf("load classifier: %w", err)
	}
	model, err := ml.DecodeModel(blob)
	if err != nil {
		return nil, err
	}

	return &Bundle{Version: version, Vectorizer: &vect, Reducer: &reducer, Model: model}, nil
}

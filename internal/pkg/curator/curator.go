// Package curator keeps the training corpora clean: it folds freshly
// confirmed spam into the positive dataset and prunes near-duplicate
// entries so templated campaigns cannot dominate the fit.
package curator

import (
	"context"
	"strings"
	"sync"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sourcegraph/conc/pool"
	"go.uber.org/zap"

	"detector/internal/pkg/config"
	"detector/internal/pkg/corpus"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/metrics"
	"detector/internal/pkg/normalizer"
)

// Entries closer than this ratio are treated as the same campaign text.
const duplicateRatio = 0.9

// Source supplies recent documents from the record store: confirmed spam
// for the positive dataset, ordinary messages for the clean one.
type Source interface {
	RecentPositives(ctx context.Context) ([]corpus.Entry, error)
	RecentNegatives(ctx context.Context) ([]corpus.Entry, error)
}

type Curator struct {
	cfg    *config.Config
	corpus corpus.Store
	norm   *normalizer.Normalizer
	source Source
}

func New(cfg *config.Config, store corpus.Store, norm *normalizer.Normalizer, source Source) *Curator {
	return &Curator{cfg: cfg, corpus: store, norm: norm, source: source}
}

// IsNearDuplicate compares two documents by character-level sequence
// similarity. The comparison works on code points, not bytes, so multibyte
// text ratios behave sensibly.
func IsNearDuplicate(a, b string) bool {
	if a == b {
		return true
	}
	m := difflib.NewMatcher(strings.Split(a, ""), strings.Split(b, ""))
	return m.Ratio() > duplicateRatio
}

// PruneSelf removes near-duplicates within one dataset. The comparison is
// directional: of a duplicate pair, only the entry with the higher id (the
// newer one) is removed, so the oldest exemplar of a campaign survives.
// Entries are compared against a snapshot taken at the start of the pass.
func (c *Curator) PruneSelf(ctx context.Context, key string) (int, error) {
	entries, err := c.corpus.Entries(ctx, key)
	if err != nil {
		return 0, err
	}

	var mu sync.Mutex
	claimed := make(map[int64]bool)
	pruned := 0

	p := pool.New().WithMaxGoroutines(c.cfg.PoolProcs()).WithErrors()
	for _, item := range entries {
		item := item
		p.Go(func() error {
			var dups []int64
			for _, cand := range entries {
				if cand.ID <= item.ID {
					continue
				}
				if IsNearDuplicate(item.Text, cand.Text) {
					dups = append(dups, cand.ID)
				}
			}
			if len(dups) == 0 {
				return nil
			}

			// Two items can match the same candidate; only one worker
			// gets to delete it.
			mu.Lock()
			mine := dups[:0]
			for _, id := range dups {
				if !claimed[id] {
					claimed[id] = true
					mine = append(mine, id)
				}
			}
			mu.Unlock()
			if len(mine) == 0 {
				return nil
			}

			if err := c.corpus.Delete(ctx, key, mine); err != nil {
				return err
			}
			mu.Lock()
			pruned += len(mine)
			mu.Unlock()
			return nil
		})
	}
	if err := p.Wait(); err != nil {
		return pruned, err
	}

	metrics.DuplicatesPruned.Add(float64(pruned))
	logger.Log.Info("pruned near-duplicate corpus entries",
		zap.String("key", key), zap.Int("pruned", pruned))
	return pruned, nil
}

// Update folds recently confirmed spam into the positive dataset. Each
// document is normalized and segmented before storage so the dataset feeds
// the vectorizer directly. Documents already present, empty after
// segmentation, or near-duplicates of an existing entry are skipped.
func (c *Curator) Update(ctx context.Context, key string) (int, error) {
	recents, err := c.source.RecentPositives(ctx)
	if err != nil {
		return 0, err
	}
	added, err := c.fold(ctx, key, recents)
	if err != nil {
		return added, err
	}
	logger.Log.Info("updated positive dataset",
		zap.String("key", key), zap.Int("added", added))
	return added, nil
}

// UpdateNegatives refreshes the clean dataset from recent unflagged
// messages, with the same dedup rules as the positive path.
func (c *Curator) UpdateNegatives(ctx context.Context, key string) (int, error) {
	recents, err := c.source.RecentNegatives(ctx)
	if err != nil {
		return 0, err
	}
	added, err := c.fold(ctx, key, recents)
	if err != nil {
		return added, err
	}
	logger.Log.Info("updated negative dataset",
		zap.String("key", key), zap.Int("added", added))
	return added, nil
}

func (c *Curator) fold(ctx context.Context, key string, recents []corpus.Entry) (int, error) {
	existing, err := c.corpus.Entries(ctx, key)
	if err != nil {
		return 0, err
	}

	added := 0
	for _, rec := range recents {
		if dup, err := c.corpus.Exists(ctx, key, rec.ID); err != nil {
			return added, err
		} else if dup {
			continue
		}

		text := c.norm.Parse(rec.Text)
		if text == "" {
			continue
		}

		known := false
		for _, e := range existing {
			if IsNearDuplicate(text, e.Text) {
				known = true
				break
			}
		}
		if known {
			continue
		}

		entry := corpus.Entry{ID: rec.ID, Text: text}
		if err := c.corpus.Set(ctx, key, entry); err != nil {
			return added, err
		}
		existing = append(existing, entry)
		added++
	}
	return added, nil
}

// Package corpus stores curated training documents in redis hashes, one
// hash per dataset, keyed by the source record id. Ids order entries by
// recency because the record store assigns them monotonically.
package corpus

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// Entry is one curated document.
type Entry struct {
	ID   int64
	Text string
}

type Store interface {
	// Entries returns the dataset ordered by id ascending.
	Entries(ctx context.Context, key string) ([]Entry, error)
	// EntriesDesc returns the dataset newest first.
	EntriesDesc(ctx context.Context, key string) ([]Entry, error)
	Set(ctx context.Context, key string, e Entry) error
	Exists(ctx context.Context, key string, id int64) (bool, error)
	Delete(ctx context.Context, key string, ids []int64) error
}

type store struct {
	client *redis.Client
}

func NewStore(client *redis.Client) Store {
	return &store{client: client}
}

func (s *store) Entries(ctx context.Context, key string) ([]Entry, error) {
	raw, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read corpus %s: %w", key, err)
	}

	entries := make([]Entry, 0, len(raw))
	for field, text := range raw {
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corpus %s: bad field %q: %w", key, field, err)
		}
		entries = append(entries, Entry{ID: id, Text: text})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

func (s *store) EntriesDesc(ctx context.Context, key string) ([]Entry, error) {
	entries, err := s.Entries(ctx, key)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	return entries, nil
}

func (s *store) Set(ctx context.Context, key string, e Entry) error {
	if err := s.client.HSet(ctx, key, strconv.FormatInt(e.ID, 10), e.Text).Err(); err != nil {
		return fmt.Errorf("write corpus %s: %w", key, err)
	}
	return nil
}

func (s *store) Exists(ctx context.Context, key string, id int64) (bool, error) {
	ok, err := s.client.HExists(ctx, key, strconv.FormatInt(id, 10)).Result()
	if err != nil {
		return false, fmt.Errorf("probe corpus %s: %w", key, err)
	}
	return ok, nil
}

// Delete removes a batch of entries in one HDEL.
func (s *store) Delete(ctx context.Context, key string, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	fields := make([]string, len(ids))
	for i, id := range ids {
		fields[i] = strconv.FormatInt(id, 10)
	}
	if err := s.client.HDel(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("delete from corpus %s: %w", key, err)
	}
	return nil
}

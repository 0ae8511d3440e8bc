// Package queue is the FIFO hand-off between the application that records
// new messages and the detection worker. Producers RPUSH ids, the worker
// LPOPs them, and a failed cycle pushes its id back to the tail so one bad
// message cannot wedge the queue head.
package queue

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

var ErrQueueEmpty = errors.New("queue is empty")

type Queue interface {
	Push(ctx context.Context, id int64) error
	Pop(ctx context.Context) (int64, error)
	Requeue(ctx context.Context, id int64) error
	Len(ctx context.Context) (int64, error)
}

type messageQueue struct {
	client *redis.Client
	key    string
}

func New(client *redis.Client, key string) Queue {
	return &messageQueue{client: client, key: key}
}

func (q *messageQueue) Push(ctx context.Context, id int64) error {
	if err := q.client.RPush(ctx, q.key, id).Err(); err != nil {
		return fmt.Errorf("push to %s: %w", q.key, err)
	}
	return nil
}

func (q *messageQueue) Pop(ctx context.Context) (int64, error) {
	id, err := q.client.LPop(ctx, q.key).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, ErrQueueEmpty
	}
	if err != nil {
		return 0, fmt.Errorf("pop from %s: %w", q.key, err)
	}
	return id, nil
}

// Requeue returns a failed id to the tail for a later retry.
func (q *messageQueue) Requeue(ctx context.Context, id int64) error {
	return q.Push(ctx, id)
}

func (q *messageQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("length of %s: %w", q.key, err)
	}
	return n, nil
}

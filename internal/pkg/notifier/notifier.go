// Package notifier posts detection alerts to the operations chat. The
// channel allows 100 API calls per 5 minutes, so sends go
// through a local limiter, and a failed send is parked on a redis retry
// queue that is drained before the next post.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"detector/internal/pkg/circuitbreaker"
	"detector/internal/pkg/config"
	"detector/internal/pkg/logger"
	"detector/internal/pkg/metrics"
)

const tokenHeader = "X-ChatWorkToken"

// 100 calls per 5 minutes, with a little headroom.
var sendLimit = rate.Every(3500 * time.Millisecond)

type Notifier interface {
	Post(ctx context.Context, roomID, body string) error
}

type notifier struct {
	cfg     *config.Config
	client  *redis.Client
	http    *http.Client
	breaker *circuitbreaker.CircuitBreaker
	limiter *rate.Limiter
}

// queued is one parked notification on the retry queue.
type queued struct {
	RoomID string `json:"room_id"`
	Body   string `json:"body"`
}

func New(cfg *config.Config, client *redis.Client, breaker *circuitbreaker.CircuitBreaker) Notifier {
	return &notifier{
		cfg:     cfg,
		client:  client,
		http:    &http.Client{Timeout: 10 * time.Second},
		breaker: breaker,
		limiter: rate.NewLimiter(sendLimit, 5),
	}
}

// Post drains any parked notifications, then sends this one. A send that
// fails is parked for the next call and reported as an error.
func (n *notifier) Post(ctx context.Context, roomID, body string) error {
	n.drain(ctx)
	return n.send(ctx, roomID, body)
}

// drain retries every parked notification. A notification that fails again
// is re-parked by send, so the loop is bounded by the queue length taken
// up front.
func (n *notifier) drain(ctx context.Context) {
	length, err := n.client.LLen(ctx, n.cfg.Keys.QueueNotifyRetry).Result()
	if err != nil {
		logger.Log.Warn("notification retry queue unavailable", zap.Error(err))
		return
	}

	for i := int64(0); i < length; i++ {
		raw, err := n.client.LPop(ctx, n.cfg.Keys.QueueNotifyRetry).Result()
		if err != nil {
			return
		}
		var item queued
		if err := json.Unmarshal([]byte(raw), &item); err != nil {
			logger.Log.Error("dropping malformed queued notification", zap.Error(err))
			continue
		}
		if err := n.send(ctx, item.RoomID, item.Body); err != nil {
			logger.Log.Warn("queued notification failed again", zap.Error(err))
		}
	}
}

func (n *notifier) send(ctx context.Context, roomID, body string) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return err
	}

	sendErr := n.breaker.Execute(func() error {
		endpoint := fmt.Sprintf("%s/rooms/%s/messages", n.cfg.NotifyURL, roomID)
		form := url.Values{"body": {body}}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint,
			strings.NewReader(form.Encode()))
		if err != nil {
			return err
		}
		req.Header.Set(tokenHeader, n.cfg.NotifyToken)
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := n.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return fmt.Errorf("notification endpoint returned %d", resp.StatusCode)
		}
		return nil
	})
	if sendErr == nil {
		return nil
	}

	metrics.NotificationFailures.Inc()
	raw, err := json.Marshal(queued{RoomID: roomID, Body: body})
	if err != nil {
		return fmt.Errorf("park notification: %w", err)
	}
	if err := n.client.RPush(ctx, n.cfg.Keys.QueueNotifyRetry, raw).Err(); err != nil {
		return fmt.Errorf("park notification: %w", err)
	}

	logger.Log.Error("notification parked for retry",
		zap.String("room_id", roomID), zap.Error(sendErr))
	return fmt.Errorf("notification send failed: %w", sendErr)
}

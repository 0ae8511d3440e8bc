// Package realtime publishes verdict updates to the board UI through the
// socket.io-redis adapter protocol. The adapter is just a redis pub/sub
// consumer of msgpack frames, so the emitter publishes directly instead of
// pulling in a socket.io client.
// Protocol: https://github.com/socketio/socket.io-redis#protocol
package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"detector/internal/pkg/logger"
)

const spamUpdateEvent = "spam_update_message"

// Payload type 2 marks a plain (non-binary) socket.io event.
const packetTypeEvent = 2

// SpamUpdate is the event payload the board UI consumes.
type SpamUpdate struct {
	BoardID           int64 `msgpack:"board_id" json:"board_id"`
	MessageID         int64 `msgpack:"message_id" json:"message_id"`
	FeedbackFromAdmin int   `msgpack:"feedback_from_admin" json:"feedback_from_admin"`
	FeedbackFromUser  int   `msgpack:"feedback_from_user" json:"feedback_from_user"`
	Predict           int   `msgpack:"predict" json:"predict"`
}

type Emitter interface {
	EmitSpamUpdate(ctx context.Context, update SpamUpdate) (int64, error)
}

type emitter struct {
	client *redis.Client
}

func NewEmitter(client *redis.Client) Emitter {
	return &emitter{client: client}
}

type packet struct {
	Type int    `msgpack:"type"`
	Data []any  `msgpack:"data"`
	Nsp  string `msgpack:"nsp"`
}

type opts struct {
	Rooms []int64 `msgpack:"rooms"`
	Flags []any   `msgpack:"flags"`
}

// EmitSpamUpdate publishes one update to the board's room and returns the
// number of adapter subscribers that received it.
func (e *emitter) EmitSpamUpdate(ctx context.Context, update SpamUpdate) (int64, error) {
	channel := fmt.Sprintf("socket.io#/#%d#", update.BoardID)

	frame, err := msgpack.Marshal([]any{
		"emitter",
		packet{
			Type: packetTypeEvent,
			Data: []any{spamUpdateEvent, update},
			Nsp:  "/",
		},
		opts{
			Rooms: []int64{update.BoardID},
			Flags: []any{},
		},
	})
	if err != nil {
		return 0, fmt.Errorf("pack realtime frame: %w", err)
	}

	subscribers, err := e.client.Publish(ctx, channel, frame).Result()
	if err != nil {
		return 0, fmt.Errorf("publish realtime frame: %w", err)
	}

	logger.Log.Debug("emitted realtime spam update",
		zap.Int64("board_id", update.BoardID),
		zap.Int64("message_id", update.MessageID),
		zap.Int64("subscribers", subscribers))
	return subscribers, nil
}

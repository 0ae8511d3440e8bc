package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

func TestEmitWithoutSubscribers(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	e := NewEmitter(client)

	n, err := e.EmitSpamUpdate(context.Background(), SpamUpdate{BoardID: 7, MessageID: 8, Predict: 1})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if n != 0 {
		t.Errorf("subscribers = %d, want 0", n)
	}
}

func TestEmitFrameFormat(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	e := NewEmitter(client)
	ctx := context.Background()

	sub := client.Subscribe(ctx, "socket.io#/#3204962#")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe failed: %v", err)
	}

	n, err := e.EmitSpamUpdate(ctx, SpamUpdate{
		BoardID:   3204962,
		MessageID: 15076626,
		Predict:   1,
	})
	if err != nil {
		t.Fatalf("emit failed: %v", err)
	}
	if n != 1 {
		t.Errorf("subscribers = %d, want 1", n)
	}

	select {
	case msg := <-sub.Channel():
		var frame []any
		if err := msgpack.Unmarshal([]byte(msg.Payload), &frame); err != nil {
			t.Fatalf("frame is not msgpack: %v", err)
		}
		if len(frame) != 3 {
			t.Fatalf("frame has %d elements, want 3", len(frame))
		}
		if frame[0] != "emitter" {
			t.Errorf("frame[0] = %v, want emitter", frame[0])
		}

		packet, ok := frame[1].(map[string]any)
		if !ok {
			t.Fatalf("frame[1] is %T", frame[1])
		}
		if nsp := packet["nsp"]; nsp != "/" {
			t.Errorf("nsp = %v, want /", nsp)
		}
		data, ok := packet["data"].([]any)
		if !ok || len(data) != 2 {
			t.Fatalf("packet data = %v", packet["data"])
		}
		if data[0] != "spam_update_message" {
			t.Errorf("event = %v, want spam_update_message", data[0])
		}
		payload, ok := data[1].(map[string]any)
		if !ok {
			t.Fatalf("payload is %T", data[1])
		}
		if _, ok := payload["feedback_from_admin"]; !ok {
			t.Error("payload is missing feedback_from_admin")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame received")
	}
}

package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// StreamSender publishes messages to a Redis stream for downstream
// delivery workers.
type StreamSender struct {
	client streamAdder
	stream string
}

func NewStreamSender(client *redis.Client, stream string) *StreamSender {
	return &StreamSender{client: client, stream: stream}
}

func (s *StreamSender) Send(ctx context.Context, fromHospitalID, toUserID int64, text string) error {
	payload, err := json.Marshal(newMessage(fromHospitalID, toUserID, text))
	if err != nil {
		return err
	}
	err = s.client.XAdd(ctx, &redis.XAddArgs{
		Stream: s.stream,
		Values: map[string]interface{}{
			"data":      string(payload),
			"timestamp": time.Now().Unix(),
		},
	}).Err()
	if err != nil {
		return fmt.Errorf("publish to stream %s: %w", s.stream, err)
	}
	return nil
}

// Package service holds cross-cutting services shared by the REST front.
package service

import (
	"context"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const signalChannel = "atsocial:signal"

// SignalService fans mutation hints out over redis pub/sub so every process
// serving the same account refreshes together. All of it is best-effort: a
// dropped signal only delays the next refetch.
type SignalService struct {
	rdb *redis.Client
}

func NewSignalService(rdb *redis.Client) *SignalService {
	return &SignalService{rdb: rdb}
}

// Notify publishes a topic. A nil service or client degrades to a no-op so
// single-process deployments need no redis.
func (s *SignalService) Notify(ctx context.Context, topic string) {
	if s == nil || s.rdb == nil {
		return
	}

	if err := s.rdb.Publish(ctx, signalChannel, topic).Err(); err != nil {
		slog.ErrorContext(ctx, "failed to publish signal",
			slog.String("topic", topic),
			slog.String("error", err.Error()),
			slog.String("module", "signal"),
		)
	}
}

// Subscribe streams topics published by any process. The channel closes when
// ctx is cancelled. Returns nil when no redis is configured.
func (s *SignalService) Subscribe(ctx context.Context) <-chan string {
	if s == nil || s.rdb == nil {
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, signalChannel)
	out := make(chan string)

	go func() {
		defer close(out)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- msg.Payload:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out
}

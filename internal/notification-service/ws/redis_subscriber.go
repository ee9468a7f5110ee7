package ws

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// StartRedisSubscriber escuta o canal de broadcast do challenge-service e
// repassa cada evento ao Hub. A goroutine termina quando ctx é cancelado.
func StartRedisSubscriber(ctx context.Context, r *redis.Client, channel string, hub *Hub, log *zap.Logger) {
	sub := r.Subscribe(ctx, channel)
	ch := sub.Channel()
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				Dispatch(hub, msg.Payload, log)
			}
		}
	}()
}

// Dispatch decodifica um payload do canal e faz o broadcast.
func Dispatch(hub *Hub, payload string, log *zap.Logger) {
	var ev events.ChallengeEvent
	if err := json.Unmarshal([]byte(payload), &ev); err != nil {
		log.Warn("ws subscriber unmarshal error", zap.Error(err))
		return
	}
	n := hub.Broadcast(ev)
	log.Debug("challenge event broadcast", zap.String("type", ev.Type), zap.String("challenge_id", ev.ChallengeID), zap.Int("clients", n))
}

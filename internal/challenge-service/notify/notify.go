package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// MessageWriter é o subconjunto de *kafka.Writer usado pelo notifier.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Kafka publica eventos de challenge no tópico challenge_events, com a chave
// de partição do challenge (ou do usuário, para eventos de saldo).
type Kafka struct {
	writer MessageWriter
	log    *zap.Logger
}

func NewKafka(w MessageWriter, log *zap.Logger) *Kafka {
	return &Kafka{writer: w, log: log}
}

func (k *Kafka) Notify(ctx context.Context, topic string, ev events.ChallengeEvent) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", topic, err)
	}
	msg := kafka.Message{
		Key:     []byte(ev.Key()),
		Value:   value,
		Time:    ev.Ts,
		Headers: []kafka.Header{{Key: "event_type", Value: []byte(topic)}},
	}
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("kafka publish %s: %w", topic, err)
	}
	k.log.Debug("published challenge event", zap.String("type", topic), zap.String("key", ev.Key()))
	return nil
}

func (k *Kafka) Close() error { return k.writer.Close() }

// Publisher é o subconjunto de *redis.Client usado pelo broadcast.
type Publisher interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// Redis faz o broadcast em tempo real para o notification-service.
type Redis struct {
	client  Publisher
	channel string
}

func NewRedis(client Publisher, channel string) *Redis {
	return &Redis{client: client, channel: channel}
}

func (r *Redis) Notify(ctx context.Context, _ string, ev events.ChallengeEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, r.channel, payload).Err()
}

// Multi entrega a todos os notifiers e junta os erros; um destino com falha
// não impede a entrega aos demais.
type Multi []engine.Notifier

func (m Multi) Notify(ctx context.Context, topic string, ev events.ChallengeEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.Notify(ctx, topic, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

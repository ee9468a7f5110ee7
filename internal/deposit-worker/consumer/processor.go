package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// MessageReader é o subconjunto de *kafka.Reader usado pelo worker.
// O commit só acontece depois que a mensagem foi creditada ou enviada à DLQ.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
}

type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Depositor credita um depósito já validado; implementado por *engine.Engine.
type Depositor interface {
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (balance int64, applied bool, err error)
}

// Processor consome deposit_credited e credita o saldo via motor de escrow.
// Callbacks de métricas podem ser usadas para monitoramento de cada etapa.
type Processor struct {
	Log       *zap.Logger
	Reader    MessageReader
	Depositor Depositor
	DLQ       MessageWriter // opcional

	// Retries são as tentativas extras em falha de infraestrutura.
	Retries int
	Backoff func(attempt int) time.Duration

	OnConsumed  func()
	OnCredited  func()
	OnDuplicate func()
	OnError     func(string)
}

const defaultRetries = 3

// Run executa o loop de consumo até ctx ser cancelado.
func (p *Processor) Run(ctx context.Context) error {
	for {
		m, err := p.Reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			p.Log.Warn("kafka fetch failed", zap.Error(err))
			p.onError("read")
			sleep(ctx, 500*time.Millisecond)
			continue
		}
		if p.OnConsumed != nil {
			p.OnConsumed()
		}

		if err := p.Handle(ctx, m); err != nil {
			// sem commit: a mensagem volta a ser entregue
			p.Log.Error("deposit not processed", zap.Int64("offset", m.Offset), zap.Error(err))
			sleep(ctx, time.Second)
			continue
		}
		if err := p.Reader.CommitMessages(ctx, m); err != nil {
			p.Log.Warn("kafka commit failed", zap.Int64("offset", m.Offset), zap.Error(err))
			p.onError("commit")
		}
	}
}

// Handle processa uma mensagem. Retorna erro apenas quando ela não foi
// creditada nem desviada para a DLQ.
func (p *Processor) Handle(ctx context.Context, m kafka.Message) error {
	var ev events.DepositCredited
	if err := json.Unmarshal(m.Value, &ev); err != nil {
		p.Log.Warn("invalid deposit message", zap.Error(err))
		p.onError("decode")
		return p.deadLetter(ctx, m, "decode: "+err.Error())
	}
	if ev.ExternalRef == "" {
		p.onError("validate")
		return p.deadLetter(ctx, m, "external_ref required")
	}

	retries := p.Retries
	if retries <= 0 {
		retries = defaultRetries
	}
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			sleep(ctx, p.backoff(attempt))
		}
		var applied bool
		var bal int64
		bal, applied, err = p.Depositor.Deposit(ctx, ev.UserID, ev.AmountCents, ev.ExternalRef)
		if err == nil {
			if applied {
				p.Log.Info("deposit credited",
					zap.String("user_id", ev.UserID),
					zap.String("external_ref", ev.ExternalRef),
					zap.Int64("balance_cents", bal),
				)
				if p.OnCredited != nil {
					p.OnCredited()
				}
			} else if p.OnDuplicate != nil {
				p.OnDuplicate()
			}
			return nil
		}
		if engine.IsExpected(err) {
			// payload inválido: repetir não muda o resultado
			break
		}
		p.Log.Warn("deposit attempt failed", zap.Int("attempt", attempt+1), zap.Error(err))
	}

	p.onError("deposit")
	return p.deadLetter(ctx, m, err.Error())
}

func (p *Processor) deadLetter(ctx context.Context, m kafka.Message, reason string) error {
	if p.DLQ == nil {
		p.Log.Error("dropping deposit message without dlq", zap.String("reason", reason))
		return nil
	}
	err := p.DLQ.WriteMessages(ctx, kafka.Message{
		Key:   m.Key,
		Value: m.Value,
		Time:  time.Now(),
		Headers: append(slices.Clone(m.Headers),
			kafka.Header{Key: "dlq_reason", Value: []byte(reason)},
			kafka.Header{Key: "source_offset", Value: []byte(fmt.Sprint(m.Offset))},
		),
	})
	if err != nil {
		p.onError("dlq")
		return fmt.Errorf("write dlq: %w", err)
	}
	return nil
}

func (p *Processor) backoff(attempt int) time.Duration {
	if p.Backoff != nil {
		return p.Backoff(attempt)
	}
	return time.Duration(300*attempt) * time.Millisecond
}

func (p *Processor) onError(phase string) {
	if p.OnError != nil {
		p.OnError(phase)
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

const notifyTimeout = 2 * time.Second

// Engine é o motor de escrow: coordena ChallengeStore, Ledger, DisputeResolver
// e TransactionLog sobre um Store transacional, e notifica após cada commit.
type Engine struct {
	store    Store
	admins   AdminChecker
	notifier Notifier
	log      *zap.Logger
	metrics  *Metrics

	now    func() time.Time
	newID  func() string
	ledger ledger
	txlog  txLog
}

// Option customiza o Engine (métricas, relógio, gerador de ids).
type Option func(*Engine)

func WithMetrics(m *Metrics) Option { return func(e *Engine) { e.metrics = m } }

func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

func WithIDGenerator(newID func() string) Option { return func(e *Engine) { e.newID = newID } }

// New instancia o motor. notifier pode ser nil (eventos descartados).
func New(store Store, admins AdminChecker, notifier Notifier, log *zap.Logger, opts ...Option) *Engine {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	e := &Engine{
		store:    store,
		admins:   admins,
		notifier: notifier,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.txlog = txLog{now: e.now, newID: e.newID}
	e.ledger = ledger{log: e.txlog}
	return e
}

// outbox acumula eventos gerados dentro da Tx; só são enviados após o commit.
type outbox []events.ChallengeEvent

func (o *outbox) add(ev events.ChallengeEvent) { *o = append(*o, ev) }

// run executa fn numa única Tx e, em caso de commit, publica os eventos.
// Falhas do notifier são logadas e contadas, nunca propagadas.
func (e *Engine) run(ctx context.Context, op string, fn func(tx Tx, out *outbox) error) (err error) {
	defer func() { e.metrics.observe(op, err) }()

	var out outbox
	err = e.store.WithinTx(ctx, func(tx Tx) error {
		out = out[:0]
		return fn(tx, &out)
	})
	if err != nil {
		if !IsExpected(err) {
			e.log.Error("escrow tx failed", zap.String("op", op), zap.Error(err))
		}
		return err
	}
	e.recordPayouts(out)
	e.publish(ctx, out)
	return nil
}

// recordPayouts contabiliza, após o commit, os valores liberados do escrow.
func (e *Engine) recordPayouts(out outbox) {
	for _, ev := range out {
		switch {
		case ev.Type == events.ChallengeCanceled:
			e.metrics.payout("refund", ev.AmountCents)
		case ev.Type == events.ChallengePaid:
			e.metrics.payout("winnings", ev.AmountCents)
		case ev.Type == events.DisputeResolved && ev.WinnerID == "":
			e.metrics.payout("draw", ev.AmountCents)
		case ev.Type == events.DisputeResolved:
			e.metrics.payout("winnings", ev.AmountCents)
		}
	}
}

func (e *Engine) publish(ctx context.Context, out outbox) {
	for _, ev := range out {
		if ev.Ts.IsZero() {
			ev.Ts = e.now()
		}
		nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
		err := e.notifier.Notify(nctx, ev.Type, ev)
		cancel()
		if err != nil {
			e.metrics.notifyFailed(ev.Type)
			e.log.Warn("notify failed",
				zap.String("topic", ev.Type),
				zap.String("challenge_id", ev.ChallengeID),
				zap.Error(err),
			)
		}
	}
}

// requireAdmin aplica a verificação de autorização externa na fronteira do motor.
func (e *Engine) requireAdmin(ctx context.Context, actorID string) error {
	if e.admins == nil || actorID == "" {
		return ErrForbidden
	}
	ok, err := e.admins.IsAdmin(ctx, actorID)
	if err != nil {
		return fmt.Errorf("check admin: %w", err)
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

// GetBalance retorna o saldo disponível do usuário em centavos.
func (e *Engine) GetBalance(ctx context.Context, userID string) (int64, error) {
	u, err := e.store.GetUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	return u.BalanceCents, nil
}

// AdjustBalance aplica um ajuste administrativo (positivo ou negativo).
func (e *Engine) AdjustBalance(ctx context.Context, userID string, amount int64, reason, actorID string) (int64, error) {
	if err := e.requireAdmin(ctx, actorID); err != nil {
		e.metrics.observe("adjust", err)
		return 0, err
	}
	if reason == "" {
		e.metrics.observe("adjust", ErrInvalidRequest)
		return 0, fmt.Errorf("reason required: %w", ErrInvalidRequest)
	}

	var balance int64
	err := e.run(ctx, "adjust", func(tx Tx, out *outbox) error {
		var err error
		balance, err = e.ledger.adjust(ctx, tx, userID, amount, reason, actorID)
		if err != nil {
			return err
		}
		out.add(events.ChallengeEvent{
			Type:        events.BalanceAdjusted,
			UserID:      userID,
			AmountCents: amount,
			Reason:      reason,
		})
		return nil
	})
	if err != nil {
		return 0, err
	}
	e.log.Info("balance adjusted",
		zap.String("user_id", userID),
		zap.String("actor_id", actorID),
		zap.Int64("amount_cents", amount),
		zap.Int64("balance_cents", balance),
	)
	return balance, nil
}

// Deposit credita um depósito pré-validado pela entrada de pagamentos.
// Retorna applied=false quando externalRef já havia sido creditado.
func (e *Engine) Deposit(ctx context.Context, userID string, amount int64, externalRef string) (balance int64, applied bool, err error) {
	if userID == "" {
		e.metrics.observe("deposit", ErrInvalidRequest)
		return 0, false, fmt.Errorf("user id required: %w", ErrInvalidRequest)
	}
	if amount <= 0 {
		e.metrics.observe("deposit", ErrInvalidAmount)
		return 0, false, ErrInvalidAmount
	}
	err = e.run(ctx, "deposit", func(tx Tx, out *outbox) error {
		var err error
		balance, applied, err = e.ledger.deposit(ctx, tx, userID, amount, externalRef)
		if err != nil || !applied {
			return err
		}
		out.add(events.ChallengeEvent{
			Type:        events.BalanceDeposited,
			UserID:      userID,
			AmountCents: amount,
		})
		return nil
	})
	if err != nil {
		return 0, false, err
	}
	e.log.Info("deposit processed",
		zap.String("user_id", userID),
		zap.String("external_ref", externalRef),
		zap.Bool("applied", applied),
		zap.Int64("balance_cents", balance),
	)
	return balance, applied, nil
}

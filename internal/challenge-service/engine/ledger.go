package engine

import (
	"context"
	"fmt"
	"sort"
	"strconv"
)

// ledger concentra as primitivas de movimentação de saldo. Cada mutação é
// pareada com um append no txLog dentro da mesma Tx.
type ledger struct {
	log txLog
}

// entry descreve a transação de auditoria que acompanha uma movimentação.
type entry struct {
	typ         TxType
	referenceID string
	description string
	metadata    map[string]string
}

// lock debita amount do saldo disponível. É o único ponto que verifica
// suficiência de saldo; o chamador não deve checar antes.
func (l ledger) lock(ctx context.Context, tx Tx, userID string, amount int64, e entry) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	u, err := tx.LockUser(ctx, userID)
	if err != nil {
		return err
	}
	if u.BalanceCents < amount {
		return fmt.Errorf("user %s needs %d but has %d: %w", userID, amount, u.BalanceCents, ErrInsufficientBalance)
	}
	if _, err := tx.AddBalance(ctx, userID, -amount); err != nil {
		return err
	}
	_, err = l.log.append(ctx, tx, Transaction{
		UserID:      userID,
		AmountCents: -amount,
		Type:        e.typ,
		Description: e.description,
		ReferenceID: e.referenceID,
		Metadata:    e.metadata,
	})
	return err
}

// release credita amount ao usuário (reembolso ou prêmio, distinguidos pelo tipo).
func (l ledger) release(ctx context.Context, tx Tx, userID string, amount int64, e entry) error {
	if amount < 0 {
		return ErrInvalidAmount
	}
	if amount == 0 {
		return nil
	}
	if _, err := tx.LockUser(ctx, userID); err != nil {
		return err
	}
	if _, err := tx.AddBalance(ctx, userID, amount); err != nil {
		return err
	}
	_, err := l.log.append(ctx, tx, Transaction{
		UserID:      userID,
		AmountCents: amount,
		Type:        e.typ,
		Description: e.description,
		ReferenceID: e.referenceID,
		Metadata:    e.metadata,
	})
	return err
}

// adjust aplica um crédito/débito administrativo fora de qualquer challenge.
func (l ledger) adjust(ctx context.Context, tx Tx, userID string, amount int64, reason, actorID string) (int64, error) {
	if amount == 0 {
		return 0, ErrInvalidAmount
	}
	u, err := tx.LockUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if u.BalanceCents+amount < 0 {
		return 0, fmt.Errorf("adjust %d on balance %d: %w", amount, u.BalanceCents, ErrInsufficientBalance)
	}
	bal, err := tx.AddBalance(ctx, userID, amount)
	if err != nil {
		return 0, err
	}
	_, err = l.log.append(ctx, tx, Transaction{
		UserID:      userID,
		AmountCents: amount,
		Type:        TxAdminAdjustment,
		Description: "Admin adjustment: " + reason,
		Metadata: map[string]string{
			"adjustedBy": actorID,
			"reason":     reason,
		},
	})
	return bal, err
}

// deposit credita um depósito já validado. Idempotente por externalRef:
// um segundo evento com a mesma referência não credita de novo.
func (l ledger) deposit(ctx context.Context, tx Tx, userID string, amount int64, externalRef string) (int64, bool, error) {
	u, err := tx.EnsureUser(ctx, userID)
	if err != nil {
		return 0, false, err
	}
	if externalRef != "" {
		seen, err := tx.HasTransaction(ctx, userID, TxDeposit, externalRef)
		if err != nil {
			return 0, false, err
		}
		if seen {
			return u.BalanceCents, false, nil
		}
	}
	bal, err := tx.AddBalance(ctx, userID, amount)
	if err != nil {
		return 0, false, err
	}
	_, err = l.log.append(ctx, tx, Transaction{
		UserID:      userID,
		AmountCents: amount,
		Type:        TxDeposit,
		Description: "Wallet deposit",
		ReferenceID: externalRef,
		Metadata:    map[string]string{"amount_cents": strconv.FormatInt(amount, 10)},
	})
	return bal, true, err
}

// lockUsers bloqueia vários usuários em ordem de id, evitando deadlock entre
// operações concorrentes que tocam o mesmo par.
func lockUsers(ctx context.Context, tx Tx, ids ...string) error {
	sorted := append([]string(nil), ids...)
	sort.Strings(sorted)
	for i, id := range sorted {
		if id == "" || (i > 0 && sorted[i-1] == id) {
			continue
		}
		if _, err := tx.LockUser(ctx, id); err != nil {
			return err
		}
	}
	return nil
}

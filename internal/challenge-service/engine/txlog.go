package engine

import (
	"context"
	"fmt"
	"time"
)

// txLog é o log de auditoria append-only. append é a única mutação e sempre
// roda na mesma Tx que a alteração de saldo correspondente.
type txLog struct {
	now   func() time.Time
	newID func() string
}

func (l txLog) append(ctx context.Context, tx Tx, t Transaction) (Transaction, error) {
	t.ID = l.newID()
	t.CreatedAt = l.now()
	if err := tx.AppendTransaction(ctx, &t); err != nil {
		return Transaction{}, fmt.Errorf("append transaction: %w", err)
	}
	return t, nil
}

// SumByReference soma (com sinal) todas as transações de uma referência.
// Para um challenge PAID ou CANCELED o resultado deve ser zero.
func (e *Engine) SumByReference(ctx context.Context, referenceID string) (int64, error) {
	return e.store.SumByReference(ctx, referenceID)
}

// ListTransactions retorna o histórico do usuário, mais recente primeiro.
func (e *Engine) ListTransactions(ctx context.Context, userID string) ([]Transaction, error) {
	if _, err := e.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return e.store.ListTransactionsByUser(ctx, userID)
}

// ListTransactionsByReference retorna as entradas causadas por um challenge/disputa.
func (e *Engine) ListTransactionsByReference(ctx context.Context, referenceID string) ([]Transaction, error) {
	return e.store.ListTransactionsByReference(ctx, referenceID)
}

// Audit retorna as entradas e a soma de uma referência (somente administradores).
func (e *Engine) Audit(ctx context.Context, referenceID, actorID string) (int64, []Transaction, error) {
	if err := e.requireAdmin(ctx, actorID); err != nil {
		return 0, nil, err
	}
	txs, err := e.store.ListTransactionsByReference(ctx, referenceID)
	if err != nil {
		return 0, nil, err
	}
	if len(txs) == 0 {
		return 0, nil, fmt.Errorf("reference %s: %w", referenceID, ErrNotFound)
	}
	var sum int64
	for _, t := range txs {
		sum += t.AmountCents
	}
	return sum, txs, nil
}

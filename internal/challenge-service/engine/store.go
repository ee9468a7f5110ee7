package engine

import (
	"context"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// Store é a persistência do motor. Toda operação que altera estado roda dentro
// de WithinTx: saldos, challenge/dispute e log de transações confirmam juntos
// ou nada é aplicado.
type Store interface {
	Reader
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
}

// Reader expõe consultas fora de transação (leitura comprometida).
type Reader interface {
	GetUser(ctx context.Context, userID string) (User, error)
	GetChallenge(ctx context.Context, challengeID string) (Challenge, error)
	GetDispute(ctx context.Context, disputeID string) (Dispute, error)
	ListChallenges(ctx context.Context, status Status, limit int) ([]Challenge, error)
	ListDisputes(ctx context.Context, status DisputeStatus) ([]Dispute, error)
	// ListDisputesByChallenge retorna as disputas do challenge, mais recentes primeiro.
	ListDisputesByChallenge(ctx context.Context, challengeID string) ([]Dispute, error)
	ListTransactionsByUser(ctx context.Context, userID string) ([]Transaction, error)
	ListTransactionsByReference(ctx context.Context, referenceID string) ([]Transaction, error)
	SumByReference(ctx context.Context, referenceID string) (int64, error)
}

// Tx é a unidade atômica de trabalho. Os métodos Lock* bloqueiam a linha até o
// fim da transação. Ordem de lock: challenge, depois dispute, depois usuários
// (ordenados por id).
type Tx interface {
	LockChallenge(ctx context.Context, challengeID string) (Challenge, error)
	InsertChallenge(ctx context.Context, c *Challenge) error
	UpdateChallenge(ctx context.Context, c *Challenge) error

	GetDispute(ctx context.Context, disputeID string) (Dispute, error)
	LockDispute(ctx context.Context, disputeID string) (Dispute, error)
	InsertDispute(ctx context.Context, d *Dispute) error
	UpdateDispute(ctx context.Context, d *Dispute) error

	GetUser(ctx context.Context, userID string) (User, error)
	LockUser(ctx context.Context, userID string) (User, error)
	// EnsureUser bloqueia o usuário, criando-o com saldo zero se não existir.
	EnsureUser(ctx context.Context, userID string) (User, error)
	// AddBalance aplica delta ao saldo; retorna ErrInsufficientBalance se o
	// resultado ficaria negativo (nada é alterado nesse caso).
	AddBalance(ctx context.Context, userID string, delta int64) (newBalance int64, err error)

	AppendTransaction(ctx context.Context, t *Transaction) error
	HasTransaction(ctx context.Context, userID string, typ TxType, referenceID string) (bool, error)
}

// AdminChecker é a verificação de autorização externa exigida antes de resolver disputas.
type AdminChecker interface {
	IsAdmin(ctx context.Context, actorID string) (bool, error)
}

// Notifier recebe eventos de ciclo de vida após o commit (fire-and-forget).
type Notifier interface {
	Notify(ctx context.Context, topic string, ev events.ChallengeEvent) error
}

// NopNotifier descarta todos os eventos.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, string, events.ChallengeEvent) error { return nil }

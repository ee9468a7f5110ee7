package events

import "time"

// Tipos de evento emitidos pelo challenge-service após cada commit.
const (
	ChallengeCreated         = "challenge.created"
	ChallengeUpdated         = "challenge.updated"
	ChallengeJoined          = "challenge.joined"
	ChallengeCanceled        = "challenge.canceled"
	ChallengeResultSubmitted = "challenge.result_submitted"
	ChallengeDisputed        = "challenge.disputed"
	ChallengePaid            = "challenge.paid"
	DisputeResolved          = "dispute.resolved"
	BalanceAdjusted          = "balance.adjusted"
	BalanceDeposited         = "balance.deposited"
)

// ChallengeEvent é o payload publicado no tópico "challenge_events"
// e no canal Redis de broadcast.
type ChallengeEvent struct {
	Type        string    `json:"type"`
	ChallengeID string    `json:"challengeId,omitempty"`
	DisputeID   string    `json:"disputeId,omitempty"`
	UserID      string    `json:"userId,omitempty"` // ator da operação
	Status      string    `json:"status,omitempty"`
	WinnerID    string    `json:"winnerId,omitempty"`
	AmountCents int64     `json:"amount_cents,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	Ts          time.Time `json:"ts"`
}

// Key retorna a chave de particionamento (challengeId, ou userId para eventos de saldo).
func (e ChallengeEvent) Key() string {
	if e.ChallengeID != "" {
		return e.ChallengeID
	}
	return e.UserID
}

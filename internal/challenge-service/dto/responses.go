package dto

import (
	"time"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

type ChallengeResponse struct {
	ID                        string    `json:"id"`
	CreatorID                 string    `json:"creatorId"`
	OpponentID                string    `json:"opponentId,omitempty"`
	InvitedOpponentID         string    `json:"invitedOpponentId,omitempty"`
	Stake                     string    `json:"stake"`
	Type                      string    `json:"type"`
	Status                    string    `json:"status"`
	LockedFunds               string    `json:"lockedFunds"`
	CreatorSubmittedWinnerID  string    `json:"creatorSubmittedWinnerId,omitempty"`
	OpponentSubmittedWinnerID string    `json:"opponentSubmittedWinnerId,omitempty"`
	WinnerID                  string    `json:"winnerId,omitempty"`
	DisputeReason             string    `json:"disputeReason,omitempty"`
	CreatedAt                 time.Time `json:"createdAt"`
	UpdatedAt                 time.Time `json:"updatedAt"`
}

func FromChallenge(c engine.Challenge) ChallengeResponse {
	return ChallengeResponse{
		ID:                        c.ID,
		CreatorID:                 c.CreatorID,
		OpponentID:                c.OpponentID,
		InvitedOpponentID:         c.InvitedOpponentID,
		Stake:                     FormatAmount(c.StakeCents),
		Type:                      c.Type,
		Status:                    string(c.Status),
		LockedFunds:               FormatAmount(c.LockedFundsCents),
		CreatorSubmittedWinnerID:  c.CreatorSubmittedWinnerID,
		OpponentSubmittedWinnerID: c.OpponentSubmittedWinnerID,
		WinnerID:                  c.WinnerID,
		DisputeReason:             c.DisputeReason,
		CreatedAt:                 c.CreatedAt,
		UpdatedAt:                 c.UpdatedAt,
	}
}

func FromChallenges(cs []engine.Challenge) []ChallengeResponse {
	out := make([]ChallengeResponse, 0, len(cs))
	for _, c := range cs {
		out = append(out, FromChallenge(c))
	}
	return out
}

// SubmitResultResponse achata o SubmitOutcome para o cliente.
type SubmitResultResponse struct {
	Outcome    string            `json:"outcome"` // PENDING | COMPLETED | DISPUTED
	Message    string            `json:"message,omitempty"`
	WaitingFor string            `json:"waitingFor,omitempty"`
	WinnerID   string            `json:"winnerId,omitempty"`
	DisputeID  string            `json:"disputeId,omitempty"`
	Challenge  ChallengeResponse `json:"challenge"`
}

func FromSubmitResult(r engine.SubmitResult) SubmitResultResponse {
	resp := SubmitResultResponse{
		Outcome:   string(r.Outcome.Kind()),
		DisputeID: r.DisputeID,
		Challenge: FromChallenge(r.Challenge),
	}
	switch o := r.Outcome.(type) {
	case engine.Pending:
		resp.Message = "pending other player"
		resp.WaitingFor = o.WaitingFor
	case engine.Completed:
		resp.WinnerID = o.WinnerID
	case engine.Disputed:
		resp.Message = o.Reason
	}
	return resp
}

type DisputeResponse struct {
	ID          string     `json:"id"`
	ChallengeID string     `json:"challengeId"`
	Reason      string     `json:"reason"`
	Status      string     `json:"status"`
	OpenedBy    string     `json:"openedBy"`
	Players     []string   `json:"participants"`
	ResolvedBy  string     `json:"resolvedBy,omitempty"`
	WinnerID    string     `json:"winnerId,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	ResolvedAt  *time.Time `json:"resolvedAt,omitempty"`
}

func FromDispute(d engine.Dispute) DisputeResponse {
	return DisputeResponse{
		ID:          d.ID,
		ChallengeID: d.ChallengeID,
		Reason:      d.Reason,
		Status:      string(d.Status),
		OpenedBy:    d.OpenedBy,
		Players:     d.Participants(),
		ResolvedBy:  d.ResolvedBy,
		WinnerID:    d.WinnerID,
		CreatedAt:   d.CreatedAt,
		ResolvedAt:  d.ResolvedAt,
	}
}

func FromDisputes(ds []engine.Dispute) []DisputeResponse {
	out := make([]DisputeResponse, 0, len(ds))
	for _, d := range ds {
		out = append(out, FromDispute(d))
	}
	return out
}

type ResolutionResponse struct {
	Dispute   DisputeResponse   `json:"dispute"`
	Challenge ChallengeResponse `json:"challenge"`
	Draw      bool              `json:"draw"`
	Payouts   map[string]string `json:"payouts"`
}

func FromResolution(r engine.Resolution) ResolutionResponse {
	payouts := make(map[string]string, len(r.Payouts))
	for userID, cents := range r.Payouts {
		payouts[userID] = FormatAmount(cents)
	}
	return ResolutionResponse{
		Dispute:   FromDispute(r.Dispute),
		Challenge: FromChallenge(r.Challenge),
		Draw:      r.Draw(),
		Payouts:   payouts,
	}
}

type BalanceResponse struct {
	UserID       string `json:"userId"`
	Balance      string `json:"balance"`
	BalanceCents int64  `json:"balance_cents"`
}

func NewBalance(userID string, cents int64) BalanceResponse {
	return BalanceResponse{UserID: userID, Balance: FormatAmount(cents), BalanceCents: cents}
}

type TransactionResponse struct {
	ID          string            `json:"id"`
	UserID      string            `json:"userId"`
	Amount      string            `json:"amount"`
	Type        string            `json:"type"`
	Description string            `json:"description"`
	ReferenceID string            `json:"referenceId,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	CreatedAt   time.Time         `json:"createdAt"`
}

func FromTransactions(ts []engine.Transaction) []TransactionResponse {
	out := make([]TransactionResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, TransactionResponse{
			ID:          t.ID,
			UserID:      t.UserID,
			Amount:      FormatAmount(t.AmountCents),
			Type:        string(t.Type),
			Description: t.Description,
			ReferenceID: t.ReferenceID,
			Metadata:    t.Metadata,
			CreatedAt:   t.CreatedAt,
		})
	}
	return out
}

// AuditResponse: para challenges PAID/CANCELED, Sum deve ser "0.00".
type AuditResponse struct {
	ReferenceID  string                `json:"referenceId"`
	Sum          string                `json:"sum"`
	Balanced     bool                  `json:"balanced"`
	Transactions []TransactionResponse `json:"transactions"`
}

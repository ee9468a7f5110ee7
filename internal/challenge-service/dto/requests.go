package dto

// CreateChallengeRequest: stake em decimal ("10.00"); opponentId convida um
// oponente específico.
type CreateChallengeRequest struct {
	Stake      string `json:"stake"`
	Type       string `json:"type"`
	OpponentID string `json:"opponentId,omitempty"`
}

// UpdateChallengeRequest edita um challenge OPEN; campos ausentes ficam
// inalterados e opponentId "" remove o convite.
type UpdateChallengeRequest struct {
	Stake      *string `json:"stake,omitempty"`
	Type       *string `json:"type,omitempty"`
	OpponentID *string `json:"opponentId,omitempty"`
}

type SubmitResultRequest struct {
	WinnerID string `json:"winnerId"`
}

// ConfirmResultRequest: confirmed=false contesta a submissão do outro lado.
type ConfirmResultRequest struct {
	Confirmed bool   `json:"confirmed"`
	Reason    string `json:"reason,omitempty"`
}

type OpenDisputeRequest struct {
	Reason string `json:"reason"`
}

// ResolveDisputeRequest: winnerId ausente ou null resolve como empate.
type ResolveDisputeRequest struct {
	WinnerID *string `json:"winnerId"`
}

type AdjustBalanceRequest struct {
	UserID string `json:"userId"`
	Amount string `json:"amount"` // com sinal: "-5.00" debita
	Reason string `json:"reason"`
}

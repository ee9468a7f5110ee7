package engine

import "time"

// Status é o estado de um challenge na máquina de estados.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
	StatusDisputed   Status = "DISPUTED"
	StatusPaid       Status = "PAID"
	StatusCanceled   Status = "CANCELED"
)

// Terminal indica se o status não admite mais transições.
func (s Status) Terminal() bool { return s == StatusPaid || s == StatusCanceled }

// DisputeStatus é o estado de uma disputa.
type DisputeStatus string

const (
	DisputePending  DisputeStatus = "PENDING"
	DisputeResolved DisputeStatus = "RESOLVED"
)

// TxType classifica cada movimentação de saldo no log de transações.
type TxType string

const (
	TxChallengeEntry    TxType = "CHALLENGE_ENTRY"
	TxChallengeRefund   TxType = "CHALLENGE_REFUND"
	TxChallengeWinnings TxType = "CHALLENGE_WINNINGS"
	TxAdminAdjustment   TxType = "ADMIN_ADJUSTMENT"
	TxDeposit           TxType = "DEPOSIT"
)

// DisagreementReason é o motivo gravado quando os dois lados divergem sobre o vencedor.
const DisagreementReason = "players disagree on the winner"

// User guarda apenas o que o motor precisa: id e saldo em centavos.
type User struct {
	ID           string
	BalanceCents int64
	IsAdmin      bool
}

// Challenge é o registro persistido de um desafio entre dois participantes.
type Challenge struct {
	ID                        string
	CreatorID                 string
	OpponentID                string // vazio até o join
	InvitedOpponentID         string // opcional: só este usuário pode entrar
	StakeCents                int64
	Type                      string
	Status                    Status
	LockedFundsCents          int64
	CreatorSubmittedWinnerID  string
	OpponentSubmittedWinnerID string
	WinnerID                  string
	DisputeReason             string
	CreatedAt                 time.Time
	UpdatedAt                 time.Time
}

// IsParticipant indica se o usuário é criador ou oponente.
func (c *Challenge) IsParticipant(userID string) bool {
	return userID != "" && (userID == c.CreatorID || userID == c.OpponentID)
}

// Dispute registra uma divergência pendente de decisão administrativa.
// Nunca é apagada; é encerrada ao ser marcada RESOLVED.
type Dispute struct {
	ID          string
	ChallengeID string
	Reason      string
	Status      DisputeStatus
	OpenedBy    string
	CreatorID   string
	OpponentID  string
	ResolvedBy  string
	WinnerID    string // vazio em caso de empate
	CreatedAt   time.Time
	ResolvedAt  *time.Time
}

// Participants retorna os dois usuários envolvidos na disputa.
func (d *Dispute) Participants() []string { return []string{d.CreatorID, d.OpponentID} }

// Transaction é uma entrada append-only do log de auditoria.
// Amount é assinado: negativo = débito.
type Transaction struct {
	ID          string
	UserID      string
	AmountCents int64
	Type        TxType
	Description string
	ReferenceID string
	Metadata    map[string]string
	CreatedAt   time.Time
}

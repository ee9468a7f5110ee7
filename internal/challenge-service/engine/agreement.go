package engine

// OutcomeKind é a forma serializável do resultado de uma submissão.
type OutcomeKind string

const (
	OutcomePendingKind   OutcomeKind = "PENDING"
	OutcomeCompletedKind OutcomeKind = "COMPLETED"
	OutcomeDisputedKind  OutcomeKind = "DISPUTED"
)

// SubmitOutcome é o resultado da reconciliação das duas submissões:
// Pending, Completed ou Disputed.
type SubmitOutcome interface {
	Kind() OutcomeKind
}

// Pending: só um lado submeteu; aguardando o outro.
type Pending struct {
	WaitingFor string
}

// Completed: ambos apontaram o mesmo vencedor.
type Completed struct {
	WinnerID string
}

// Disputed: as submissões divergem.
type Disputed struct {
	Reason string
}

func (Pending) Kind() OutcomeKind   { return OutcomePendingKind }
func (Completed) Kind() OutcomeKind { return OutcomeCompletedKind }
func (Disputed) Kind() OutcomeKind  { return OutcomeDisputedKind }

// Reconcile compara as submissões do criador e do oponente.
// Deve ser chamada com o lock do challenge, depois de gravar a submissão atual.
func Reconcile(c Challenge) SubmitOutcome {
	creator, opponent := c.CreatorSubmittedWinnerID, c.OpponentSubmittedWinnerID
	switch {
	case creator == "" && opponent == "":
		return Pending{}
	case creator == "":
		return Pending{WaitingFor: c.CreatorID}
	case opponent == "":
		return Pending{WaitingFor: c.OpponentID}
	case creator == opponent:
		return Completed{WinnerID: creator}
	default:
		return Disputed{Reason: DisagreementReason}
	}
}

// submittedBy retorna a submissão já gravada para o lado do usuário.
func submittedBy(c *Challenge, userID string) string {
	if userID == c.CreatorID {
		return c.CreatorSubmittedWinnerID
	}
	return c.OpponentSubmittedWinnerID
}

// otherSide retorna a submissão do outro participante.
func otherSide(c *Challenge, userID string) string {
	if userID == c.CreatorID {
		return c.OpponentSubmittedWinnerID
	}
	return c.CreatorSubmittedWinnerID
}

func recordSubmission(c *Challenge, userID, winnerID string) {
	if userID == c.CreatorID {
		c.CreatorSubmittedWinnerID = winnerID
		return
	}
	c.OpponentSubmittedWinnerID = winnerID
}

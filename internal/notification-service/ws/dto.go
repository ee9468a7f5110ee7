package ws

// ClientMsg é a mensagem recebida do cliente WebSocket.
// Type: subscribe | unsubscribe | ping. Em subscribe/unsubscribe informar
// challengeId (atualizações do challenge) ou userId (eventos de saldo).
type ClientMsg struct {
	Type        string `json:"type"`
	ChallengeID string `json:"challengeId,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

func (m ClientMsg) topic() string {
	switch {
	case m.ChallengeID != "":
		return challengeTopic(m.ChallengeID)
	case m.UserID != "":
		return userTopic(m.UserID)
	default:
		return ""
	}
}

func challengeTopic(id string) string { return "challenge:" + id }
func userTopic(id string) string      { return "user:" + id }

package topics

const (
	// Challenges
	ChallengeEvents = "challenge_events"

	// Depósitos (entrada de pagamentos já validada)
	DepositCredited = "deposit_credited"

	// DLQs
	DepositCreditedDLQ = "deposit_credited_dlq"
)

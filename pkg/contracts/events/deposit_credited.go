package events

// DepositCredited é o evento já validado pelo provedor de pagamentos,
// consumido pelo deposit-worker para creditar saldo.
type DepositCredited struct {
	UserID      string `json:"userId"`
	AmountCents int64  `json:"amount_cents"`
	ExternalRef string `json:"external_ref"` // ex: id da sessão de checkout; garante idempotência
	TsUnixMs    int64  `json:"ts_unix_ms"`
}

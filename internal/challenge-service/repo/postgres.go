package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

// Postgres implementa engine.Store sobre database/sql + lib/pq, com lock
// pessimista (SELECT ... FOR UPDATE) nas linhas envolvidas.
type Postgres struct{ db *sql.DB }

func NewPostgres(db *sql.DB) *Postgres { return &Postgres{db: db} }

// queryer é satisfeito por *sql.DB e *sql.Tx.
type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

const (
	challengeCols = `id, creator_id, opponent_id, invited_opponent_id, stake_cents, type, status,
		locked_funds_cents, creator_submitted_winner_id, opponent_submitted_winner_id, winner_id,
		dispute_reason, created_at, updated_at`
	disputeCols = `id, challenge_id, reason, status, opened_by, creator_id, opponent_id,
		resolved_by, winner_id, created_at, resolved_at`
	txCols = `id, user_id, amount_cents, type, description, reference_id, metadata, created_at`
)

// WithinTx abre uma transação READ COMMITTED; os locks de linha garantem a
// serialização entre operações concorrentes sobre o mesmo challenge/usuário.
func (p *Postgres) WithinTx(ctx context.Context, fn func(tx engine.Tx) error) error {
	tx, err := p.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&pgTx{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// IsAdmin implementa engine.AdminChecker via users.is_admin.
func (p *Postgres) IsAdmin(ctx context.Context, actorID string) (bool, error) {
	var admin bool
	err := p.db.QueryRowContext(ctx, `SELECT is_admin FROM users WHERE id=$1`, actorID).Scan(&admin)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return admin, err
}

// UpsertUser provisiona um usuário (seed / ferramentas administrativas).
func (p *Postgres) UpsertUser(ctx context.Context, id string, balanceCents int64, isAdmin bool) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users(id, balance_cents, is_admin) VALUES($1,$2,$3)
		ON CONFLICT (id) DO UPDATE SET balance_cents=EXCLUDED.balance_cents, is_admin=EXCLUDED.is_admin,
			version=users.version+1, updated_at=NOW()`,
		id, balanceCents, isAdmin)
	return err
}

func (p *Postgres) GetUser(ctx context.Context, userID string) (engine.User, error) {
	return getUser(ctx, p.db, userID, false)
}

func (p *Postgres) GetChallenge(ctx context.Context, challengeID string) (engine.Challenge, error) {
	return getChallenge(ctx, p.db, challengeID, false)
}

func (p *Postgres) GetDispute(ctx context.Context, disputeID string) (engine.Dispute, error) {
	return getDispute(ctx, p.db, disputeID, false)
}

func (p *Postgres) ListChallenges(ctx context.Context, status engine.Status, limit int) ([]engine.Challenge, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := p.db.QueryContext(ctx, `SELECT `+challengeCols+` FROM challenges
		WHERE ($1 = '' OR status = $1) ORDER BY created_at DESC, id LIMIT $2`, string(status), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Challenge
	for rows.Next() {
		c, err := scanChallenge(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (p *Postgres) ListDisputes(ctx context.Context, status engine.DisputeStatus) ([]engine.Dispute, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+disputeCols+` FROM disputes
		WHERE ($1 = '' OR status = $1) ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListDisputesByChallenge(ctx context.Context, challengeID string) ([]engine.Dispute, error) {
	rows, err := p.db.QueryContext(ctx, `SELECT `+disputeCols+` FROM disputes
		WHERE challenge_id=$1 ORDER BY created_at DESC, id DESC`, challengeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Dispute
	for rows.Next() {
		d, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (p *Postgres) ListTransactionsByUser(ctx context.Context, userID string) ([]engine.Transaction, error) {
	return listTransactions(ctx, p.db, `SELECT `+txCols+` FROM transactions
		WHERE user_id=$1 ORDER BY created_at DESC, id DESC`, userID)
}

func (p *Postgres) ListTransactionsByReference(ctx context.Context, referenceID string) ([]engine.Transaction, error) {
	return listTransactions(ctx, p.db, `SELECT `+txCols+` FROM transactions
		WHERE reference_id=$1 ORDER BY created_at, id`, referenceID)
}

func (p *Postgres) SumByReference(ctx context.Context, referenceID string) (int64, error) {
	var sum int64
	err := p.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(amount_cents),0) FROM transactions WHERE reference_id=$1`, referenceID).Scan(&sum)
	return sum, err
}

// pgTx implementa engine.Tx sobre uma *sql.Tx aberta.
type pgTx struct{ q queryer }

func (t *pgTx) LockChallenge(ctx context.Context, challengeID string) (engine.Challenge, error) {
	return getChallenge(ctx, t.q, challengeID, true)
}

func (t *pgTx) InsertChallenge(ctx context.Context, c *engine.Challenge) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO challenges(`+challengeCols+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
		c.ID, c.CreatorID, nullString(c.OpponentID), nullString(c.InvitedOpponentID), c.StakeCents, c.Type,
		string(c.Status), c.LockedFundsCents, nullString(c.CreatorSubmittedWinnerID),
		nullString(c.OpponentSubmittedWinnerID), nullString(c.WinnerID), nullString(c.DisputeReason),
		c.CreatedAt, c.UpdatedAt)
	return err
}

func (t *pgTx) UpdateChallenge(ctx context.Context, c *engine.Challenge) error {
	res, err := t.q.ExecContext(ctx, `UPDATE challenges SET opponent_id=$2, status=$3, locked_funds_cents=$4,
		creator_submitted_winner_id=$5, opponent_submitted_winner_id=$6, winner_id=$7, dispute_reason=$8,
		updated_at=$9, stake_cents=$10, type=$11, invited_opponent_id=$12 WHERE id=$1`,
		c.ID, nullString(c.OpponentID), string(c.Status), c.LockedFundsCents,
		nullString(c.CreatorSubmittedWinnerID), nullString(c.OpponentSubmittedWinnerID),
		nullString(c.WinnerID), nullString(c.DisputeReason), c.UpdatedAt,
		c.StakeCents, c.Type, nullString(c.InvitedOpponentID))
	return expectOne(res, err)
}

func (t *pgTx) GetDispute(ctx context.Context, disputeID string) (engine.Dispute, error) {
	return getDispute(ctx, t.q, disputeID, false)
}

func (t *pgTx) LockDispute(ctx context.Context, disputeID string) (engine.Dispute, error) {
	return getDispute(ctx, t.q, disputeID, true)
}

func (t *pgTx) InsertDispute(ctx context.Context, d *engine.Dispute) error {
	_, err := t.q.ExecContext(ctx, `INSERT INTO disputes(`+disputeCols+`)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		d.ID, d.ChallengeID, d.Reason, string(d.Status), d.OpenedBy, d.CreatorID, d.OpponentID,
		nullString(d.ResolvedBy), nullString(d.WinnerID), d.CreatedAt, d.ResolvedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return fmt.Errorf("challenge %s already has an active dispute: %w", d.ChallengeID, engine.ErrInvalidState)
	}
	return err
}

func (t *pgTx) UpdateDispute(ctx context.Context, d *engine.Dispute) error {
	res, err := t.q.ExecContext(ctx, `UPDATE disputes SET status=$2, resolved_by=$3, winner_id=$4, resolved_at=$5
		WHERE id=$1`,
		d.ID, string(d.Status), nullString(d.ResolvedBy), nullString(d.WinnerID), d.ResolvedAt)
	return expectOne(res, err)
}

func (t *pgTx) GetUser(ctx context.Context, userID string) (engine.User, error) {
	return getUser(ctx, t.q, userID, false)
}

func (t *pgTx) LockUser(ctx context.Context, userID string) (engine.User, error) {
	return getUser(ctx, t.q, userID, true)
}

func (t *pgTx) EnsureUser(ctx context.Context, userID string) (engine.User, error) {
	if _, err := t.q.ExecContext(ctx,
		`INSERT INTO users(id, balance_cents) VALUES($1,0) ON CONFLICT (id) DO NOTHING`, userID); err != nil {
		return engine.User{}, err
	}
	return getUser(ctx, t.q, userID, true)
}

// AddBalance aplica o delta com a guarda de não-negatividade na própria query.
func (t *pgTx) AddBalance(ctx context.Context, userID string, delta int64) (int64, error) {
	var bal int64
	err := t.q.QueryRowContext(ctx, `UPDATE users SET balance_cents = balance_cents + $1,
		version = version + 1, updated_at = NOW()
		WHERE id=$2 AND balance_cents + $1 >= 0 RETURNING balance_cents`, delta, userID).Scan(&bal)
	if err == sql.ErrNoRows {
		if _, gerr := getUser(ctx, t.q, userID, false); gerr != nil {
			return 0, gerr
		}
		return 0, engine.ErrInsufficientBalance
	}
	return bal, err
}

func (t *pgTx) AppendTransaction(ctx context.Context, tr *engine.Transaction) error {
	meta, err := json.Marshal(tr.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if tr.Metadata == nil {
		meta = []byte("{}")
	}
	_, err = t.q.ExecContext(ctx, `INSERT INTO transactions(`+txCols+`) VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		tr.ID, tr.UserID, tr.AmountCents, string(tr.Type), tr.Description, nullString(tr.ReferenceID),
		meta, tr.CreatedAt)
	return err
}

func (t *pgTx) HasTransaction(ctx context.Context, userID string, typ engine.TxType, referenceID string) (bool, error) {
	var exists bool
	err := t.q.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM transactions
		WHERE user_id=$1 AND type=$2 AND reference_id=$3)`, userID, string(typ), referenceID).Scan(&exists)
	return exists, err
}

func getUser(ctx context.Context, q queryer, userID string, forUpdate bool) (engine.User, error) {
	query := `SELECT id, balance_cents, is_admin FROM users WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	var u engine.User
	err := q.QueryRowContext(ctx, query, userID).Scan(&u.ID, &u.BalanceCents, &u.IsAdmin)
	if err == sql.ErrNoRows {
		return engine.User{}, engine.ErrNotFound
	}
	return u, err
}

func getChallenge(ctx context.Context, q queryer, id string, forUpdate bool) (engine.Challenge, error) {
	query := `SELECT ` + challengeCols + ` FROM challenges WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	c, err := scanChallenge(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return engine.Challenge{}, engine.ErrNotFound
	}
	return c, err
}

func getDispute(ctx context.Context, q queryer, id string, forUpdate bool) (engine.Dispute, error) {
	query := `SELECT ` + disputeCols + ` FROM disputes WHERE id=$1`
	if forUpdate {
		query += ` FOR UPDATE`
	}
	d, err := scanDispute(q.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return engine.Dispute{}, engine.ErrNotFound
	}
	return d, err
}

type scanner interface{ Scan(dest ...any) error }

func scanChallenge(s scanner) (engine.Challenge, error) {
	var (
		c                 engine.Challenge
		status            string
		opponent, invited sql.NullString
		creatorSub        sql.NullString
		opponentSub       sql.NullString
		winner, reason    sql.NullString
	)
	err := s.Scan(&c.ID, &c.CreatorID, &opponent, &invited, &c.StakeCents, &c.Type, &status,
		&c.LockedFundsCents, &creatorSub, &opponentSub, &winner, &reason, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return engine.Challenge{}, err
	}
	c.Status = engine.Status(status)
	c.OpponentID = opponent.String
	c.InvitedOpponentID = invited.String
	c.CreatorSubmittedWinnerID = creatorSub.String
	c.OpponentSubmittedWinnerID = opponentSub.String
	c.WinnerID = winner.String
	c.DisputeReason = reason.String
	return c, nil
}

func scanDispute(s scanner) (engine.Dispute, error) {
	var (
		d                  engine.Dispute
		status             string
		resolvedBy, winner sql.NullString
		resolvedAt         sql.NullTime
	)
	err := s.Scan(&d.ID, &d.ChallengeID, &d.Reason, &status, &d.OpenedBy, &d.CreatorID, &d.OpponentID,
		&resolvedBy, &winner, &d.CreatedAt, &resolvedAt)
	if err != nil {
		return engine.Dispute{}, err
	}
	d.Status = engine.DisputeStatus(status)
	d.ResolvedBy = resolvedBy.String
	d.WinnerID = winner.String
	if resolvedAt.Valid {
		t := resolvedAt.Time
		d.ResolvedAt = &t
	}
	return d, nil
}

func listTransactions(ctx context.Context, q queryer, query string, arg string) ([]engine.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []engine.Transaction
	for rows.Next() {
		var (
			tr   engine.Transaction
			typ  string
			ref  sql.NullString
			meta []byte
		)
		if err := rows.Scan(&tr.ID, &tr.UserID, &tr.AmountCents, &typ, &tr.Description, &ref, &meta, &tr.CreatedAt); err != nil {
			return nil, err
		}
		tr.Type = engine.TxType(typ)
		tr.ReferenceID = ref.String
		if len(meta) > 0 {
			if err := json.Unmarshal(meta, &tr.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshal metadata: %w", err)
			}
		}
		out = append(out, tr)
	}
	return out, rows.Err()
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func expectOne(res sql.Result, err error) error {
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return engine.ErrNotFound
	}
	return nil
}

// PromoteAdmin marca o usuário como administrador, criando-o se necessário.
// O saldo existente não é alterado.
func (p *Postgres) PromoteAdmin(ctx context.Context, id string) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO users(id, balance_cents, is_admin) VALUES($1,0,TRUE)
		ON CONFLICT (id) DO UPDATE SET is_admin=TRUE, updated_at=NOW()`, id)
	return err
}

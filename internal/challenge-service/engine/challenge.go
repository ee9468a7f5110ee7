package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// CreateParams são os dados de criação de um challenge.
// InvitedOpponentID é opcional: quando presente, só esse usuário pode entrar.
type CreateParams struct {
	CreatorID         string
	StakeCents        int64
	Type              string
	InvitedOpponentID string
}

// SubmitResult é o retorno de SubmitResult/Confirm: o challenge após a
// operação e o resultado da reconciliação.
type SubmitResult struct {
	Challenge Challenge
	Outcome   SubmitOutcome
	DisputeID string
}

// CreateChallenge bloqueia o stake do criador e cria o challenge OPEN com
// lockedFunds = stake. Sem saldo suficiente nada é criado.
func (e *Engine) CreateChallenge(ctx context.Context, p CreateParams) (Challenge, error) {
	var c Challenge
	err := e.run(ctx, "create", func(tx Tx, out *outbox) error {
		if p.StakeCents <= 0 {
			return fmt.Errorf("stake must be positive: %w", ErrInvalidAmount)
		}
		if p.Type == "" {
			return fmt.Errorf("challenge type required: %w", ErrInvalidRequest)
		}
		if p.InvitedOpponentID != "" {
			if p.InvitedOpponentID == p.CreatorID {
				return fmt.Errorf("cannot challenge yourself: %w", ErrInvalidRequest)
			}
			if _, err := tx.GetUser(ctx, p.InvitedOpponentID); err != nil {
				return fmt.Errorf("invited opponent: %w", err)
			}
		}

		now := e.now()
		c = Challenge{
			ID:                e.newID(),
			CreatorID:         p.CreatorID,
			InvitedOpponentID: p.InvitedOpponentID,
			StakeCents:        p.StakeCents,
			Type:              p.Type,
			Status:            StatusOpen,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := e.ledger.lock(ctx, tx, p.CreatorID, p.StakeCents, entry{
			typ:         TxChallengeEntry,
			referenceID: c.ID,
			description: fmt.Sprintf("Stake for %s challenge", p.Type),
			metadata:    map[string]string{"challengeType": p.Type, "role": "creator"},
		}); err != nil {
			return err
		}
		c.LockedFundsCents = p.StakeCents
		if err := tx.InsertChallenge(ctx, &c); err != nil {
			return fmt.Errorf("insert challenge: %w", err)
		}

		out.add(challengeEvent(events.ChallengeCreated, &c, p.CreatorID))
		return nil
	})
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge created",
		zap.String("challenge_id", c.ID),
		zap.String("user_id", c.CreatorID),
		zap.Int64("stake_cents", c.StakeCents),
	)
	return c, nil
}

// JoinChallenge bloqueia o stake do oponente e move o challenge para IN_PROGRESS.
// Se o lock falhar o challenge continua OPEN, sem alterações.
func (e *Engine) JoinChallenge(ctx context.Context, challengeID, opponentID string) (Challenge, error) {
	var c Challenge
	err := e.run(ctx, "join", func(tx Tx, out *outbox) error {
		var err error
		c, err = tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.Status != StatusOpen {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}
		if opponentID == "" || opponentID == c.CreatorID {
			return fmt.Errorf("cannot join your own challenge: %w", ErrForbidden)
		}
		if c.InvitedOpponentID != "" && c.InvitedOpponentID != opponentID {
			return fmt.Errorf("challenge reserved for invited opponent: %w", ErrForbidden)
		}

		if err := e.ledger.lock(ctx, tx, opponentID, c.StakeCents, entry{
			typ:         TxChallengeEntry,
			referenceID: c.ID,
			description: fmt.Sprintf("Stake for %s challenge", c.Type),
			metadata:    map[string]string{"challengeType": c.Type, "role": "opponent"},
		}); err != nil {
			return err
		}

		c.OpponentID = opponentID
		c.LockedFundsCents += c.StakeCents
		c.Status = StatusInProgress
		c.UpdatedAt = e.now()
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}

		out.add(challengeEvent(events.ChallengeJoined, &c, opponentID))
		return nil
	})
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge joined",
		zap.String("challenge_id", c.ID),
		zap.String("user_id", opponentID),
		zap.Int64("locked_cents", c.LockedFundsCents),
	)
	return c, nil
}

// CancelChallenge devolve o stake do criador e marca o challenge CANCELED.
// Só é permitido antes de um oponente entrar.
func (e *Engine) CancelChallenge(ctx context.Context, challengeID, requesterID string) (Challenge, error) {
	var c Challenge
	var refunded int64
	err := e.run(ctx, "cancel", func(tx Tx, out *outbox) error {
		var err error
		c, err = tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if requesterID != c.CreatorID {
			return fmt.Errorf("only the creator can cancel: %w", ErrForbidden)
		}
		if c.Status != StatusOpen {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}

		refunded = c.LockedFundsCents
		if err := e.ledger.release(ctx, tx, c.CreatorID, refunded, entry{
			typ:         TxChallengeRefund,
			referenceID: c.ID,
			description: fmt.Sprintf("Refund for canceled %s challenge", c.Type),
			metadata:    map[string]string{"challengeType": c.Type, "role": "creator"},
		}); err != nil {
			return err
		}

		c.LockedFundsCents = 0
		c.Status = StatusCanceled
		c.UpdatedAt = e.now()
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}

		ev := challengeEvent(events.ChallengeCanceled, &c, requesterID)
		ev.AmountCents = refunded
		out.add(ev)
		return nil
	})
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge canceled", zap.String("challenge_id", c.ID), zap.Int64("refund_cents", refunded))
	return c, nil
}

// UpdateParams altera um challenge OPEN. Campos nil ficam como estão;
// InvitedOpponentID apontando para "" remove o convite.
type UpdateParams struct {
	ChallengeID       string
	ActorID           string
	StakeCents        *int64
	Type              *string
	InvitedOpponentID *string
}

// UpdateChallenge edita stake, tipo e oponente convidado enquanto o challenge
// está OPEN (somente o criador). A diferença de stake é bloqueada ou devolvida
// na mesma Tx, mantendo lockedFunds igual ao stake do criador.
func (e *Engine) UpdateChallenge(ctx context.Context, p UpdateParams) (Challenge, error) {
	var c Challenge
	var delta int64
	err := e.run(ctx, "update", func(tx Tx, out *outbox) error {
		if p.StakeCents == nil && p.Type == nil && p.InvitedOpponentID == nil {
			return fmt.Errorf("nothing to update: %w", ErrInvalidRequest)
		}
		if p.StakeCents != nil && *p.StakeCents <= 0 {
			return fmt.Errorf("stake must be positive: %w", ErrInvalidAmount)
		}
		if p.Type != nil && *p.Type == "" {
			return fmt.Errorf("challenge type required: %w", ErrInvalidRequest)
		}

		var err error
		c, err = tx.LockChallenge(ctx, p.ChallengeID)
		if err != nil {
			return err
		}
		if p.ActorID != c.CreatorID {
			return fmt.Errorf("only the creator can edit: %w", ErrForbidden)
		}
		if c.Status != StatusOpen {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}

		if p.Type != nil {
			c.Type = *p.Type
		}
		if p.InvitedOpponentID != nil {
			invited := *p.InvitedOpponentID
			if invited == c.CreatorID {
				return fmt.Errorf("cannot challenge yourself: %w", ErrInvalidRequest)
			}
			if invited != "" {
				if _, err := tx.GetUser(ctx, invited); err != nil {
					return fmt.Errorf("invited opponent: %w", err)
				}
			}
			c.InvitedOpponentID = invited
		}

		if p.StakeCents != nil && *p.StakeCents != c.StakeCents {
			delta = *p.StakeCents - c.StakeCents
			meta := map[string]string{"challengeType": c.Type, "role": "creator", "reason": "stake_update"}
			switch {
			case delta > 0:
				err = e.ledger.lock(ctx, tx, c.CreatorID, delta, entry{
					typ:         TxChallengeEntry,
					referenceID: c.ID,
					description: fmt.Sprintf("Stake increase for %s challenge", c.Type),
					metadata:    meta,
				})
			default:
				err = e.ledger.release(ctx, tx, c.CreatorID, -delta, entry{
					typ:         TxChallengeRefund,
					referenceID: c.ID,
					description: fmt.Sprintf("Stake decrease for %s challenge", c.Type),
					metadata:    meta,
				})
			}
			if err != nil {
				return err
			}
			c.StakeCents = *p.StakeCents
			c.LockedFundsCents += delta
		}

		c.UpdatedAt = e.now()
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}
		out.add(challengeEvent(events.ChallengeUpdated, &c, p.ActorID))
		return nil
	})
	if err != nil {
		return Challenge{}, err
	}
	e.log.Info("challenge updated",
		zap.String("challenge_id", c.ID),
		zap.String("user_id", p.ActorID),
		zap.Int64("stake_cents", c.StakeCents),
		zap.Int64("delta_cents", delta),
	)
	return c, nil
}

// SubmitResult grava a submissão do participante e reconcilia sob o lock do
// challenge: o segundo a submeter sempre enxerga a submissão do primeiro.
func (e *Engine) SubmitResult(ctx context.Context, challengeID, submitterID, claimedWinnerID string) (SubmitResult, error) {
	var res SubmitResult
	err := e.run(ctx, "submit", func(tx Tx, out *outbox) error {
		c, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(submitterID) {
			return fmt.Errorf("not a participant: %w", ErrForbidden)
		}
		res, err = e.submitLocked(ctx, tx, out, c, submitterID, claimedWinnerID)
		return err
	})
	if err != nil {
		return SubmitResult{}, err
	}
	e.logOutcome(res, submitterID)
	return res, nil
}

// ConfirmResult confirma (confirmed=true) ou contesta a submissão do outro
// participante. Confirmar equivale a submeter o mesmo vencedor; contestar abre
// uma disputa com o motivo informado.
func (e *Engine) ConfirmResult(ctx context.Context, challengeID, userID string, confirmed bool, reason string) (SubmitResult, error) {
	var res SubmitResult
	err := e.run(ctx, "confirm", func(tx Tx, out *outbox) error {
		c, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return fmt.Errorf("not a participant: %w", ErrForbidden)
		}
		if c.Status != StatusInProgress {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}
		claim := otherSide(&c, userID)
		if claim == "" {
			return fmt.Errorf("no result has been submitted to confirm: %w", ErrInvalidState)
		}
		if confirmed {
			res, err = e.submitLocked(ctx, tx, out, c, userID, claim)
			return err
		}
		if reason == "" {
			reason = DisagreementReason
		}
		d, err := e.openDisputeLocked(ctx, tx, out, &c, userID, reason)
		if err != nil {
			return err
		}
		res = SubmitResult{Challenge: c, Outcome: Disputed{Reason: reason}, DisputeID: d.ID}
		return nil
	})
	if err != nil {
		return SubmitResult{}, err
	}
	e.logOutcome(res, userID)
	return res, nil
}

// submitLocked grava a submissão e despacha o resultado da reconciliação.
// O chamador já detém o lock do challenge e validou a participação.
func (e *Engine) submitLocked(ctx context.Context, tx Tx, out *outbox, c Challenge, submitterID, claimedWinnerID string) (SubmitResult, error) {
	if c.Status != StatusInProgress {
		return SubmitResult{}, fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
	}
	if !c.IsParticipant(claimedWinnerID) {
		return SubmitResult{}, fmt.Errorf("winner %q is not a participant: %w", claimedWinnerID, ErrInvalidWinner)
	}
	if submittedBy(&c, submitterID) != "" {
		return SubmitResult{}, fmt.Errorf("result already submitted, pending other player: %w", ErrAlreadySubmitted)
	}

	recordSubmission(&c, submitterID, claimedWinnerID)
	c.UpdatedAt = e.now()
	out.add(challengeEvent(events.ChallengeResultSubmitted, &c, submitterID))

	res := SubmitResult{Outcome: Reconcile(c)}
	switch o := res.Outcome.(type) {
	case Pending:
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return SubmitResult{}, fmt.Errorf("update challenge: %w", err)
		}
	case Completed:
		c.Status = StatusCompleted
		c.WinnerID = o.WinnerID
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return SubmitResult{}, fmt.Errorf("update challenge: %w", err)
		}
		if err := e.settleLocked(ctx, tx, out, &c); err != nil {
			return SubmitResult{}, err
		}
	case Disputed:
		d, err := e.openDisputeLocked(ctx, tx, out, &c, submitterID, o.Reason)
		if err != nil {
			return SubmitResult{}, err
		}
		res.DisputeID = d.ID
	}
	res.Challenge = c
	return res, nil
}

// Settle libera lockedFunds ao vencedor de um challenge COMPLETED.
// Idempotente: se já estiver PAID (ou sem fundos) não paga de novo e retorna paid=false.
func (e *Engine) Settle(ctx context.Context, challengeID string) (paid bool, err error) {
	err = e.run(ctx, "settle", func(tx Tx, out *outbox) error {
		c, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if c.Status == StatusPaid || (c.Status == StatusCompleted && c.LockedFundsCents == 0) {
			return nil
		}
		if c.Status != StatusCompleted || c.WinnerID == "" {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}
		paid = true
		return e.settleLocked(ctx, tx, out, &c)
	})
	return paid, err
}

// settleLocked paga o total bloqueado ao vencedor e marca PAID.
func (e *Engine) settleLocked(ctx context.Context, tx Tx, out *outbox, c *Challenge) error {
	amount := c.LockedFundsCents
	if err := e.ledger.release(ctx, tx, c.WinnerID, amount, entry{
		typ:         TxChallengeWinnings,
		referenceID: c.ID,
		description: fmt.Sprintf("Winnings for %s challenge", c.Type),
		metadata:    map[string]string{"challengeType": c.Type, "settledBy": "agreement"},
	}); err != nil {
		return err
	}
	c.LockedFundsCents = 0
	c.Status = StatusPaid
	c.UpdatedAt = e.now()
	if err := tx.UpdateChallenge(ctx, c); err != nil {
		return fmt.Errorf("update challenge: %w", err)
	}

	ev := challengeEvent(events.ChallengePaid, c, "")
	ev.AmountCents = amount
	out.add(ev)
	return nil
}

// GetChallenge retorna o challenge pelo id.
func (e *Engine) GetChallenge(ctx context.Context, challengeID string) (Challenge, error) {
	return e.store.GetChallenge(ctx, challengeID)
}

// ListChallenges lista challenges por status (vazio = todos), mais recentes primeiro.
func (e *Engine) ListChallenges(ctx context.Context, status Status, limit int) ([]Challenge, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	return e.store.ListChallenges(ctx, status, limit)
}

func (e *Engine) logOutcome(res SubmitResult, userID string) {
	e.log.Info("result submitted",
		zap.String("challenge_id", res.Challenge.ID),
		zap.String("user_id", userID),
		zap.String("outcome", string(res.Outcome.Kind())),
		zap.String("status", string(res.Challenge.Status)),
	)
}

func challengeEvent(typ string, c *Challenge, actorID string) events.ChallengeEvent {
	return events.ChallengeEvent{
		Type:        typ,
		ChallengeID: c.ID,
		UserID:      actorID,
		Status:      string(c.Status),
		WinnerID:    c.WinnerID,
		AmountCents: c.LockedFundsCents,
		Reason:      c.DisputeReason,
	}
}

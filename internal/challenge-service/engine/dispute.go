package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/pkg/contracts/events"
)

// Resolution descreve o pagamento feito ao resolver uma disputa.
type Resolution struct {
	Dispute   Dispute
	Challenge Challenge
	// Payouts mapeia userId -> centavos creditados.
	Payouts map[string]int64
}

// Draw indica se a disputa foi resolvida como empate.
func (r Resolution) Draw() bool { return r.Dispute.WinnerID == "" }

// SplitDraw divide lockedFunds entre criador e oponente. Quando o total é
// ímpar em centavos o resto vai para o criador.
func SplitDraw(locked int64) (creatorShare, opponentShare int64) {
	opponentShare = locked / 2
	return locked - opponentShare, opponentShare
}

// OpenDispute abre uma disputa explícita de um participante sobre um challenge
// em andamento. Só pode existir uma disputa ativa por challenge.
func (e *Engine) OpenDispute(ctx context.Context, challengeID, userID, reason string) (Dispute, error) {
	var d Dispute
	err := e.run(ctx, "open_dispute", func(tx Tx, out *outbox) error {
		if reason == "" {
			return fmt.Errorf("reason required: %w", ErrInvalidRequest)
		}
		c, err := tx.LockChallenge(ctx, challengeID)
		if err != nil {
			return err
		}
		if !c.IsParticipant(userID) {
			return fmt.Errorf("only challenge participants can create disputes: %w", ErrForbidden)
		}
		if c.Status != StatusInProgress {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}
		d, err = e.openDisputeLocked(ctx, tx, out, &c, userID, reason)
		return err
	})
	if err != nil {
		return Dispute{}, err
	}
	e.log.Info("dispute opened",
		zap.String("dispute_id", d.ID),
		zap.String("challenge_id", d.ChallengeID),
		zap.String("user_id", userID),
	)
	return d, nil
}

// openDisputeLocked cria a disputa PENDING e move o challenge para DISPUTED.
// O chamador detém o lock do challenge.
func (e *Engine) openDisputeLocked(ctx context.Context, tx Tx, out *outbox, c *Challenge, openedBy, reason string) (Dispute, error) {
	now := e.now()
	d := Dispute{
		ID:          e.newID(),
		ChallengeID: c.ID,
		Reason:      reason,
		Status:      DisputePending,
		OpenedBy:    openedBy,
		CreatorID:   c.CreatorID,
		OpponentID:  c.OpponentID,
		CreatedAt:   now,
	}
	if err := tx.InsertDispute(ctx, &d); err != nil {
		return Dispute{}, fmt.Errorf("insert dispute: %w", err)
	}

	c.Status = StatusDisputed
	c.DisputeReason = reason
	c.UpdatedAt = now
	if err := tx.UpdateChallenge(ctx, c); err != nil {
		return Dispute{}, fmt.Errorf("update challenge: %w", err)
	}

	ev := challengeEvent(events.ChallengeDisputed, c, openedBy)
	ev.DisputeID = d.ID
	out.add(ev)
	return d, nil
}

// ResolveDispute decide uma disputa PENDING. winnerID vazio significa empate:
// lockedFunds é dividido entre os participantes (resto para o criador).
// Pagamento, challenge PAID e disputa RESOLVED confirmam na mesma Tx.
func (e *Engine) ResolveDispute(ctx context.Context, disputeID, winnerID, actorID string) (Resolution, error) {
	if err := e.requireAdmin(ctx, actorID); err != nil {
		e.metrics.observe("resolve", err)
		return Resolution{}, err
	}

	var res Resolution
	err := e.run(ctx, "resolve", func(tx Tx, out *outbox) error {
		d0, err := tx.GetDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		c, err := tx.LockChallenge(ctx, d0.ChallengeID)
		if err != nil {
			return err
		}
		d, err := tx.LockDispute(ctx, disputeID)
		if err != nil {
			return err
		}
		if d.Status != DisputePending {
			return fmt.Errorf("dispute is %s: %w", d.Status, ErrInvalidState)
		}
		if c.Status != StatusDisputed {
			return fmt.Errorf("challenge is %s: %w", c.Status, ErrInvalidState)
		}
		if winnerID != "" && !c.IsParticipant(winnerID) {
			return fmt.Errorf("winner %q is not a participant: %w", winnerID, ErrInvalidWinner)
		}
		if err := lockUsers(ctx, tx, c.CreatorID, c.OpponentID); err != nil {
			return err
		}

		locked := c.LockedFundsCents
		payouts := map[string]int64{}
		meta := map[string]string{"challengeType": c.Type, "disputeId": d.ID, "resolvedBy": actorID}
		if winnerID != "" {
			if err := e.ledger.release(ctx, tx, winnerID, locked, entry{
				typ:         TxChallengeWinnings,
				referenceID: c.ID,
				description: fmt.Sprintf("Winnings for %s challenge (dispute resolved)", c.Type),
				metadata:    meta,
			}); err != nil {
				return err
			}
			payouts[winnerID] = locked
		} else {
			creatorShare, opponentShare := SplitDraw(locked)
			for _, p := range []struct {
				userID string
				amount int64
			}{{c.CreatorID, creatorShare}, {c.OpponentID, opponentShare}} {
				if err := e.ledger.release(ctx, tx, p.userID, p.amount, entry{
					typ:         TxChallengeRefund,
					referenceID: c.ID,
					description: fmt.Sprintf("Draw refund for %s challenge", c.Type),
					metadata:    meta,
				}); err != nil {
					return err
				}
				payouts[p.userID] += p.amount
			}
		}

		now := e.now()
		c.WinnerID = winnerID
		c.LockedFundsCents = 0
		c.Status = StatusPaid
		c.UpdatedAt = now
		if err := tx.UpdateChallenge(ctx, &c); err != nil {
			return fmt.Errorf("update challenge: %w", err)
		}

		d.Status = DisputeResolved
		d.ResolvedBy = actorID
		d.WinnerID = winnerID
		d.ResolvedAt = &now
		if err := tx.UpdateDispute(ctx, &d); err != nil {
			return fmt.Errorf("update dispute: %w", err)
		}

		ev := challengeEvent(events.DisputeResolved, &c, actorID)
		ev.DisputeID = d.ID
		ev.AmountCents = locked
		out.add(ev)

		res = Resolution{Dispute: d, Challenge: c, Payouts: payouts}
		return nil
	})
	if err != nil {
		return Resolution{}, err
	}
	e.log.Info("dispute resolved",
		zap.String("dispute_id", res.Dispute.ID),
		zap.String("challenge_id", res.Challenge.ID),
		zap.String("winner_id", winnerID),
		zap.Bool("draw", res.Draw()),
		zap.String("actor_id", actorID),
	)
	return res, nil
}

// GetDispute retorna a disputa pelo id.
func (e *Engine) GetDispute(ctx context.Context, disputeID string) (Dispute, error) {
	return e.store.GetDispute(ctx, disputeID)
}

// ListDisputesForChallenge retorna as disputas de um challenge, mais recentes
// primeiro. Visível aos participantes e a administradores.
func (e *Engine) ListDisputesForChallenge(ctx context.Context, challengeID, actorID string) ([]Dispute, error) {
	c, err := e.store.GetChallenge(ctx, challengeID)
	if err != nil {
		return nil, err
	}
	if !c.IsParticipant(actorID) {
		if err := e.requireAdmin(ctx, actorID); err != nil {
			return nil, fmt.Errorf("only participants can view disputes: %w", err)
		}
	}
	return e.store.ListDisputesByChallenge(ctx, challengeID)
}

// ListPendingDisputes lista disputas aguardando decisão (somente administradores).
func (e *Engine) ListPendingDisputes(ctx context.Context, actorID string) ([]Dispute, error) {
	if err := e.requireAdmin(ctx, actorID); err != nil {
		return nil, err
	}
	return e.store.ListDisputes(ctx, DisputePending)
}

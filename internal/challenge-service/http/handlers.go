package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/radieske/challenge-escrow/internal/challenge-service/dto"
	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateChallengeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	stake, err := dto.ParseAmount(req.Stake)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	c, err := s.escrow.CreateChallenge(r.Context(), engine.CreateParams{
		CreatorID:         ActorID(r.Context()),
		StakeCents:        stake,
		Type:              strings.ToUpper(strings.TrimSpace(req.Type)),
		InvitedOpponentID: req.OpponentID,
	})
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromChallenge(c))
}

func (s *Server) updateChallenge(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateChallengeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	p := engine.UpdateParams{
		ChallengeID:       chi.URLParam(r, "id"),
		ActorID:           ActorID(r.Context()),
		InvitedOpponentID: req.OpponentID,
	}
	if req.Stake != nil {
		stake, err := dto.ParseAmount(*req.Stake)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		p.StakeCents = &stake
	}
	if req.Type != nil {
		typ := strings.ToUpper(strings.TrimSpace(*req.Type))
		p.Type = &typ
	}
	c, err := s.escrow.UpdateChallenge(r.Context(), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromChallenge(c))
}

func (s *Server) listChallenges(w http.ResponseWriter, r *http.Request) {
	status := engine.Status(strings.ToUpper(r.URL.Query().Get("status")))
	cs, err := s.escrow.ListChallenges(r.Context(), status, queryLimit(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromChallenges(cs))
}

func (s *Server) getChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := s.escrow.GetChallenge(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromChallenge(c))
}

func (s *Server) joinChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := s.escrow.JoinChallenge(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromChallenge(c))
}

func (s *Server) cancelChallenge(w http.ResponseWriter, r *http.Request) {
	c, err := s.escrow.CancelChallenge(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromChallenge(c))
}

func (s *Server) submitResult(w http.ResponseWriter, r *http.Request) {
	var req dto.SubmitResultRequest
	if err := decode(r, &req); err != nil || req.WinnerID == "" {
		writeError(w, http.StatusBadRequest, "winnerId required")
		return
	}
	res, err := s.escrow.SubmitResult(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()), req.WinnerID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSubmitResult(res))
}

func (s *Server) confirmResult(w http.ResponseWriter, r *http.Request) {
	var req dto.ConfirmResultRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	res, err := s.escrow.ConfirmResult(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()), req.Confirmed, req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromSubmitResult(res))
}

func (s *Server) openDispute(w http.ResponseWriter, r *http.Request) {
	var req dto.OpenDisputeRequest
	if err := decode(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	d, err := s.escrow.OpenDispute(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()), req.Reason)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, dto.FromDispute(d))
}

func (s *Server) getBalance(w http.ResponseWriter, r *http.Request) {
	userID := ActorID(r.Context())
	bal, err := s.escrow.GetBalance(r.Context(), userID)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBalance(userID, bal))
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := s.escrow.ListTransactions(r.Context(), ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromTransactions(txs))
}

func (s *Server) listDisputes(w http.ResponseWriter, r *http.Request) {
	ds, err := s.escrow.ListPendingDisputes(r.Context(), ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromDisputes(ds))
}

func (s *Server) listChallengeDisputes(w http.ResponseWriter, r *http.Request) {
	ds, err := s.escrow.ListDisputesForChallenge(r.Context(), chi.URLParam(r, "id"), ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromDisputes(ds))
}

func (s *Server) resolveDispute(w http.ResponseWriter, r *http.Request) {
	// Corpo vazio (inclusive chunked) equivale a winnerId null: empate.
	var req dto.ResolveDisputeRequest
	if err := decode(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad json")
		return
	}
	winnerID := ""
	if req.WinnerID != nil {
		winnerID = *req.WinnerID
	}
	res, err := s.escrow.ResolveDispute(r.Context(), chi.URLParam(r, "id"), winnerID, ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromResolution(res))
}

func (s *Server) adjustBalance(w http.ResponseWriter, r *http.Request) {
	var req dto.AdjustBalanceRequest
	if err := decode(r, &req); err != nil || req.UserID == "" {
		writeError(w, http.StatusBadRequest, "userId, amount and reason required")
		return
	}
	amount, err := dto.ParseAmount(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	bal, err := s.escrow.AdjustBalance(r.Context(), req.UserID, amount, req.Reason, ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.NewBalance(req.UserID, bal))
}

func (s *Server) audit(w http.ResponseWriter, r *http.Request) {
	ref := chi.URLParam(r, "referenceId")
	sum, txs, err := s.escrow.Audit(r.Context(), ref, ActorID(r.Context()))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.AuditResponse{
		ReferenceID:  ref,
		Sum:          dto.FormatAmount(sum),
		Balanced:     sum == 0,
		Transactions: dto.FromTransactions(txs),
	})
}

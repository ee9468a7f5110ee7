package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

// Escrow define as operações do motor usadas pelos handlers.
type Escrow interface {
	CreateChallenge(ctx context.Context, p engine.CreateParams) (engine.Challenge, error)
	UpdateChallenge(ctx context.Context, p engine.UpdateParams) (engine.Challenge, error)
	JoinChallenge(ctx context.Context, challengeID, opponentID string) (engine.Challenge, error)
	CancelChallenge(ctx context.Context, challengeID, requesterID string) (engine.Challenge, error)
	SubmitResult(ctx context.Context, challengeID, submitterID, claimedWinnerID string) (engine.SubmitResult, error)
	ConfirmResult(ctx context.Context, challengeID, userID string, confirmed bool, reason string) (engine.SubmitResult, error)
	GetChallenge(ctx context.Context, challengeID string) (engine.Challenge, error)
	ListChallenges(ctx context.Context, status engine.Status, limit int) ([]engine.Challenge, error)

	OpenDispute(ctx context.Context, challengeID, userID, reason string) (engine.Dispute, error)
	ResolveDispute(ctx context.Context, disputeID, winnerID, actorID string) (engine.Resolution, error)
	ListPendingDisputes(ctx context.Context, actorID string) ([]engine.Dispute, error)
	ListDisputesForChallenge(ctx context.Context, challengeID, actorID string) ([]engine.Dispute, error)

	GetBalance(ctx context.Context, userID string) (int64, error)
	ListTransactions(ctx context.Context, userID string) ([]engine.Transaction, error)
	AdjustBalance(ctx context.Context, userID string, amount int64, reason, actorID string) (int64, error)
	Audit(ctx context.Context, referenceID, actorID string) (int64, []engine.Transaction, error)
}

// Server expõe o motor de escrow via HTTP.
type Server struct {
	log       *zap.Logger
	escrow    Escrow
	jwtSecret []byte
}

func NewServer(log *zap.Logger, escrow Escrow, jwtSecret string) *Server {
	return &Server{log: log, escrow: escrow, jwtSecret: []byte(jwtSecret)}
}

// Router retorna as rotas /v1; todas exigem bearer token.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Route("/v1", func(r chi.Router) {
		r.Use(Authenticated(s.jwtSecret))

		r.Route("/challenges", func(r chi.Router) {
			r.Post("/", s.createChallenge)
			r.Get("/", s.listChallenges)
			r.Get("/{id}", s.getChallenge)
			r.Patch("/{id}", s.updateChallenge)
			r.Delete("/{id}", s.cancelChallenge)
			r.Post("/{id}/join", s.joinChallenge)
			r.Post("/{id}/result", s.submitResult)
			r.Post("/{id}/confirm", s.confirmResult)
			r.Post("/{id}/disputes", s.openDispute)
			r.Get("/{id}/disputes", s.listChallengeDisputes)
		})

		r.Get("/wallet/balance", s.getBalance)
		r.Get("/wallet/transactions", s.listTransactions)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/disputes", s.listDisputes)
			r.Post("/disputes/{id}/resolve", s.resolveDispute)
			r.Post("/balance/adjust", s.adjustBalance)
			r.Get("/audit/{referenceId}", s.audit)
		})
	})
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func decode(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor mapeia a taxonomia de erros do motor para HTTP.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, engine.ErrInvalidWinner):
		return http.StatusUnprocessableEntity
	case errors.Is(err, engine.ErrInsufficientBalance),
		errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrAlreadySubmitted):
		return http.StatusConflict
	case errors.Is(err, engine.ErrInvalidAmount), errors.Is(err, engine.ErrInvalidRequest):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// fail responde com o status do erro; falhas de infraestrutura não expõem detalhes.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		s.log.Error("request failed",
			zap.String("path", r.URL.Path),
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.Error(err),
		)
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func queryLimit(r *http.Request) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil {
		return 0
	}
	return n
}

// Package cli implementa o escrowctl, ferramenta de operação sobre o mesmo
// motor de escrow usado pelo challenge-service.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

// Escrow é o subconjunto do motor usado pelos comandos.
type Escrow interface {
	GetChallenge(ctx context.Context, challengeID string) (engine.Challenge, error)
	ListChallenges(ctx context.Context, status engine.Status, limit int) ([]engine.Challenge, error)
	ListPendingDisputes(ctx context.Context, actorID string) ([]engine.Dispute, error)
	ResolveDispute(ctx context.Context, disputeID, winnerID, actorID string) (engine.Resolution, error)
	GetBalance(ctx context.Context, userID string) (int64, error)
	AdjustBalance(ctx context.Context, userID string, amount int64, reason, actorID string) (int64, error)
	Deposit(ctx context.Context, userID string, amount int64, externalRef string) (int64, bool, error)
	ListTransactions(ctx context.Context, userID string) ([]engine.Transaction, error)
	Audit(ctx context.Context, referenceID, actorID string) (int64, []engine.Transaction, error)
}

// Opener conecta o motor; close libera as conexões abertas.
type Opener func(ctx context.Context) (escrow Escrow, close func() error, err error)

type app struct {
	open  Opener
	actor string

	escrow Escrow
	close  func() error
}

// NewRootCmd monta a árvore de comandos. O motor só é aberto quando um
// subcomando executa, então --help funciona sem banco.
func NewRootCmd(open Opener) *cobra.Command {
	root, _ := newRoot(open)
	return root
}

func newRoot(open Opener) (*cobra.Command, *app) {
	a := &app{open: open}

	root := &cobra.Command{
		Use:           "escrowctl",
		Short:         "Operate the challenge escrow: balances, disputes, audits",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			escrow, closer, err := a.open(cmd.Context())
			if err != nil {
				return fmt.Errorf("open escrow: %w", err)
			}
			a.escrow, a.close = escrow, closer
			return nil
		},
	}
	root.PersistentFlags().StringVar(&a.actor, "actor", os.Getenv("ESCROW_ACTOR"),
		"admin user id performing the operation (env ESCROW_ACTOR)")

	root.AddCommand(
		newBalanceCmd(a),
		newDepositCmd(a),
		newDisputeCmd(a),
		newAuditCmd(a),
		newChallengeCmd(a),
	)
	return root, a
}

// Execute roda o escrowctl com os argumentos do processo e fecha o motor ao
// final, inclusive quando o comando falha.
func Execute(open Opener) error {
	root, a := newRoot(open)
	err := root.ExecuteContext(context.Background())
	if cerr := a.shutdown(); err == nil {
		err = cerr
	}
	return err
}

func (a *app) shutdown() error {
	if a.close == nil {
		return nil
	}
	closer := a.close
	a.close = nil
	return closer()
}

func (a *app) requireActor() error {
	if a.actor == "" {
		return fmt.Errorf("--actor is required for this command")
	}
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

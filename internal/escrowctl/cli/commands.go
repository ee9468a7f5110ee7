package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/radieske/challenge-escrow/internal/challenge-service/dto"
	"github.com/radieske/challenge-escrow/internal/challenge-service/engine"
)

func newBalanceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "balance",
		Short: "Inspect and adjust user balances",
	}

	get := &cobra.Command{
		Use:   "get <userId>",
		Short: "Show a user's balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bal, err := a.escrow.GetBalance(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewBalance(args[0], bal))
		},
	}

	var amountArg, reason string
	adjust := &cobra.Command{
		Use:   "adjust <userId> --amount <amount> --reason <reason>",
		Short: "Apply a signed admin adjustment, e.g. --amount 10.00 or --amount=-2.50",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireActor(); err != nil {
				return err
			}
			amount, err := dto.ParseAmount(amountArg)
			if err != nil {
				return err
			}
			bal, err := a.escrow.AdjustBalance(cmd.Context(), args[0], amount, reason, a.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.NewBalance(args[0], bal))
		},
	}
	adjust.Flags().StringVar(&amountArg, "amount", "", "signed amount; debits use --amount=-2.50")
	adjust.Flags().StringVar(&reason, "reason", "", "reason recorded in the transaction log")
	_ = adjust.MarkFlagRequired("amount")
	_ = adjust.MarkFlagRequired("reason")

	history := &cobra.Command{
		Use:   "history <userId>",
		Short: "List a user's transactions, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			txs, err := a.escrow.ListTransactions(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.FromTransactions(txs))
		},
	}

	cmd.AddCommand(get, adjust, history)
	return cmd
}

func newDepositCmd(a *app) *cobra.Command {
	var ref string
	cmd := &cobra.Command{
		Use:   "deposit <userId> <amount>",
		Short: "Credit a pre-validated deposit (idempotent by --ref)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := dto.ParseAmount(args[1])
			if err != nil {
				return err
			}
			bal, applied, err := a.escrow.Deposit(cmd.Context(), args[0], amount, ref)
			if err != nil {
				return err
			}
			if !applied {
				fmt.Fprintf(cmd.ErrOrStderr(), "deposit %s already applied\n", ref)
			}
			return printJSON(cmd, dto.NewBalance(args[0], bal))
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "", "external payment reference")
	_ = cmd.MarkFlagRequired("ref")
	return cmd
}

func newDisputeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dispute",
		Short: "List and resolve disputes",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List pending disputes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.requireActor(); err != nil {
				return err
			}
			ds, err := a.escrow.ListPendingDisputes(cmd.Context(), a.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.FromDisputes(ds))
		},
	}

	var winner string
	var draw bool
	resolve := &cobra.Command{
		Use:   "resolve <disputeId>",
		Short: "Resolve a dispute for --winner, or split it with --draw",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireActor(); err != nil {
				return err
			}
			if (winner == "") == !draw {
				return fmt.Errorf("exactly one of --winner or --draw is required")
			}
			res, err := a.escrow.ResolveDispute(cmd.Context(), args[0], winner, a.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.FromResolution(res))
		},
	}
	resolve.Flags().StringVar(&winner, "winner", "", "participant id that receives the pot")
	resolve.Flags().BoolVar(&draw, "draw", false, "split the pot between both participants")

	cmd.AddCommand(list, resolve)
	return cmd
}

func newAuditCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "audit <referenceId>",
		Short: "Sum the transaction log for a challenge; settled challenges must sum to zero",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.requireActor(); err != nil {
				return err
			}
			sum, txs, err := a.escrow.Audit(cmd.Context(), args[0], a.actor)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.AuditResponse{
				ReferenceID:  args[0],
				Sum:          dto.FormatAmount(sum),
				Balanced:     sum == 0,
				Transactions: dto.FromTransactions(txs),
			})
		},
	}
}

func newChallengeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "challenge",
		Short: "Inspect challenges",
	}

	get := &cobra.Command{
		Use:   "get <challengeId>",
		Short: "Show one challenge",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.escrow.GetChallenge(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.FromChallenge(c))
		},
	}

	var status string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List challenges, optionally filtered by --status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cs, err := a.escrow.ListChallenges(cmd.Context(), engine.Status(strings.ToUpper(status)), limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, dto.FromChallenges(cs))
		},
	}
	list.Flags().StringVar(&status, "status", "", "OPEN, IN_PROGRESS, COMPLETED, DISPUTED, PAID or CANCELED")
	list.Flags().IntVar(&limit, "limit", 50, "maximum number of challenges")

	cmd.AddCommand(get, list)
	return cmd
}

package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gigbridge/gigbridge-backend/internal/wallet"
)

type balanceOutput struct {
	OwnerID uuid.UUID              `json:"owner_id"`
	Balance int64                  `json:"balance"`
	Report  *wallet.SnapshotReport `json:"snapshot_report"`
}

func newBalanceCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "balance OWNER_ID",
		Short: "Show a wallet balance and verify its snapshots against the ledger",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				balance, err := rt.Wallet.Balance(ctx, ownerID)
				if err != nil {
					return err
				}
				report, err := rt.Wallet.VerifySnapshots(ctx, ownerID)
				if err != nil {
					return err
				}
				if err := printJSON(cmd.OutOrStdout(), balanceOutput{OwnerID: ownerID, Balance: balance, Report: report}); err != nil {
					return err
				}
				if len(report.Drift) > 0 {
					return fmt.Errorf("wallet %s has %d drifted snapshots", ownerID, len(report.Drift))
				}
				return nil
			})
		},
	}
}

func newHistoryCmd(load Loader) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history OWNER_ID",
		Short: "List the most recent ledger rows for a wallet",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ownerID, err := parseOwner(args[0])
			if err != nil {
				return err
			}
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				rows, err := rt.Wallet.History(ctx, ownerID, limit)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), rows)
			})
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "rows to return (max 200)")
	return cmd
}

func parseOwner(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid owner id %q: %w", raw, err)
	}
	return id, nil
}

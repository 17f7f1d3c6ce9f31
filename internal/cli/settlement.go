package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	pkgerrors "github.com/gigbridge/gigbridge-backend/pkg/errors"
)

func newAwaitCmd(load Loader) *cobra.Command {
	var (
		interval time.Duration
		attempts int
	)
	cmd := &cobra.Command{
		Use:   "await ORDER_ID",
		Short: "Poll a payment order until it settles, fails or the policy runs out",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				policy := rt.Policy
				if interval > 0 {
					policy.Interval = interval
				}
				if attempts > 0 {
					policy.MaxAttempts = attempts
				}
				result, err := rt.Settlement.AwaitSettlement(ctx, args[0], policy)
				if pkgerrors.IsCode(err, pkgerrors.CodeReconciliationTimeout) && result != nil {
					if perr := printJSON(cmd.OutOrStdout(), result); perr != nil {
						return perr
					}
					return fmt.Errorf("order %s still %s after %d polls", args[0], result.OrderStatus, policy.MaxAttempts)
				}
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
	cmd.Flags().DurationVar(&interval, "interval", 0, "poll interval (defaults to the configured policy)")
	cmd.Flags().IntVar(&attempts, "attempts", 0, "maximum polls (defaults to the configured policy)")
	return cmd
}

func newPollCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "poll ORDER_ID",
		Short: "Ask the gateway once and apply a terminal answer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				result, err := rt.Settlement.PollStatus(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newStatusCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "status ORDER_ID",
		Short: "Show the stored settlement state without calling the gateway",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				result, err := rt.Settlement.Status(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), result)
			})
		},
	}
}

func newReconcileCmd(load Loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile",
		Short: "Run one pass over stale unresolved orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				summary, err := rt.Settlement.ReconcileStale(ctx)
				if err != nil {
					return err
				}
				if summary == nil {
					summary = &settlement.ReconcileSummary{}
				}
				return printJSON(cmd.OutOrStdout(), summary)
			})
		},
	}
}

// Package cli implements settlectl, the operator tool for inspecting and
// nudging payment settlement outside the HTTP surface.
package cli

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/internal/wallet"
)

// Runtime is the service graph the settlement and wallet commands act on.
type Runtime struct {
	Bookings   bookings.Service
	Settlement settlement.Service
	Wallet     wallet.Service
	Policy     settlement.Policy
}

// Loader opens a Runtime. release closes whatever the loader dialed.
type Loader func(ctx context.Context) (rt *Runtime, release func(), err error)

// SQLOpener hands the migrate commands a raw database handle.
type SQLOpener func(ctx context.Context) (db *sql.DB, release func(), err error)

// NewRootCommand builds the settlectl command tree. Nothing is dialed until a
// command that needs it runs.
func NewRootCommand(load Loader, openSQL SQLOpener) *cobra.Command {
	root := &cobra.Command{
		Use:           "settlectl",
		Short:         "Inspect and drive booking settlement",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newAwaitCmd(load),
		newPollCmd(load),
		newStatusCmd(load),
		newReconcileCmd(load),
		newBalanceCmd(load),
		newHistoryCmd(load),
		newSeedCmd(load),
		newMigrateCmd(openSQL),
	)
	return root
}

// withRuntime runs fn against a freshly loaded runtime.
func withRuntime(cmd *cobra.Command, load Loader, fn func(ctx context.Context, rt *Runtime) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	rt, release, err := load(ctx)
	if err != nil {
		return fmt.Errorf("load services: %w", err)
	}
	if release != nil {
		defer release()
	}
	return fn(ctx, rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

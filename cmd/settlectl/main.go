package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/gigbridge/gigbridge-backend/internal/app"
	"github.com/gigbridge/gigbridge-backend/internal/bootstrap"
	"github.com/gigbridge/gigbridge-backend/internal/cli"
	"github.com/gigbridge/gigbridge-backend/internal/settlement"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
)

func main() {
	// Logs go to stderr so command output on stdout stays machine readable.
	proc, err := bootstrap.Start("settlectl", os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
	ctx, stop := proc.SignalContext()

	root := cli.NewRootCommand(runtimeLoader(proc), sqlOpener(proc))
	err = root.ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// runtimeLoader builds services without Redis or Pub/Sub: completion codes
// issued here are logged and the webhook guard is off.
func runtimeLoader(proc *bootstrap.Process) cli.Loader {
	return func(ctx context.Context) (*cli.Runtime, func(), error) {
		release := func() { _ = proc.Close() }
		dbClient, err := proc.OpenDB(ctx)
		if err != nil {
			release()
			return nil, nil, err
		}
		svcs, err := app.Build(ctx, proc.Config, proc.Logger, app.Deps{DB: dbClient})
		if err != nil {
			release()
			return nil, nil, err
		}
		return &cli.Runtime{
			Bookings:   svcs.Bookings,
			Settlement: svcs.Settlement,
			Wallet:     svcs.Wallet,
			Policy:     settlement.DefaultPolicy(proc.Config.Settlement),
		}, release, nil
	}
}

// sqlOpener skips the dev auto-migrate hook; the migrate commands own schema
// changes here.
func sqlOpener(proc *bootstrap.Process) cli.SQLOpener {
	return func(ctx context.Context) (*sql.DB, func(), error) {
		dbClient, err := db.New(ctx, proc.Config.DB, proc.Logger)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := dbClient.DB().DB()
		if err != nil {
			_ = dbClient.Close()
			return nil, nil, err
		}
		return sqlDB, func() { _ = dbClient.Close() }, nil
	}
}

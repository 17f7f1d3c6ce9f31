package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/gigbridge/gigbridge-backend/internal/bookings"
	"github.com/gigbridge/gigbridge-backend/pkg/enums"
	"github.com/gigbridge/gigbridge-backend/pkg/money"
)

// newSeedCmd inserts a requested booking for local testing. Real bookings are
// created by the marketplace flow.
func newSeedCmd(load Loader) *cobra.Command {
	var (
		clientID, workerID string
		category, amount   string
		currency           string
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Insert a requested booking between a client and a worker",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, err := seedInput(clientID, workerID, category, amount, currency)
			if err != nil {
				return err
			}
			return withRuntime(cmd, load, func(ctx context.Context, rt *Runtime) error {
				booking, err := rt.Bookings.Create(ctx, input)
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), booking)
			})
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&clientID, "client", "", "client user id")
	flags.StringVar(&workerID, "worker", "", "worker user id")
	flags.StringVar(&category, "category", "general", "service category")
	flags.StringVar(&amount, "amount", "", "amount due in major units, e.g. 1499.50")
	flags.StringVar(&currency, "currency", string(enums.CurrencyINR), "ISO currency code")
	_ = cmd.MarkFlagRequired("client")
	_ = cmd.MarkFlagRequired("worker")
	_ = cmd.MarkFlagRequired("amount")
	return cmd
}

func seedInput(clientRaw, workerRaw, category, amount, currencyRaw string) (bookings.CreateInput, error) {
	clientID, err := uuid.Parse(clientRaw)
	if err != nil {
		return bookings.CreateInput{}, fmt.Errorf("invalid client id: %w", err)
	}
	workerID, err := uuid.Parse(workerRaw)
	if err != nil {
		return bookings.CreateInput{}, fmt.Errorf("invalid worker id: %w", err)
	}
	currency, err := enums.ParseCurrency(currencyRaw)
	if err != nil {
		return bookings.CreateInput{}, err
	}
	minor, err := money.FromMajor(amount, currency)
	if err != nil {
		return bookings.CreateInput{}, err
	}
	return bookings.CreateInput{
		ClientID:        clientID,
		WorkerID:        workerID,
		ServiceCategory: category,
		ScheduledAt:     time.Now().UTC(),
		AmountDueMinor:  minor,
		Currency:        currency,
	}, nil
}

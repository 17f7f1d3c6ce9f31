package migrate

import (
	"context"
	"fmt"
	"strings"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
)

// MaybeRunDev applies the embedded migrations on startup in dev when the
// auto-migrate flag is on. Every other environment migrates through settlectl.
func MaybeRunDev(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if !cfg.App.IsDev() || !cfg.FeatureFlags.AutoMigrate {
		return nil
	}
	if client.Dialect() != db.DialectPostgres {
		logg.Warn(ctx, "skipping dev migrations on non-postgres database")
		return nil
	}

	sqlDB, err := client.DB().DB()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	var applied strings.Builder
	if err := Run(ctx, sqlDB, "", "up", &applied); err != nil {
		return fmt.Errorf("dev auto-migrate: %w", err)
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"env":     cfg.App.Env,
		"applied": strings.Count(applied.String(), "\n"),
	})
	logg.Info(ctx, "dev migrations applied")
	return nil
}

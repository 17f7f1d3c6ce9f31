// Package bootstrap holds the start-up sequence shared by every binary:
// environment loading, logger construction, infrastructure clients and an
// ordered shutdown.
package bootstrap

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/gigbridge/gigbridge-backend/pkg/config"
	"github.com/gigbridge/gigbridge-backend/pkg/db"
	"github.com/gigbridge/gigbridge-backend/pkg/logger"
	"github.com/gigbridge/gigbridge-backend/pkg/migrate"
	"github.com/gigbridge/gigbridge-backend/pkg/pubsub"
	"github.com/gigbridge/gigbridge-backend/pkg/redis"
)

// Process is one running binary and the resources it must release.
type Process struct {
	Name   string
	Config *config.Config
	Logger *logger.Logger

	closers []closer
}

type closer struct {
	name string
	fn   func() error
}

// Start loads .env (when present) and the environment config, then builds the
// configured logger. out defaults to stdout.
func Start(name string, out io.Writer) (*Process, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	cfg.Service.Kind = name
	return New(name, cfg, out), nil
}

// New wraps an already loaded config.
func New(name string, cfg *config.Config, out io.Writer) *Process {
	logg := logger.New(logger.Options{
		ServiceName: name,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Output:      out,
	})
	return &Process{Name: name, Config: cfg, Logger: logg}
}

// OnClose registers fn to run during Close. Closers run in reverse order.
func (p *Process) OnClose(name string, fn func() error) {
	p.closers = append(p.closers, closer{name: name, fn: fn})
}

// Close releases everything opened through p, newest first, and reports
// every failure.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		c := p.closers[i]
		if err := c.fn(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "resource", c.name), "close failed", err)
			errs = multierr.Append(errs, err)
		}
	}
	p.closers = nil
	return errs
}

// OpenDB connects to the database and, in dev with auto-migrate on, applies
// pending migrations.
func (p *Process) OpenDB(ctx context.Context) (*db.Client, error) {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	if err != nil {
		return nil, err
	}
	p.OnClose("database", client.Close)
	if err := migrate.MaybeRunDev(ctx, p.Config, p.Logger, client); err != nil {
		return nil, err
	}
	return client, nil
}

func (p *Process) OpenRedis(ctx context.Context) (*redis.Client, error) {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	if err != nil {
		return nil, err
	}
	p.OnClose("redis", client.Close)
	return client, nil
}

func (p *Process) OpenPubSub(ctx context.Context) (*pubsub.Client, error) {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	if err != nil {
		return nil, err
	}
	p.OnClose("pubsub", client.Close)
	return client, nil
}

// SignalContext is cancelled on SIGINT or SIGTERM and carries the process
// fields every log line should have.
func (p *Process) SignalContext() (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	ctx = p.Logger.WithFields(ctx, map[string]any{
		"env":          p.Config.App.Env,
		"service_kind": p.Config.Service.Kind,
	})
	return ctx, stop
}

// Exit logs err, releases resources and terminates with status 1.
func (p *Process) Exit(ctx context.Context, msg string, err error) {
	p.Logger.Error(ctx, msg, err)
	_ = p.Close()
	os.Exit(1)
}

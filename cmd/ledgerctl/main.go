package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/odyssey-erp/odyssey-ledger/cmd/ledgerctl/cli"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	deps := cli.Deps{
		Migrations: func() (cli.Migrations, error) {
			return db.NewMigrator(cfg.PGDSN, logger)
		},
		Jobs: func() (cli.Jobs, error) {
			return cli.NewJobsCLI(cfg.AsynqRedis()), nil
		},
		Clients: func(ctx context.Context) (cli.ClientCreator, func(), error) {
			pool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
			if err != nil {
				return nil, nil, err
			}
			return auth.NewService(auth.NewRepository(pool)), pool.Close, nil
		},
	}

	if err := cli.NewRootCommand(deps, os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "ledgerctl:", err)
		os.Exit(1)
	}
}

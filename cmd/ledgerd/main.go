package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/accounts"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/ledger"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/periods"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/reports"
	"github.com/odyssey-erp/odyssey-ledger/internal/accounting/vouchers"
	"github.com/odyssey-erp/odyssey-ledger/internal/app"
	"github.com/odyssey-erp/odyssey-ledger/internal/audit"
	"github.com/odyssey-erp/odyssey-ledger/internal/auth"
	"github.com/odyssey-erp/odyssey-ledger/internal/observability"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/db"
	"github.com/odyssey-erp/odyssey-ledger/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-ledger/internal/rbac"
	"github.com/odyssey-erp/odyssey-ledger/internal/shared"
	"github.com/odyssey-erp/odyssey-ledger/jobs"
	"github.com/odyssey-erp/odyssey-ledger/report"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)

	dbpool, err := db.New(ctx, cfg.PGDSN, cfg.PGMaxConns)
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisOptions())
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	idempotencyStore := shared.NewIdempotencyStore(dbpool)
	rbacMiddleware := rbac.Middleware{Logger: logger}

	ledgerCache := cache.NewVersioned(redisClient, "ledger", cfg.LedgerCacheTTL)
	if err := ledgerCache.Listen(ctx, func(version int64) {
		logger.Debug("ledger cache bumped", slog.Int64("version", version))
	}); err != nil {
		logger.Warn("subscribe ledger cache", slog.Any("error", err))
	}

	authService := auth.NewService(auth.NewRepository(dbpool))

	accountRepo := accounts.NewRepository(dbpool)
	accountService := accounts.NewService(accountRepo)

	periodService := periods.NewService(periods.NewRepository(dbpool))
	voucherService := vouchers.NewService(vouchers.NewRepository(dbpool), ledgerCache, metrics).WithLogger(logger)
	ledgerService := ledger.NewService(ledger.NewRepository(dbpool), accountRepo, ledgerCache, cfg.LedgerPageLimitMax)
	reportService := reports.NewService(reports.NewRepository(dbpool))

	pdfClient := report.NewClient(cfg.GotenbergURL, cfg.GotenbergTimeout)
	statementRenderer := report.NewStatementRenderer(pdfClient)

	inspector := asynq.NewInspector(cfg.AsynqRedis())
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()

	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Metrics:      metrics,
		Authenticate: auth.Middleware(authService, logger),
		APIHandlers: []app.RouteMounter{
			periods.NewHandler(logger, periodService, rbacMiddleware, httpx.Idempotent(idempotencyStore, "periods", logger)),
			vouchers.NewHandler(logger, voucherService, rbacMiddleware, httpx.Idempotent(idempotencyStore, "vouchers", logger), cfg.LedgerPageLimitMax),
			accounts.NewHandler(logger, accountService, rbacMiddleware),
			ledger.NewHandler(logger, ledgerService, rbacMiddleware, statementRenderer, cfg.LedgerPageLimitMax),
			reports.NewHandler(logger, reportService, rbacMiddleware),
			audit.NewHandler(logger, audit.NewService(audit.NewRepository(dbpool)), rbacMiddleware),
		},
		ReportHandler: report.NewHandler(pdfClient, logger),
		JobHandler:    jobs.NewHandler(inspector, logger),
		HealthChecks: map[string]app.HealthCheck{
			"postgres": dbpool.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

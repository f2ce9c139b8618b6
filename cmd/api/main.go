package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/yusufabdi/payledger/internal/adapter/handler"
	"github.com/yusufabdi/payledger/internal/adapter/middleware"
	"github.com/yusufabdi/payledger/internal/adapter/storage"
	"github.com/yusufabdi/payledger/internal/core/config"
	"github.com/yusufabdi/payledger/internal/core/ledger"
	"github.com/yusufabdi/payledger/internal/core/worker"
)

func main() {
	// 1. Load Config
	cfg := config.LoadConfig()

	// 2. Setup Logger
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// 3. Pick the Store: postgres when configured, in-memory otherwise
	var (
		store  ledger.Store
		dbPool *pgxpool.Pool
	)

	if cfg.DatabaseURL != "" {
		pool, err := storage.ConnectDB(cfg.DatabaseURL)
		if err != nil {
			slog.Error("❌ Database connection failed", "error", err)
			os.Exit(1)
		}

		if err := storage.RunMigrations(cfg.DatabaseURL); err != nil {
			slog.Error("❌ Migrations failed", "error", err)
			os.Exit(1)
		}

		dbPool = pool
		store = storage.NewLedgerStore(pool, cfg.OperationTimeout)
	} else {
		slog.Warn("DATABASE_URL not set, running with the in-memory store")
		store = storage.NewMemoryStore()
	}

	// 4. Setup Service & Handlers
	ledgerService := ledger.NewService(store)
	balanceHandler := &handler.BalanceHandler{Ledger: ledgerService}

	// 5. Setup Fiber
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	app.Use(cors.New())

	// 6. Routes
	api := app.Group("/v1")

	api.Post("/deposit", balanceHandler.Deposit)
	api.Post("/withdraw", balanceHandler.Withdraw)
	api.Get("/balance/:id", balanceHandler.GetBalance)
	api.Get("/accounts/:id/transactions", balanceHandler.GetHistory)

	if dbPool != nil {
		api.Post("/transfer", middleware.Idempotency(dbPool), balanceHandler.Transfer)
	} else {
		api.Post("/transfer", balanceHandler.Transfer)
	}

	// 7. Start Worker
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	if dbPool != nil && cfg.WebhookURL != "" {
		worker.StartNotifier(workerCtx, dbPool, cfg.WebhookURL, cfg.WebhookSecret, cfg.WorkerPollInterval)
	}

	// Graceful shutdown: stop accepting requests, then close the pool.
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	go func() {
		slog.Info("🚀 Server starting", "env", cfg.Env, "port", cfg.Port)

		if err := app.Listen(":" + cfg.Port); err != nil {
			slog.Error("Server forced to shutdown", "error", err)
		}
	}()

	<-stop
	slog.Info("🛑 Shutting down server...")

	if err := app.Shutdown(); err != nil {
		slog.Error("Server shutdown failed", "error", err)
	}

	stopWorker()

	if dbPool != nil {
		dbPool.Close()
		slog.Info("✅ Database connection closed")
	}

	slog.Info("👋 Server exited")
}

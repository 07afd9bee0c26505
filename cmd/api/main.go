package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"lotteryplus/internal/config"
	"lotteryplus/internal/service"
	"lotteryplus/internal/store"
	"lotteryplus/internal/transport"

	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

type application struct {
	config       *config.Config
	logger       *logrus.Logger
	lottery      service.LotteryService
	server       *http.Server
	shutdownChan chan struct{}
	progressDone chan struct{}
}

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(os.Stdout)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("Failed to load configuration: %v", err)
	}

	var ledger service.Ledger
	switch cfg.DBDriver {
	case "memory":
		logger.Warn("Running with the in-memory ledger; nothing will survive a restart")
		ledger = store.NewMemoryStore()
	case "postgres":
		db, err := store.ConnectDB(cfg.DBDriver, cfg.DBDataSourceName)
		if err != nil {
			logger.Fatalf("Failed to connect to database: %v", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.Errorf("Error closing database: %v", err)
			}
		}()

		if err := store.RunMigrations(db, cfg.MigrationsDir); err != nil {
			logger.Fatalf("Failed to run migrations: %v", err)
		}
		ledger = store.NewDBStore(db)
	default:
		logger.Fatalf("Unknown database driver %q", cfg.DBDriver)
	}

	var cache service.InvoiceCache
	redisClient, err := store.NewRedisClient(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Warnf("Redis unavailable, continuing without cache: %v", err)
	} else {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Errorf("Error closing Redis client: %v", err)
			}
		}()
		cache = store.NewRedisStore(redisClient)
	}

	lottery := service.NewLotteryService(logger, ledger, cache, cfg)

	app := &application{
		config:       cfg,
		logger:       logger,
		lottery:      lottery,
		shutdownChan: make(chan struct{}),
		progressDone: make(chan struct{}),
	}

	go app.runProgressLogger()

	router := transport.InitRoutes(
		transport.NewTicketHandler(lottery),
		transport.NewWebhookHandler(lottery),
		transport.NewAdminHandler(lottery),
		cfg.WebhookSecret,
		cfg.AdminToken,
	)

	app.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      router,
		IdleTimeout:  time.Minute,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		ErrorLog:     log.New(logger.Writer(), "", 0),
	}

	app.serve()
}

func (app *application) serve() {
	app.logger.Infof("Starting server on %s", app.server.Addr)

	errChan := make(chan error)
	go func() {
		if err := app.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		app.logger.Fatalf("Server error: %v", err)
	case sig := <-quit:
		app.logger.Infof("Received signal %s. Shutting down server...", sig)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	close(app.shutdownChan)
	select {
	case <-app.progressDone:
	case <-time.After(5 * time.Second):
		app.logger.Warn("Progress logger did not stop in time")
	}

	if err := app.server.Shutdown(ctx); err != nil {
		app.logger.Errorf("Graceful server shutdown failed: %v", err)
	} else {
		app.logger.Info("Server gracefully stopped")
	}
}

// runProgressLogger periodically reports sales progress, which also keeps the
// status snapshot in Redis warm.
func (app *application) runProgressLogger() {
	defer close(app.progressDone)

	ticker := time.NewTicker(app.config.ProgressInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			status, err := app.lottery.Status(ctx)
			cancel()
			if err != nil {
				app.logger.Errorf("Progress check failed: %v", err)
				continue
			}
			app.logger.WithFields(logrus.Fields{
				"sold_active": status.SoldActive,
				"capacity":    status.Capacity,
				"next_ticket": status.NextTicket,
			}).Info("sales progress")
		case <-app.shutdownChan:
			return
		}
	}
}

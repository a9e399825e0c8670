package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/tally/internal/config"
	"github.com/MrJamesThe3rd/tally/internal/database"
	"github.com/MrJamesThe3rd/tally/internal/duplicate"
	"github.com/MrJamesThe3rd/tally/internal/group"
	groupStore "github.com/MrJamesThe3rd/tally/internal/group/store"
	tallyHttp "github.com/MrJamesThe3rd/tally/internal/http"
	groupHandler "github.com/MrJamesThe3rd/tally/internal/http/group"
	importHandler "github.com/MrJamesThe3rd/tally/internal/http/importcsv"
	ledgerHandler "github.com/MrJamesThe3rd/tally/internal/http/ledger"
	matchingHandler "github.com/MrJamesThe3rd/tally/internal/http/matching"
	txHandler "github.com/MrJamesThe3rd/tally/internal/http/transaction"
	"github.com/MrJamesThe3rd/tally/internal/importer"
	"github.com/MrJamesThe3rd/tally/internal/ledger"
	ledgerStore "github.com/MrJamesThe3rd/tally/internal/ledger/store"
	"github.com/MrJamesThe3rd/tally/internal/matching"
	matchingStore "github.com/MrJamesThe3rd/tally/internal/matching/store"
	"github.com/MrJamesThe3rd/tally/internal/scenario"
)

const shutdownTimeout = 10 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	db, err := database.New(cfg.ConnectionString(), database.Options{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		slog.Error("failed to migrate database", "error", err)
		os.Exit(1)
	}

	detector, err := duplicate.NewDetector(duplicate.Config{
		Threshold:       cfg.Duplicate.Threshold,
		DateWindow:      cfg.Duplicate.DateWindow,
		AmountTolerance: cfg.Duplicate.AmountTolerance,
		Workers:         cfg.Duplicate.Workers,
	})
	if err != nil {
		slog.Error("invalid duplicate detection config", "error", err)
		os.Exit(1)
	}

	var (
		ledgerService   = ledger.NewService(ledgerStore.New(db), ledger.WithLockTimeout(cfg.Locks.AcquireTimeout))
		matchingService = matching.NewService(matchingStore.New(db))
		groupService    = group.NewService(groupStore.New(db))
		scenarioManager = scenario.NewManager(ledgerService, nil)
		coordinator     = importer.NewCoordinator(ledgerService, detector,
			importer.WithChunkSize(cfg.Import.ChunkSize),
			importer.WithClassifier(matchingService),
		)
	)

	var (
		ledgerH   = ledgerHandler.NewHandler(ledgerService, scenarioManager)
		txH       = txHandler.NewHandler(ledgerService)
		importH   = importHandler.NewHandler(coordinator, cfg.Import.MaxUpload)
		matchingH = matchingHandler.NewHandler(matchingService)
		groupH    = groupHandler.NewHandler(groupService)
	)

	router := tallyHttp.New(cfg.Server.AllowedOrigins, ledgerH, txH, importH, matchingH, groupH)

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  2 * cfg.Server.Timeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown failed", "error", err)
		}
	}()

	slog.Info("starting server", "addr", srv.Addr, "app", cfg.App.Name)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

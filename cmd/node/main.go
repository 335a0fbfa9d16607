package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/uhyunpark/limitbook/params"
	"github.com/uhyunpark/limitbook/pkg/api"
	"github.com/uhyunpark/limitbook/pkg/app/core/market"
	"github.com/uhyunpark/limitbook/pkg/app/exchange"
	"github.com/uhyunpark/limitbook/pkg/storage"
	"github.com/uhyunpark/limitbook/pkg/util"
)

func main() {
	envFile := flag.String("env", "", "path to .env file (default: .env in current directory)")
	flag.Parse()

	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv(*envFile)

	// Setup logging (write to both console and file)
	logger, err := util.NewLoggerWithFile(cfg.Log.File, cfg.Log.Level)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Log.File, "level", cfg.Log.Level)

	// ---- Journal ----
	journalPath := filepath.Join(cfg.Storage.DataDir, "journal")
	store, err := storage.NewPebbleStore(journalPath, cfg.Storage.SyncWrites)
	if err != nil {
		sugar.Fatalw("journal_open_failed", "path", journalPath, "err", err)
	}
	defer store.Close()
	sugar.Infow("journal_opened", "path", journalPath, "last_seq", store.LastSeq(), "sync", cfg.Storage.SyncWrites)

	// ---- Engine + API ----
	engine := exchange.New(store, exchange.WithLogger(sugar.Named("engine")))
	server := api.NewServer(engine, sugar.Named("api"), cfg.API.CORSOrigins)
	engine.OnOrder = server.BroadcastTop

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := engine.Start(ctx); err != nil {
		sugar.Fatalw("replay_failed", "err", err)
	}

	// Markets from config are created once; later boots find them in the journal.
	for _, name := range cfg.Markets {
		pair, err := market.ParseTradingPair(name)
		if err != nil {
			sugar.Fatalw("invalid_market", "market", name, "err", err)
		}
		if err := engine.AddMarket(ctx, pair); err != nil && !errors.Is(err, market.ErrMarketExists) {
			sugar.Fatalw("add_market_failed", "market", name, "err", err)
		}
	}
	sugar.Infow("markets_ready", "markets", engine.Markets())

	if err := server.Start(ctx, cfg.API.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		sugar.Errorw("api_stopped", "err", err)
	}
	sugar.Info("shutdown")
}

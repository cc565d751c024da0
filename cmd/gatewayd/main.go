package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sourcegraph/conc"
	"go.uber.org/zap"

	"github.com/uhyunpark/hypergate/params"
	"github.com/uhyunpark/hypergate/pkg/api"
	"github.com/uhyunpark/hypergate/pkg/chain"
	"github.com/uhyunpark/hypergate/pkg/crypto"
	"github.com/uhyunpark/hypergate/pkg/storage"
	"github.com/uhyunpark/hypergate/pkg/telemetry"
	"github.com/uhyunpark/hypergate/pkg/transaction"
	"github.com/uhyunpark/hypergate/pkg/util"
)

func main() {
	// Load config from .env file and environment variables
	cfg := params.LoadFromEnv("")

	logger, err := util.NewLoggerWithFile(cfg.Node.LogFile, cfg.Node.Verbose)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()
	sugar := logger.Sugar()
	sugar.Infow("logger_initialized", "log_file", cfg.Node.LogFile, "verbose", cfg.Node.Verbose)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, sugar); err != nil {
		sugar.Fatalw("node_failed", "err", err)
	}
}

func run(ctx context.Context, cfg params.Config, sugar *zap.SugaredLogger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tp, err := telemetry.NewProvider(ctx, telemetry.ConfigFromEnv())
	if err != nil {
		return err
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			sugar.Warnw("telemetry_shutdown_failed", "err", err)
		}
	}()
	sugar.Infow("telemetry_initialized", "enabled", tp.Enabled())

	// ---- Storage ----
	var backend storage.Backend
	if cfg.Node.InMemory {
		memStore, err := storage.NewPebbleMemStore()
		if err != nil {
			return err
		}
		backend = memStore
		sugar.Info("state_in_memory - nothing survives a restart")
	} else {
		dbPath := filepath.Join(cfg.Node.DataDir, "state")
		pebbleStore, err := storage.NewPebbleStore(dbPath)
		if err != nil {
			return err
		}
		backend = pebbleStore
		sugar.Infow("state_opened", "path", dbPath)
	}
	defer backend.Close()

	if err := os.MkdirAll(cfg.Node.DataDir, 0o755); err != nil {
		return err
	}
	wal, err := storage.NewFileWAL(filepath.Join(cfg.Node.DataDir, "receipts.log"))
	if err != nil {
		return err
	}
	defer wal.Close()

	// ---- Chain + genesis ----
	c, err := chain.New(backend, chain.Config{Logger: sugar, WAL: wal})
	if err != nil {
		return err
	}

	genesis := params.DefaultGenesis()
	if cfg.Gateway.Genesis != "" {
		if genesis, err = params.LoadGenesis(cfg.Gateway.Genesis); err != nil {
			return err
		}
	}
	gw, err := bootstrap(ctx, c, cfg.Gateway, genesis, sugar)
	if err != nil {
		return err
	}
	for _, tok := range genesis.Tokens {
		addr := common.HexToAddress(tok.Address)
		sugar.Infow("token_registered",
			"symbol", tok.Symbol, "address", addr.Hex(),
			"supply", totalSupply(ctx, c, addr).String(), "supported", tok.Supported)
	}

	// ---- Signed calls ----
	domain := crypto.DefaultDomain(gw.Address())
	domain.ChainID.SetInt64(cfg.Gateway.ChainID)
	exec := transaction.NewExecutor(c, gw, transaction.NewVerifier(domain), sugar)

	// ---- API Server ----
	apiServer := api.NewServer(c, gw, exec, api.Config{
		RateLimit: cfg.API.RateLimit,
		Burst:     cfg.API.Burst,
	}, sugar)

	var lifecycle conc.WaitGroup
	lifecycle.Go(func() { apiServer.Hub().Run(ctx) })
	lifecycle.Go(func() { apiServer.RunFeed(ctx) })
	lifecycle.Go(func() {
		if err := apiServer.Serve(ctx, cfg.API.Addr); err != nil && err != http.ErrServerClosed {
			sugar.Errorw("api_server_failed", "err", err)
			cancel()
		}
	})

	sugar.Infow("node_started",
		"gateway", gw.Address().Hex(),
		"chain_id", cfg.Gateway.ChainID,
		"seq", c.Seq(),
		"root", c.Root().Hex(),
		"api_addr", cfg.API.Addr)

	<-ctx.Done()
	sugar.Info("shutting_down")
	lifecycle.Wait()
	sugar.Infow("node_stopped", "seq", c.Seq())
	return nil
}

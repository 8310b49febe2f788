package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"math/big"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"atmdapp/internal/atm"
	"atmdapp/internal/config"
	"atmdapp/internal/dapp"
	"atmdapp/internal/idempotency"
	"atmdapp/internal/profile"
	"atmdapp/internal/server"
	"atmdapp/internal/tui"
	"atmdapp/internal/wallet"
)

func main() {
	var (
		configPath = flag.String("config", "", "YAML config path (defaults to $ATM_CONFIG or atm.yml)")
		mode       = flag.String("mode", "web", "front-end to run: web or tui")
		debug      = flag.Bool("debug", false, "log at debug level")
	)
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger, err := newLogger(*mode, *debug)
	if err != nil {
		log.Fatalf("logger error: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if !common.IsHexAddress(cfg.Contract.Address) {
		logger.Fatal("invalid contract address", zap.String("address", cfg.Contract.Address))
	}
	address := common.HexToAddress(cfg.Contract.Address)

	dialCtx, cancel := context.WithTimeout(ctx, cfg.Chain.RPCTimeout)
	client, err := ethclient.DialContext(dialCtx, cfg.Chain.RPCURL)
	cancel()
	if err != nil {
		logger.Fatal("dial chain", zap.String("rpc_url", cfg.Chain.RPCURL), zap.Error(err))
	}
	defer client.Close()

	provider := detectWallet(ctx, cfg, client, logger)

	profiles, closeProfiles, err := newProfileSource(ctx, cfg)
	if err != nil {
		logger.Fatal("profile source", zap.String("source", cfg.Profile.Source), zap.Error(err))
	}
	defer closeProfiles()

	env := &dapp.Env{
		Wallet:   provider,
		Bind:     newBinder(address, client, provider),
		Profiles: profiles,
		Log:      logger,
	}

	switch *mode {
	case "tui":
		runTUI(ctx, cfg, env, logger)
	case "web":
		runWeb(ctx, cfg, env, address, client, logger)
	default:
		logger.Fatal("unknown mode", zap.String("mode", *mode))
	}
}

// newLogger writes to stderr for the web front-end and to a file for the
// terminal one, which owns the screen.
func newLogger(mode string, debug bool) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if debug {
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	if mode == "tui" {
		path := filepath.Join(os.TempDir(), "atm-tui.log")
		zcfg.OutputPaths = []string{path}
		zcfg.ErrorOutputPaths = []string{path}
	}
	return zcfg.Build()
}

// detectWallet returns nil when no wallet capability is available; the
// client then stays on the install prompt.
func detectWallet(ctx context.Context, cfg *config.AppConfig, chain wallet.ChainIDReader, logger *zap.Logger) wallet.Provider {
	p, err := wallet.Detect(ctx, wallet.Config{
		Kind:          cfg.Wallet.Kind,
		RPCURL:        cfg.Wallet.RPCURL,
		PrivateKeyHex: cfg.Wallet.PrivateKey,
		ChainID:       cfg.Chain.ChainID,
	}, chain)
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		logger.Warn("no wallet available", zap.String("kind", cfg.Wallet.Kind), zap.Error(err))
		return nil
	case err != nil:
		logger.Fatal("wallet", zap.String("kind", cfg.Wallet.Kind), zap.Error(err))
	}
	logger.Info("wallet detected", zap.String("kind", p.Name()))
	return p
}

func newBinder(address common.Address, backend atm.Backend, provider wallet.Provider) dapp.Binder {
	return func(account common.Address) (atm.ATM, error) {
		if provider == nil {
			return nil, wallet.ErrNoWallet
		}
		signer, err := provider.Transactor(account)
		if err != nil {
			return nil, err
		}
		handle, err := atm.Bind(address, backend, signer)
		if err != nil {
			return nil, err
		}
		return handle, nil
	}
}

func newProfileSource(ctx context.Context, cfg *config.AppConfig) (profile.Source, func(), error) {
	if cfg.Profile.Source == "postgres" {
		src, err := profile.NewPostgresSource(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	src, err := profile.NewStaticSource(cfg.Profile.Static)
	if err != nil {
		return nil, nil, err
	}
	return src, func() {}, nil
}

func newStore(ctx context.Context, cfg *config.AppConfig) (idempotency.Store, func(), error) {
	switch cfg.Service.IdempotencyStore {
	case "file":
		store, err := idempotency.NewFileStore(cfg.Service.IdempotencyStorePath)
		if err != nil {
			return nil, nil, err
		}
		return store, func() {}, nil
	case "postgres":
		store, err := idempotency.NewPostgresStore(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil
	default:
		return idempotency.NewMemoryStore(), func() {}, nil
	}
}

func runWeb(ctx context.Context, cfg *config.AppConfig, env *dapp.Env, address common.Address, client *ethclient.Client, logger *zap.Logger) {
	store, closeStore, err := newStore(ctx, cfg)
	if err != nil {
		logger.Fatal("idempotency store", zap.String("store", cfg.Service.IdempotencyStore), zap.Error(err))
	}
	defer closeStore()

	// Read-only handle used as the chain health probe.
	probe, err := atm.Bind(address, client, nil)
	if err != nil {
		logger.Fatal("bind contract", zap.Error(err))
	}
	var checker atm.HealthChecker = probe

	srv, err := server.NewServer(cfg, env, store, server.Options{
		Logger:      logger,
		ChainHealth: checker.Ping,
	})
	if err != nil {
		logger.Fatal("server", zap.Error(err))
	}

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server stopped", zap.Error(err))
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Service.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown", zap.Error(err))
	}
}

func runTUI(ctx context.Context, cfg *config.AppConfig, env *dapp.Env, logger *zap.Logger) {
	deposit, ok := new(big.Int).SetString(cfg.Contract.DepositAmount, 10)
	if !ok {
		logger.Fatal("invalid deposit amount", zap.String("amount", cfg.Contract.DepositAmount))
	}
	withdraw, ok := new(big.Int).SetString(cfg.Contract.WithdrawAmount, 10)
	if !ok {
		logger.Fatal("invalid withdraw amount", zap.String("amount", cfg.Contract.WithdrawAmount))
	}

	p := tea.NewProgram(tui.New(ctx, env, tui.Config{
		Unit:            cfg.Contract.Unit,
		Decimals:        cfg.Contract.DisplayDecimals,
		DepositAmount:   deposit,
		WithdrawAmount:  withdraw,
		NotificationTTL: cfg.Notification.TTL,
	}), tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		logger.Fatal("tui", zap.Error(err))
	}
}

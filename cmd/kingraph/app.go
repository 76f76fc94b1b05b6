package main

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"kingraph/internal/config"
	"kingraph/internal/graph"
	"kingraph/internal/store"
	"kingraph/internal/wallet"
)

// app bundles the wired subsystems a command needs. Close releases them in
// reverse order of construction.
type app struct {
	cfg      *config.Config
	kv       *store.KV
	graph    *graph.Store
	executor *wallet.Executor
}

// openApp builds the graph store (with persistence restored from the KV
// database) and the wallet executor. The wallet starts disconnected; callers
// that need it call connectWallet.
func openApp() (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	dbPath := cfg.Storage.DatabasePath
	if !filepath.IsAbs(dbPath) {
		dbPath = filepath.Join(workspace, dbPath)
	}
	kv, err := store.Open(dbPath)
	if err != nil {
		return nil, fmt.Errorf("open state database: %w", err)
	}

	state := store.NewGraphState(kv)
	graphStore := graph.NewStore(state)
	restored := state.Restore(graphStore)
	logger.Debug("graph state restored", zap.Int("nodes", restored))

	rpc := wallet.NewRPCClient(cfg.Wallet.RPCURL, cfg.Wallet.Commitment, cfg.WalletTimeout())
	return &app{
		cfg:      cfg,
		kv:       kv,
		graph:    graphStore,
		executor: wallet.NewExecutor(rpc),
	}, nil
}

// connectWallet authorizes the configured signing backend. Only the
// raw-keypair backend works from the CLI; the extension and mobile adapter
// backends need an external transport and are rejected here.
func (a *app) connectWallet(ctx context.Context) error {
	switch a.cfg.Wallet.Backend {
	case string(wallet.BackendRawKeypair):
		if a.cfg.Wallet.Secret == "" {
			return fmt.Errorf("no wallet secret configured; set KINGRAPH_WALLET_SECRET")
		}
		signer, err := wallet.NewKeypairSigner(a.cfg.Wallet.Secret)
		if err != nil {
			return fmt.Errorf("load keypair: %w", err)
		}
		return a.executor.Connect(ctx, signer)
	default:
		return fmt.Errorf("wallet backend %q requires an external signing transport", a.cfg.Wallet.Backend)
	}
}

func (a *app) Close() {
	a.executor.Disconnect()
	a.graph.Close()
	if err := a.kv.Close(); err != nil {
		logger.Warn("close state database", zap.Error(err))
	}
}

package main

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/trestlehq/bidlevel/internal/config"
	"github.com/trestlehq/bidlevel/internal/lifecycle"
	"github.com/trestlehq/bidlevel/internal/reconcile"
	"github.com/trestlehq/bidlevel/internal/store"
	"github.com/trestlehq/bidlevel/pkg/matchai"
)

// env bundles the wired components a command needs.
type env struct {
	Store     store.Store
	Engine    *reconcile.Engine
	Lifecycle *lifecycle.Service
}

// initEnv opens the store and builds the engine and lifecycle service from
// config. Without an Anthropic key the engine runs heuristic-only.
func initEnv(ctx context.Context) (*env, error) {
	st, err := openStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close()
		return nil, err
	}

	policy := reconcile.DefaultPolicy()
	policy.Default = reconcile.Thresholds{
		QuantityPct: cfg.Reconcile.QuantityThresholdPct,
		PricePct:    cfg.Reconcile.PriceThresholdPct,
	}
	if cfg.Reconcile.PolicyFile != "" {
		p, err := reconcile.LoadPolicy(cfg.Reconcile.PolicyFile)
		if err != nil {
			st.Close()
			return nil, err
		}
		policy = p
	}

	opts := []reconcile.EngineOption{
		reconcile.WithPolicy(policy),
		reconcile.WithAITimeout(cfg.Reconcile.AITimeout()),
	}
	if cfg.Anthropic.Key != "" {
		opts = append(opts, reconcile.WithMatcher(matchai.NewClient(
			cfg.Anthropic.Key,
			matchai.WithModel(cfg.Anthropic.Model),
			matchai.WithRequestsPerMinute(cfg.Anthropic.RequestsPerMinute),
		)))
	} else {
		zap.L().Warn("no anthropic key configured, reconciliation is heuristic-only")
	}

	return &env{
		Store:     st,
		Engine:    reconcile.NewEngine(reconcile.NewCache(st), opts...),
		Lifecycle: lifecycle.New(st),
	}, nil
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("store close failed", zap.Error(err))
	}
}

func openStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite", "":
		return store.NewSQLite(sc.DatabaseURL)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL)
	default:
		return nil, eris.Errorf("unknown store driver %q", sc.Driver)
	}
}

package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/R3v3ill3/rating-engine/internal/batch"
	"github.com/R3v3ill3/rating-engine/internal/engine"
	"github.com/R3v3ill3/rating-engine/internal/model"
	"github.com/R3v3ill3/rating-engine/internal/store"
)

// env holds the initialized store and services shared by the commands.
type env struct {
	Store   store.Store
	Service *engine.Service
	Batch   *batch.Calculator
}

// Close releases resources held by the environment.
func (e *env) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initEnv opens the configured store, runs migrations, and wires the
// service and batch calculator. Callers should defer env.Close().
func initEnv(ctx context.Context) (*env, error) {
	st, err := initStore(ctx)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	svc := engine.NewService(st)
	return &env{
		Store:   st,
		Service: svc,
		Batch:   batch.NewCalculator(svc),
	}, nil
}

// initStore opens the backend selected by store.driver.
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		}, cfg.Store.ReadRPS)
	case "sqlite", "":
		return store.NewSQLite(cfg.Store.DatabaseURL, cfg.Store.ReadRPS)
	default:
		return nil, eris.Errorf("unknown store driver %q", cfg.Store.Driver)
	}
}

// resolveProfile loads the profile named by --profile (or the configured
// default), at the pinned --profile-version when nonzero.
func resolveProfile(ctx context.Context, e *env, name string, version int) (*model.WeightingProfile, error) {
	if name == "" {
		name = cfg.Engine.DefaultProfile
	}
	return e.Service.ResolveProfile(ctx, name, version)
}

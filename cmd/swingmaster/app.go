package main

import (
	"context"
	"fmt"

	"github.com/khautala/swingmaster/internal/config"
	"github.com/khautala/swingmaster/internal/ewscore"
	"github.com/khautala/swingmaster/internal/metrics"
	"github.com/khautala/swingmaster/internal/persistence"
	"github.com/khautala/swingmaster/internal/policy"
	"github.com/khautala/swingmaster/internal/signals"
	"github.com/khautala/swingmaster/internal/universe"
)

// app bundles the wired components behind every command.
type app struct {
	cfg       config.Config
	store     *persistence.Store
	states    *persistence.StateRepo
	runs      *persistence.RunRepo
	scores    *persistence.EWScoreRepo
	ohlc      *persistence.OHLCReader
	runner    *universe.Runner
	scorer    *ewscore.Engine
	confirmer *ewscore.Confirmer
}

// buildApp loads config, opens storage, applies migrations and wires the
// pipeline for the configured policy version.
func buildApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return nil, err
	}
	if flagDB != "" {
		cfg.DB = flagDB
	}

	store, err := persistence.Open(cfg.DB)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(ctx); err != nil {
		store.Close()
		return nil, err
	}
	if err := store.EnsureOHLCTable(ctx); err != nil {
		store.Close()
		return nil, err
	}

	states := persistence.NewStateRepo(store)
	runs := persistence.NewRunRepo(store)
	scores := persistence.NewEWScoreRepo(store)
	reader, err := persistence.NewOHLCReader(store, cfg.OHLCTable)
	if err != nil {
		store.Close()
		return nil, err
	}

	provider, err := signals.NewProvider(cfg.Provider)
	if err != nil {
		store.Close()
		return nil, err
	}
	provider.SetDebug(flagVerbose)

	pol, err := policyFor(cfg.PolicyVersion, states)
	if err != nil {
		store.Close()
		return nil, err
	}

	runner := universe.NewRunner(states, runs, reader, provider, pol, cfg.EngineVersion)
	scorer := ewscore.NewEngine(states, scores, reader)
	confirmer := ewscore.NewConfirmer(states, reader)

	metrics.Serve(cfg.MetricsAddr)

	return &app{
		cfg:       cfg,
		store:     store,
		states:    states,
		runs:      runs,
		scores:    scores,
		ohlc:      reader,
		runner:    runner,
		scorer:    scorer,
		confirmer: confirmer,
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
}

func policyFor(version string, history policy.History) (policy.TransitionPolicy, error) {
	switch version {
	case "v1":
		return policy.NewV1(history), nil
	case "v2", "dev":
		return policy.NewV2(history), nil
	case "v3":
		return policy.NewV3(history), nil
	}
	return nil, fmt.Errorf("unknown policy version %q", version)
}

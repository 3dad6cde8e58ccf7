package cli

import (
	"context"
	"fmt"
	"io"

	"db-local-sync/internal/api"
	"db-local-sync/internal/config"
	"db-local-sync/internal/confirm"
	"db-local-sync/internal/database"
	"db-local-sync/internal/notify"
	"db-local-sync/internal/store"
	"db-local-sync/internal/sync"
)

// app is the set of collaborators shared by the commands.
type app struct {
	cfg     *config.Config
	pair    *database.Pair
	store   store.Store
	source  *database.Source
	mutator *database.Mutator
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	pair, err := database.OpenPair(cfg.Databases)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(ctx, cfg.StateStorage)
	if err != nil {
		pair.Close()
		return nil, fmt.Errorf("failed to init state store: %w", err)
	}

	return &app{
		cfg:     cfg,
		pair:    pair,
		store:   st,
		source:  database.NewSource(pair),
		mutator: database.NewMutator(pair, cfg.Sync.BatchInsertSize),
	}, nil
}

func (a *app) Close() {
	if a.store != nil {
		a.store.Close()
	}
	a.pair.Close()
}

func (a *app) local() database.Identity  { return a.pair.Local.Identity }
func (a *app) remote() database.Identity { return a.pair.Remote.Identity }

func (a *app) notifier(w io.Writer) notify.Notifier {
	n := notify.Multi{notify.Log{}}
	if a.cfg.Notify.Terminal {
		n = append(n, notify.NewTerminal(w))
	}
	return n
}

func (a *app) orchestrator(gate confirm.Gate, n notify.Notifier) (*sync.Orchestrator, error) {
	return sync.NewOrchestrator(a.source, gate, a.mutator, sync.Options{
		Local:        a.local(),
		Remote:       a.remote(),
		BackupSuffix: a.cfg.Sync.BackupSuffix,
		Notifier:     n,
		Store:        a.store,
	})
}

func (a *app) apiOptions(manual *confirm.Manual) []api.Option {
	opts := []api.Option{
		api.WithAuthToken(a.cfg.Server.AuthToken),
		api.WithCorsOrigins(a.cfg.Server.CorsOrigins),
	}
	if manual != nil {
		opts = append(opts, api.WithApprover(manual))
	}
	if a.store != nil {
		opts = append(opts, api.WithHistory(a.store))
	}
	return opts
}

// newGate builds the confirmation gate for mode. The Manual gate is also
// returned so the API can resolve its prompts.
func newGate(mode string, cfg config.ConfirmConfig) (confirm.Gate, *confirm.Manual, error) {
	switch mode {
	case "terminal":
		return confirm.NewTerminal(cfg.GetTimeout()), nil, nil
	case "api":
		m := confirm.NewManual(cfg.GetTimeout())
		return m, m, nil
	case "auto":
		return confirm.Auto{}, nil, nil
	}
	return nil, nil, fmt.Errorf("unknown confirmation mode %q", mode)
}

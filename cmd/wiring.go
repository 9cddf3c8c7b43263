package cmd

import (
	"context"
	"fmt"
	"strings"

	"neon2retro/internal/config"
	"neon2retro/internal/migration"
	"neon2retro/internal/neon"
	"neon2retro/internal/payload"
	"neon2retro/internal/reconcile"
	"neon2retro/internal/retro"
)

// loadConfig loads the environment and checks the parts a command needs.
func loadConfig(parts ...config.Part) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Require(parts...); err != nil {
		return nil, fmt.Errorf("configuration: %w", err)
	}
	return cfg, nil
}

// newTokens pins configured tokens and mints the rest.
func newTokens(refs config.References) reconcile.Tokens {
	minted := reconcile.MintedTokens{GSTTag: refs.GSTTag, CostTag: refs.CostTag}
	if len(refs.GSTTokens) == 0 && len(refs.CostTokens) == 0 {
		return minted
	}

	fixed := reconcile.FixedTokens{
		Rates:      refs.GSTTokens,
		Categories: map[string]string{},
		Fallback:   minted,
	}
	for _, name := range reconcile.CostCategories {
		if tok, ok := refs.CostTokens[strings.ToLower(name)]; ok {
			fixed.Categories[name] = tok
		}
	}
	return fixed
}

func newBuilder(cfg *config.Config) (*payload.Builder, error) {
	mode, err := payload.ParseTotalMode(cfg.TotalAmountMode)
	if err != nil {
		return nil, err
	}
	return payload.NewBuilder(payload.Settings{
		Currency:               cfg.References.Currency,
		CostCenter:             cfg.References.CostCenter,
		CargoType:              cfg.References.CargoType,
		CharterType:            cfg.References.CharterType,
		PurchaseOrderReference: cfg.References.PurchaseOrderReference,
		ReferencePrefix:        cfg.ReferencePrefix,
		TotalMode:              mode,
	}), nil
}

func newRetroClient(cfg *config.Config) (*retro.Client, error) {
	return retro.NewClient(retro.Config{
		BaseURL:  cfg.RetroAPIURL,
		AuthURL:  cfg.AuthAPIURL,
		Username: cfg.RetroUsername,
		Password: cfg.RetroPassword,
		Timeout:  cfg.RequestTimeout,
	})
}

// neonConnector opens the source lazily so that a failed login never
// touches the database.
func neonConnector(cfg *config.Config) migration.Connector {
	return func(ctx context.Context) (migration.Source, error) {
		return neon.Open(ctx, cfg.NeonConnectionString, cfg.NeonTable)
	}
}

func newMigrator(cfg *config.Config, opts migration.Options) (*migration.Migrator, error) {
	builder, err := newBuilder(cfg)
	if err != nil {
		return nil, err
	}
	client, err := newRetroClient(cfg)
	if err != nil {
		return nil, err
	}
	if opts.DefaultLimit == 0 {
		opts.DefaultLimit = cfg.DefaultLimit
	}
	return migration.New(neonConnector(cfg), client, reconcile.New(newTokens(cfg.References)), builder, opts), nil
}

// listRecords opens the source for a single listing.
func listRecords(cfg *config.Config) func(ctx context.Context, limit int) ([]neon.RecordSummary, error) {
	return func(ctx context.Context, limit int) ([]neon.RecordSummary, error) {
		repo, err := neon.Open(ctx, cfg.NeonConnectionString, cfg.NeonTable)
		if err != nil {
			return nil, err
		}
		defer repo.Close()
		return repo.ListSummaries(ctx, limit)
	}
}

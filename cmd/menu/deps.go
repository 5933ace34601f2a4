package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ersonp/menu-core/internal/application/handlers"
	"github.com/ersonp/menu-core/internal/domain/matching"
	"github.com/ersonp/menu-core/internal/domain/ports"
	"github.com/ersonp/menu-core/internal/domain/services"
	"github.com/ersonp/menu-core/internal/infrastructure/api"
	"github.com/ersonp/menu-core/internal/infrastructure/config"
	embedder "github.com/ersonp/menu-core/internal/infrastructure/embedder/openai"
	"github.com/ersonp/menu-core/internal/infrastructure/logging"
	"github.com/ersonp/menu-core/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/menu-core/internal/infrastructure/vectordb/qdrant"
)

// Deps holds everything a command may call into.
type Deps struct {
	Config *config.Config
	Logger *zap.SugaredLogger
	Engine *matching.Engine

	Catalog     *services.CatalogService
	Restaurants *services.RestaurantService
	Menus       *services.MenuService
	Matcher     *services.MatchService
	Ledger      *services.LedgerService
	Semantic    *services.SemanticService // nil unless semantic matching is enabled

	db          ports.RelationalDB
	collections ports.CollectionManager
}

// API returns the services exposed over HTTP.
func (d *Deps) API() api.Services {
	return api.Services{
		Engine:      d.Engine,
		Catalog:     d.Catalog,
		Restaurants: d.Restaurants,
		Menus:       d.Menus,
		Matcher:     d.Matcher,
		Ledger:      d.Ledger,
	}
}

// ImportHandler returns a handler for catalog file imports.
func (d *Deps) ImportHandler() *handlers.ImportHandler {
	return handlers.NewImportHandler(services.NewImportService(d.db, d.Catalog))
}

// InitHandler returns a handler preparing the workspace.
func (d *Deps) InitHandler() *handlers.InitHandler {
	return handlers.NewInitHandler(d.db, d.Catalog, d.collections, embedder.VectorSize)
}

// SyncHandler returns a handler rebuilding the candidate indexes.
func (d *Deps) SyncHandler() *handlers.SyncHandler {
	return handlers.NewSyncHandler(d.Catalog, d.Semantic)
}

// withDeps loads config, builds dependencies with a ready candidate index,
// then calls fn. It handles cleanup automatically.
func withDeps(ctx context.Context, flags *globalFlags, fn func(*Deps) error) error {
	return buildDeps(ctx, flags, true, fn)
}

// withRawDeps is withDeps without the initial index build, for commands
// that build it themselves.
func withRawDeps(ctx context.Context, flags *globalFlags, fn func(*Deps) error) error {
	return buildDeps(ctx, flags, false, fn)
}

func buildDeps(ctx context.Context, flags *globalFlags, buildIndex bool, fn func(*Deps) error) error {
	base, err := flags.workspace()
	if err != nil {
		return err
	}

	cfg, err := config.Load(base)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		return fmt.Errorf("creating logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	db, err := sqlite.NewRepository(cfg.SQLite)
	if err != nil {
		return fmt.Errorf("creating sqlite repository: %w", err)
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring sqlite schema: %w", err)
	}

	engine, err := matching.NewEngine(cfg.Matching.EngineOptions())
	if err != nil {
		return fmt.Errorf("creating matching engine: %w", err)
	}

	deps := &Deps{Config: cfg, Logger: logger, Engine: engine, db: db}

	var mirror services.EntryMirror
	if cfg.Semantic.Enabled {
		repo, err := qdrant.NewRepository(cfg.Qdrant)
		if err != nil {
			return fmt.Errorf("creating qdrant repository: %w", err)
		}
		defer repo.Close()

		emb, err := embedder.NewEmbedder(cfg.Embedder)
		if err != nil {
			return fmt.Errorf("creating embedder: %w", err)
		}

		deps.Semantic = services.NewSemanticService(emb, repo, repo, embedder.VectorSize, cfg.Semantic.Limit, logger)
		deps.collections = repo
		mirror = deps.Semantic
	}

	deps.Catalog = services.NewCatalogService(db, engine, mirror, logger)
	deps.Restaurants = services.NewRestaurantService(db)
	deps.Ledger = services.NewLedgerService(db, deps.Catalog, services.PromotionPolicy{
		AutoPromote: cfg.Ledger.AutoPromote,
		Threshold:   cfg.Ledger.PromoteThreshold,
	}, logger)

	opts := []services.MatchServiceOption{services.WithPromoter(deps.Ledger)}
	if deps.Semantic != nil {
		opts = append(opts, services.WithNominator(deps.Semantic))
	}
	deps.Matcher = services.NewMatchService(db, engine, logger, opts...)
	deps.Menus = services.NewMenuService(db, engine, deps.Matcher, cfg.Server.BatchLimit, logger)

	if buildIndex {
		n, err := deps.Catalog.RebuildIndex(ctx)
		if err != nil {
			return err
		}
		logger.Debugw("candidate index built", "entries", n)
	}

	return fn(deps)
}

package app

import (
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/vikasgargbear/production-infra-sub000/internal/credit"
	"github.com/vikasgargbear/production-infra-sub000/internal/inventory"
	"github.com/vikasgargbear/production-infra-sub000/internal/ledger"
	"github.com/vikasgargbear/production-infra-sub000/internal/masterdata"
	"github.com/vikasgargbear/production-infra-sub000/internal/numbering"
	"github.com/vikasgargbear/production-infra-sub000/internal/observability"
	"github.com/vikasgargbear/production-infra-sub000/internal/platform/db"
	"github.com/vikasgargbear/production-infra-sub000/internal/returns"
	"github.com/vikasgargbear/production-infra-sub000/internal/sales"
	"github.com/vikasgargbear/production-infra-sub000/internal/shared"
	"github.com/vikasgargbear/production-infra-sub000/internal/tax"
)

// Pool is the database handle the engine runs on. *pgxpool.Pool satisfies it.
type Pool interface {
	db.Beginner
	db.Querier
}

// EngineDeps are the process-level resources shared by the services.
type EngineDeps struct {
	Pool    Pool
	Redis   redis.Cmdable
	Metrics *observability.Metrics
	Clock   shared.Clock
	Logger  *slog.Logger
}

// Engine holds the wired domain services.
type Engine struct {
	Sales     *sales.Service
	Returns   *returns.Service
	Inventory *inventory.Service
	Credit    *credit.Service
	Ledger    *ledger.Service
}

// NewEngine builds every service from configuration. A nil Redis client
// disables the idempotency fast path; the database record still applies.
func NewEngine(cfg *Config, deps EngineDeps) (*Engine, error) {
	if deps.Pool == nil {
		return nil, fmt.Errorf("app: engine needs a database pool")
	}
	if deps.Clock == nil {
		deps.Clock = shared.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	iso, err := cfg.Isolation()
	if err != nil {
		return nil, err
	}
	taxCfg, err := cfg.TaxConfig()
	if err != nil {
		return nil, err
	}
	allocCfg, err := cfg.AllocatorConfig()
	if err != nil {
		return nil, err
	}

	taxEngine := tax.NewEngine(taxCfg)
	allocator := inventory.NewAllocator(allocCfg)
	numbers := numbering.NewGenerator(cfg.NumberingRetryLimit)
	audit := shared.NewAuditLogger(deps.Pool)

	salesComponents := sales.Components{
		Tax:       taxEngine,
		Allocator: allocator,
		Numbers:   numbers,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	returnsComponents := returns.Components{
		Tax:       taxEngine,
		Allocator: allocator,
		Numbers:   numbers,
		Clock:     deps.Clock,
		Logger:    deps.Logger,
	}
	if deps.Redis != nil {
		salesComponents.Cache = shared.NewResultCache(deps.Redis, cfg.IdempotencyTTL)
	}
	if deps.Metrics != nil {
		salesComponents.Metrics = deps.Metrics
		returnsComponents.Metrics = deps.Metrics
	}

	return &Engine{
		Sales:   sales.NewService(sales.NewRepository(deps.Pool, iso), audit, cfg.SalesConfig(loc), salesComponents),
		Returns: returns.NewService(returns.NewRepository(deps.Pool, iso), audit, cfg.ReturnsConfig(loc), returnsComponents),
		Inventory: inventory.NewService(inventory.NewRepository(deps.Pool, iso), audit, deps.Clock, inventory.ServiceConfig{
			Allocator: allocCfg,
			Location:  loc,
			Policy:    cfg.TxPolicy(),
		}, deps.Logger),
		Credit: credit.NewService(masterdata.NewRepository(deps.Pool)),
		Ledger: ledger.NewService(ledger.NewPGStore(deps.Pool), deps.Clock, loc, deps.Logger),
	}, nil
}

// Handlers returns router params carrying one HTTP adapter per service.
func (e *Engine) Handlers(logger *slog.Logger) RouterParams {
	return RouterParams{
		Logger:           logger,
		SalesHandler:     sales.NewHandler(logger, e.Sales),
		ReturnsHandler:   returns.NewHandler(logger, e.Returns),
		InventoryHandler: inventory.NewHandler(logger, e.Inventory),
		CreditHandler:    credit.NewHandler(e.Credit),
		LedgerHandler:    ledger.NewHandler(e.Ledger),
	}
}

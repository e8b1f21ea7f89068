// Package app wires configuration into a ready estimation engine and its
// stores. The CLI and the server share this wiring.
package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"fibre-cost/adapters/storage"
	"fibre-cost/core/catalog"
	"fibre-cost/core/engine"
	"fibre-cost/core/geo"
	"fibre-cost/core/history"
	"fibre-cost/core/oracle"
	"fibre-cost/internal/config"
	ferrors "fibre-cost/internal/errors"
	"fibre-cost/internal/logging"
	"fibre-cost/internal/telemetry"
)

// App holds the wired collaborators
type App struct {
	Config   *config.Config
	Engine   *engine.Engine
	Catalogs *catalog.FileStore
	History  history.Store
	Audit    storage.Store
	Oracle   oracle.Oracle

	shutdown telemetry.Shutdown
	log      *zap.Logger
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, version string) (*App, error) {
	log := logging.Named("app")

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry.Endpoint, cfg.Telemetry.ServiceName, version, cfg.Telemetry.Insecure)
	if err != nil {
		return nil, err
	}

	if err := ensureSQLiteDir(cfg.Audit); err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	audit, err := storage.Open(storage.Backend(cfg.Audit.Driver), cfg.Audit.DSN)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}

	a := &App{
		Config:   cfg,
		Catalogs: catalog.NewFileStore(cfg.Catalog.Path, cfg.Catalog.VersionsDir),
		History:  NewHistory(cfg.History),
		Audit:    audit,
		Oracle:   NewOracle(cfg.Oracle),
		shutdown: shutdown,
		log:      log,
	}

	deps := engine.Dependencies{
		Catalogs: a.Catalogs,
		Oracle:   a.Oracle,
		History:  a.History,
		Locator:  geo.NewStaticLocator(geo.ReferenceProviders()),
	}
	// a nil storage.Store must not become a non-nil AuditSink
	if audit != nil {
		deps.Audit = audit
	}
	a.Engine = engine.NewEngine(deps, EngineConfig(cfg.Pipeline))

	log.Debug("application wired",
		zap.String("oracle", cfg.Oracle.Provider),
		zap.String("audit", cfg.Audit.Driver),
		zap.String("catalog", cfg.Catalog.Path))
	return a, nil
}

// NewOracle selects the advisory oracle for the configured provider.
// openai without an API key degrades to Unavailable, so every stage falls back.
func NewOracle(cfg config.OracleConfig) oracle.Oracle {
	switch cfg.Provider {
	case "openai":
		if cfg.APIKey == "" {
			logging.Warn("no oracle API key configured; advisory stages will use fallbacks")
			return oracle.Unavailable{Reason: "no API key configured"}
		}
		return oracle.Instrument(oracle.NewOpenAIClient(oracle.OpenAIConfig{
			BaseURL:   cfg.BaseURL,
			APIKey:    cfg.APIKey,
			Model:     cfg.Model,
			FastModel: cfg.FastModel,
			Timeout:   cfg.Timeout(),
		}))
	case "stub":
		return oracle.Instrument(oracle.Offline())
	default:
		return oracle.Unavailable{Reason: "oracle disabled"}
	}
}

// NewHistory creates the historical record store; an empty path keeps it in memory
func NewHistory(cfg config.HistoryConfig) history.Store {
	if cfg.Path == "" {
		return history.NewMemoryStore(cfg.Capacity)
	}
	return history.NewFileStore(cfg.Path, cfg.Capacity)
}

// EngineConfig maps pipeline settings onto the engine
func EngineConfig(cfg config.PipelineConfig) engine.EngineConfig {
	ec := engine.DefaultEngineConfig()
	ec.MaxRetries = cfg.MaxRetries
	if cfg.RetryScope != "" {
		ec.RetryScope = engine.RetryScope(cfg.RetryScope)
	}
	if cfg.AnomalyThreshold > 0 {
		ec.AnomalyThreshold = decimal.NewFromFloat(cfg.AnomalyThreshold)
	}
	if cfg.GovernanceRiskThreshold > 0 {
		ec.GovernanceRiskThreshold = cfg.GovernanceRiskThreshold
	}
	return ec
}

func ensureSQLiteDir(cfg config.AuditConfig) error {
	if storage.Backend(cfg.Driver) != storage.BackendSQLite {
		return nil
	}
	if cfg.DSN == "" || cfg.DSN == ":memory:" || strings.HasPrefix(cfg.DSN, "file:") {
		return nil
	}
	dir := filepath.Dir(cfg.DSN)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ferrors.Wrap(ferrors.TypeConfig, "create audit database directory", err)
	}
	return nil
}

// Close releases the audit database and flushes traces
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Audit != nil {
		errs = append(errs, a.Audit.Close())
	}
	if a.shutdown != nil {
		errs = append(errs, a.shutdown(ctx))
	}
	return errors.Join(errs...)
}

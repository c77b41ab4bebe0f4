// Package engine orchestrates the migration pipeline: discover legacy
// artifacts, extract them, build the dependency plan, translate each
// unit's SQL, and emit warehouse model files with registry bookkeeping.
package engine

import (
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/sqlmorph/sqlmorph/internal/catalog"
	"github.com/sqlmorph/sqlmorph/internal/config"
	"github.com/sqlmorph/sqlmorph/internal/registry"
	"github.com/sqlmorph/sqlmorph/pkg/translate"
)

// Engine coordinates the migration pipeline components.
type Engine struct {
	cfg        *config.Config
	logger     *slog.Logger
	registry   *registry.Registry
	catalog    *catalog.Catalog
	translator *translate.Translator
}

// Config holds engine configuration.
type Config struct {
	// Project is the loaded project configuration.
	Project *config.Config
	// Logger is optional; defaults to a discard logger.
	Logger *slog.Logger
}

// New creates an engine from project configuration. It opens the
// registry database and initializes its schema.
func New(cfg Config) (*Engine, error) {
	if cfg.Project == nil {
		return nil, fmt.Errorf("project configuration is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	reg := registry.New()
	if err := reg.Open(cfg.Project.RegistryPath); err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}
	if err := reg.InitSchema(); err != nil {
		_ = reg.Close()
		return nil, fmt.Errorf("failed to initialize registry schema: %w", err)
	}

	e := &Engine{
		cfg:      cfg.Project,
		logger:   logger,
		registry: reg,
	}

	// The column-type catalog is optional; without it the encoded-date
	// rule never fires because no column type can be resolved.
	if path := cfg.Project.CatalogPath(); path != "" {
		cat, err := catalog.Load(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				logger.Debug("no catalog found", "path", path)
			} else {
				_ = reg.Close()
				return nil, fmt.Errorf("failed to load catalog: %w", err)
			}
		} else {
			e.catalog = cat
			logger.Debug("loaded catalog", "path", path)
		}
	}

	opts := []translate.Option{}
	if tc := cfg.Project.Translate; tc != nil {
		if len(tc.AllowFunctions) > 0 {
			opts = append(opts, translate.WithAllowList(tc.AllowFunctions...))
		}
		if len(tc.Renames) > 0 {
			opts = append(opts, translate.WithRenames(tc.Renames))
		}
	}

	var lookup translate.TypeLookup
	if e.catalog != nil {
		lookup = e.catalog
	}
	e.translator = translate.New(translate.Oracle(), lookup, opts...)

	return e, nil
}

// Registry exposes the underlying artifact registry for CLI commands.
func (e *Engine) Registry() *registry.Registry {
	return e.registry
}

// Translator exposes the configured translator for one-off statement
// translation.
func (e *Engine) Translator() *translate.Translator {
	return e.translator
}

// Close releases the registry database.
func (e *Engine) Close() error {
	if e.registry != nil {
		return e.registry.Close()
	}
	return nil
}

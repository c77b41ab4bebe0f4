// Package commands implements the sqlmorph subcommands.
package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/sqlmorph/sqlmorph/internal/cli/output"
	"github.com/sqlmorph/sqlmorph/internal/config"
	"github.com/sqlmorph/sqlmorph/internal/engine"
)

// Runtime carries the loaded configuration and renderer through the
// command context.
type Runtime struct {
	Config   *config.Config
	Renderer *output.Renderer
	Logger   *slog.Logger
}

type runtimeKey struct{}

// WithRuntime stores the runtime in a context.
func WithRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey{}, rt)
}

// GetRuntime retrieves the runtime from a command context, falling
// back to defaults so commands never nil-panic.
func GetRuntime(ctx context.Context) *Runtime {
	if rt, ok := ctx.Value(runtimeKey{}).(*Runtime); ok {
		return rt
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return &Runtime{
		Config:   cfg,
		Renderer: output.NewRenderer(os.Stdout, os.Stderr, output.ModeAuto),
		Logger:   slog.New(slog.DiscardHandler),
	}
}

// NewEngine builds an engine from the runtime configuration, creating
// the registry directory if needed.
func (rt *Runtime) NewEngine() (*engine.Engine, error) {
	if dir := filepath.Dir(rt.Config.RegistryPath); dir != "." && dir != "" && rt.Config.RegistryPath != ":memory:" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create registry directory: %w", err)
		}
	}
	return engine.New(engine.Config{Project: rt.Config, Logger: rt.Logger})
}

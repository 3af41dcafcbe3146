package app

import (
	"context"
	"io"
	"log/slog"

	"github.com/go-git/go-billy/v5"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// App encapsulates the application's dependencies, configuration, and lifecycle.
type App struct {
	outW     io.Writer
	fs       billy.Filesystem
	logger   *slog.Logger
	config   *Config
	registry *extension.Registry
	loader   *ir.Loader
}

// NewApp is the constructor for the main application. It returns a fully
// initialized App instance, including its own isolated logger and extension
// registry. With no modules given, the extensions named by the config are
// registered.
func NewApp(outW io.Writer, fs billy.Filesystem, cfg *Config, modules ...extension.Module) *App {
	logger := newLogger(cfg.LogLevel, cfg.LogFormat, outW)
	logger.Debug("Logger configured successfully.")

	reg := extension.NewRegistry()
	if len(modules) == 0 {
		modules = selectModules(cfg.Extensions)
	}
	for _, mod := range modules {
		mod.Register(reg)
	}
	logger.Debug("All extensions registered.", "count", len(modules))

	return &App{
		outW:     outW,
		fs:       fs,
		logger:   logger,
		config:   cfg,
		registry: reg,
		loader:   ir.NewLoader(fs),
	}
}

// Registry returns the application's extension registry. This is primarily
// for testing.
func (a *App) Registry() *extension.Registry {
	return a.registry
}

// Context returns ctx carrying the application logger.
func (a *App) Context(ctx context.Context) context.Context {
	return ctxlog.WithLogger(ctx, a.logger)
}

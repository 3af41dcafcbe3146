package app

import (
	"context"
	"fmt"

	"github.com/specialistvlad/pkgbind/internal/bind"
	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/diag"
)

// BindError reports a bind that finished with errors.
type BindError struct {
	Stage  string
	Errors int
}

func (e *BindError) Error() string {
	return fmt.Sprintf("bind failed at stage %s with %d error(s)", e.Stage, e.Errors)
}

// Run loads the intermediate, binds it and applies the file transfers.
func (a *App) Run(ctx context.Context) (*bind.Result, error) {
	ctx = a.Context(ctx)
	a.logger.Debug("App.Run method started.")

	in, err := a.loader.Load(ctx, a.config.IntermediatePaths...)
	if err != nil {
		return nil, fmt.Errorf("failed to load intermediate: %w", err)
	}

	st, err := bind.NewState(in, a.options())
	if err != nil {
		return nil, fmt.Errorf("failed to prepare bind: %w", err)
	}

	orchestrator := bind.NewDefault()
	res := orchestrator.Run(ctx, st)
	if !res.Succeeded {
		return res, &BindError{Stage: res.FailedStage, Errors: res.Diagnostics.Count(diag.Error)}
	}

	a.logger.Debug("Applying file transfers.", "count", len(res.FileTransfers))
	if err := bind.ApplyTransfers(a.fs, res.FileTransfers); err != nil {
		return res, err
	}
	a.logger.Info("🏁 Package written.", "output", a.config.OutputPath, "transfers", len(res.FileTransfers))
	return res, nil
}

func (a *App) options() bind.Options {
	cfg := a.config
	// NewConfig already validated the level.
	level, _ := cabinet.ParseLevel(cfg.Compression)
	return bind.Options{
		FS:                     a.fs,
		OutputPath:             cfg.OutputPath,
		IntermediateFolder:     cfg.IntermediateFolder,
		LayoutDir:              cfg.LayoutDir,
		Threads:                cfg.Threads,
		CabCachePath:           cfg.CabCachePath,
		DefaultCompression:     level,
		SuppressLayout:         cfg.SuppressLayout,
		SuppressValidationRows: cfg.SuppressValidationRows,
		KeepAddedColumns:       cfg.KeepAddedColumns,
		DeltaPatch:             cfg.DeltaPatch,
		Extensions:             a.registry,
	}
}

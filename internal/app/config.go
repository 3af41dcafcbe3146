package app

import (
	"errors"
	"fmt"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/config"
)

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	IntermediatePaths []string // hcl files or directories
	OutputPath        string

	IntermediateFolder     string
	LayoutDir              string
	Threads                int
	CabCachePath           string
	Compression            string
	SuppressLayout         bool
	SuppressValidationRows bool
	KeepAddedColumns       bool
	DeltaPatch             bool
	// Extensions names the built-in extensions to load; empty loads all.
	Extensions []string

	LogFormat string
	LogLevel  string
}

func NewConfig(cfg Config) (*Config, error) {
	if len(cfg.IntermediatePaths) == 0 {
		return nil, errors.New("at least one intermediate path is required")
	}
	if cfg.OutputPath == "" {
		return nil, errors.New("OutputPath is a required configuration field and cannot be empty")
	}
	if cfg.Threads < 0 {
		return nil, fmt.Errorf("threads must not be negative, got %d", cfg.Threads)
	}
	if cfg.Compression != "" {
		if _, err := cabinet.ParseLevel(cfg.Compression); err != nil {
			return nil, err
		}
	}
	for _, name := range cfg.Extensions {
		if _, ok := coreModules[name]; !ok {
			return nil, fmt.Errorf("unknown extension %q", name)
		}
	}
	return &cfg, nil
}

// WithDefaults fills every setting left unset in cfg from the binder block
// of a configuration file.
func (cfg Config) WithDefaults(b *config.Binder) Config {
	if b == nil {
		return cfg
	}
	setString(&cfg.OutputPath, b.Output)
	setString(&cfg.IntermediateFolder, b.IntermediateFolder)
	setString(&cfg.LayoutDir, b.LayoutDir)
	setString(&cfg.CabCachePath, b.CabinetCache)
	setString(&cfg.Compression, b.Compression)
	if cfg.Threads == 0 {
		cfg.Threads = b.Threads
	}
	cfg.SuppressLayout = cfg.SuppressLayout || config.Bool(b.SuppressLayout, false)
	cfg.SuppressValidationRows = cfg.SuppressValidationRows || config.Bool(b.SuppressValidationRows, false)
	cfg.KeepAddedColumns = cfg.KeepAddedColumns || config.Bool(b.KeepAddedColumns, false)
	cfg.DeltaPatch = cfg.DeltaPatch || config.Bool(b.DeltaPatch, false)
	if len(cfg.Extensions) == 0 {
		cfg.Extensions = b.Extensions
	}
	return cfg
}

func setString(dst *string, v string) {
	if *dst == "" {
		*dst = v
	}
}

package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/specialistvlad/pkgbind/internal/app"
	"github.com/specialistvlad/pkgbind/internal/config"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
// Settings missing from the flags are taken from the -config file, read
// through fs. Relative paths are resolved with abs.
func Parse(args []string, output io.Writer, fs billy.Filesystem, abs func(string) (string, error)) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("pkgbind", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
pkgbind - binds a resolved installer intermediate into a package database,
its cabinets and its media layout.

Usage:
  pkgbind [options] -o OUTPUT [INTERMEDIATE_PATH...]

Arguments:
  INTERMEDIATE_PATH
    Path to a single .hcl file or a directory containing .hcl files.

Options:
`)
		flagSet.PrintDefaults()
	}

	inputFlag := flagSet.String("i", "", "Path to the intermediate file or directory.")
	outputFlag := flagSet.String("o", "", "Path of the package database to write.")
	configFlag := flagSet.String("config", "", "Path to a bind.hcl file with default settings.")
	intermediateFolderFlag := flagSet.String("intermediate-folder", "", "Folder for temporary files. Defaults to 'obj'.")
	layoutDirFlag := flagSet.String("layout-dir", "", "Root of the media layout. Defaults to the output directory.")
	threadsFlag := flagSet.Int("threads", 0, "Number of concurrent cabinet workers. 0 uses the config file or 1.")
	cabCacheFlag := flagSet.String("cabcache", "", "Directory for reusable cabinets.")
	compressionFlag := flagSet.String("compression", "", "Default cabinet compression. Options: 'none', 'low', 'medium', 'high', 'mszip'.")
	suppressLayoutFlag := flagSet.Bool("suppress-layout", false, "Do not copy uncompressed files into the layout.")
	suppressValidationFlag := flagSet.Bool("suppress-validation-rows", false, "Do not write the _Validation table.")
	keepColumnsFlag := flagSet.Bool("keep-added-columns", false, "Keep columns added to standard tables.")
	deltaPatchFlag := flagSet.Bool("delta-patch", false, "Build delta payloads for patch files with a previous version.")
	extensionsFlag := flagSet.String("extensions", "", "Comma separated built-in extensions to load. Empty loads all.")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	var paths []string
	if *inputFlag != "" {
		paths = append(paths, *inputFlag)
	}
	paths = append(paths, flagSet.Args()...)
	if len(paths) == 0 {
		slog.Debug("No intermediate path provided, printing usage and exiting.")
		flagSet.Usage()
		return nil, true, nil
	}

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
		// valid
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	cfg := app.Config{
		IntermediatePaths:      paths,
		OutputPath:             *outputFlag,
		IntermediateFolder:     *intermediateFolderFlag,
		LayoutDir:              *layoutDirFlag,
		Threads:                *threadsFlag,
		CabCachePath:           *cabCacheFlag,
		Compression:            *compressionFlag,
		SuppressLayout:         *suppressLayoutFlag,
		SuppressValidationRows: *suppressValidationFlag,
		KeepAddedColumns:       *keepColumnsFlag,
		DeltaPatch:             *deltaPatchFlag,
		Extensions:             splitList(*extensionsFlag),
		LogFormat:              logFormat,
		LogLevel:               logLevel,
	}

	if *configFlag != "" {
		configPath, err := abs(*configFlag)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		binder, err := config.Load(fs, configPath)
		if err != nil {
			return nil, false, &ExitError{Code: 2, Message: err.Error()}
		}
		cfg = cfg.WithDefaults(binder)
		slog.Debug("Config file applied.", "path", *configFlag)
	}

	if err := resolvePaths(&cfg, abs); err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	appConfig, err := app.NewConfig(cfg)
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", appConfig)
	return appConfig, false, nil
}

func splitList(s string) []string {
	var out []string
	for _, item := range strings.Split(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

// resolvePaths makes every path setting absolute. The intermediate folder
// defaults to obj in the working directory.
func resolvePaths(cfg *app.Config, abs func(string) (string, error)) error {
	if cfg.IntermediateFolder == "" {
		cfg.IntermediateFolder = "obj"
	}
	targets := []*string{&cfg.OutputPath, &cfg.IntermediateFolder, &cfg.LayoutDir, &cfg.CabCachePath}
	for i := range cfg.IntermediatePaths {
		targets = append(targets, &cfg.IntermediatePaths[i])
	}
	for _, p := range targets {
		if *p == "" {
			continue
		}
		resolved, err := abs(*p)
		if err != nil {
			return fmt.Errorf("cannot resolve path %s: %w", *p, err)
		}
		*p = resolved
	}
	return nil
}

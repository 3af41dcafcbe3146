package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/specialistvlad/pkgbind/internal/app"
	"github.com/specialistvlad/pkgbind/internal/cli"
)

// main is the entrypoint for the pkgbind application.
func main() {
	// Use a minimal logger until the full one is configured.
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	// The real main function handles errors and exit codes.
	if err := run(os.Stdout, osfs.New("/"), os.Args[1:]); err != nil {
		if exitErr, ok := err.(*cli.ExitError); ok {
			fmt.Fprintln(os.Stderr, exitErr.Message)
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run encapsulates the main application logic for easier testing and error
// handling. Paths are made absolute, so fs must be rooted at "/".
func run(outW io.Writer, fs billy.Filesystem, args []string) error {
	appConfig, shouldExit, err := cli.Parse(args, outW, fs, filepath.Abs)
	if err != nil {
		return err
	}
	if shouldExit {
		return nil
	}

	pkgbindApp := app.NewApp(outW, fs, appConfig)
	if _, err := pkgbindApp.Run(context.Background()); err != nil {
		return fmt.Errorf("bind failed: %w", err)
	}
	return nil
}

// Package harness runs the whole binder against an in-memory filesystem for
// integration tests.
package harness

import (
	"context"
	"os"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/app"
	"github.com/specialistvlad/pkgbind/internal/bind"
	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/testutil"
)

// Result holds the outcome of a single bind.
type Result struct {
	LogOutput string
	Err       error
	Bind      *bind.Result
	FS        billy.Filesystem
}

// Run writes files to a fresh in-memory filesystem and binds cfg against it.
// IntermediatePaths and OutputPath of cfg are relative to the filesystem root.
func Run(t *testing.T, files map[string]string, cfg app.Config) *Result {
	t.Helper()
	return RunOn(t, memfs.New(), files, cfg)
}

// RunOn is Run on a caller provided filesystem, so several binds can share
// their inputs and outputs.
func RunOn(t *testing.T, fs billy.Filesystem, files map[string]string, cfg app.Config) *Result {
	t.Helper()
	testutil.WriteFiles(t, fs, files)

	if cfg.LogLevel == "" {
		cfg.LogLevel = "debug"
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = "text"
	}
	appConfig, err := app.NewConfig(cfg)
	require.NoError(t, err)

	logs := &testutil.SafeBuffer{}
	res, err := app.NewApp(logs, fs, appConfig).Run(context.Background())
	if os.Getenv("PKGBIND_TEST_LOGS") == "true" {
		t.Logf("--- BIND LOGS ---\n%s", logs.String())
	}
	return &Result{LogOutput: logs.String(), Err: err, Bind: res, FS: fs}
}

// Database reads the package database written at path.
func (r *Result) Database(t *testing.T, path string) *output.Output {
	t.Helper()
	require.NoError(t, r.Err, r.LogOutput)
	db, err := database.MsgpackWriter{}.Read(r.FS, path)
	require.NoError(t, err)
	return db
}

// Exists reports whether path was written.
func (r *Result) Exists(path string) bool {
	_, err := r.FS.Stat(path)
	return err == nil
}

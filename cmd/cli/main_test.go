package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/cli"
)

func TestRun_Binds(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "payload.txt"), []byte("hello\n"), 0o600))
	intermediate := `
section "product" {
  record "Media" "1" {
    Cabinet = "data.cab"
  }
  record "_SummaryInformation" "15" {
    Value = 2
  }
  record "Directory" "TARGETDIR" {
    DefaultDir = "SourceDir"
  }
  record "Component" "Main" {
    ComponentId = "*"
    Directory_  = "TARGETDIR"
    KeyPath     = "payload"
  }
  record "File" "payload" {
    Component_ = "Main"
    Source     = "` + filepath.ToSlash(filepath.Join(dir, "payload.txt")) + `"
    FileName   = "payload.txt"
  }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.hcl"), []byte(intermediate), 0o600))

	out := &bytes.Buffer{}
	err := run(out, osfs.New("/"), []string{
		"-o", filepath.Join(dir, "out", "setup.msi"),
		"-intermediate-folder", filepath.Join(dir, "obj"),
		filepath.Join(dir, "setup.hcl"),
	})
	require.NoError(t, err, out.String())
	require.FileExists(t, filepath.Join(dir, "out", "setup.msi"))
	require.FileExists(t, filepath.Join(dir, "out", "data.cab"))
	require.Contains(t, out.String(), "Package written.")
}

func TestRun_BindFailure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	intermediate := `
section "product" {
  record "File" "gone" {
    Source = "/definitely/not/here.txt"
  }
}
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "setup.hcl"), []byte(intermediate), 0o600))

	err := run(&bytes.Buffer{}, osfs.New("/"), []string{
		"-o", filepath.Join(dir, "setup.msi"),
		"-intermediate-folder", filepath.Join(dir, "obj"),
		filepath.Join(dir, "setup.hcl"),
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "file-metadata-updater")
}

func TestRun_ShouldExit(t *testing.T) {
	t.Parallel()

	out := &bytes.Buffer{}
	err := run(out, osfs.New("/"), []string{"-h"})

	require.NoError(t, err, "run() should return a nil error when shouldExit is true")
	require.Contains(t, out.String(), "Usage:", "Expected help text to be printed to the output buffer")
}

func TestRun_ParseError(t *testing.T) {
	t.Parallel()

	err := run(&bytes.Buffer{}, osfs.New("/"), []string{"--this-is-not-a-valid-flag"})

	require.Error(t, err)
	var exitErr *cli.ExitError
	require.ErrorAs(t, err, &exitErr)
	require.Contains(t, err.Error(), "flag provided but not defined: -this-is-not-a-valid-flag")
}

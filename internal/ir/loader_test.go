package ir

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testContext() context.Context {
	return ctxlog.WithLogger(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
}

const productHCL = `
id = "setup"

section "product" {
  codepage = 1252

  record "Property" "ProductCode" {
    Value = "*"
  }

  record "File" "F1" {
    Component_ = "C1"
    FileName   = "readme.txt"
    FileSize   = 12
    Compressed = true
  }

  record "Property" "ReadmeVersion" {
    Value = bind.fileVersion.F1
  }
}

embedded_file {
  container   = "lib/ui.lib"
  index       = 2
  output_path = "obj/ui/2"
}
`

func TestLoader_LoadProduct(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/src/product.hcl", []byte(productHCL), 0o644))

	in, err := NewLoader(fs).Load(testContext(), "/src")
	require.NoError(t, err)

	assert.Equal(t, "setup", in.ID)
	section, err := in.Section()
	require.NoError(t, err)
	assert.Equal(t, SectionProduct, section.Type)
	assert.Equal(t, 1252, section.Codepage)
	require.Len(t, section.Records, 3)

	file := section.Find("File", "F1")
	require.NotNil(t, file)
	assert.Equal(t, "12", file.Get("FileSize"))
	assert.Equal(t, "readme.txt", file.Get("FileName"))
	compressed, ok := file.Bool("Compressed")
	assert.True(t, ok)
	assert.True(t, compressed)
	assert.Contains(t, file.Source, "product.hcl")

	require.Len(t, in.DelayedFields, 1)
	df := in.DelayedFields[0]
	assert.Equal(t, "Property", df.RecordType)
	assert.Equal(t, "ReadmeVersion", df.RecordID)
	assert.Equal(t, "Value", df.Field)
	assert.Equal(t, "bind.fileVersion.F1", df.Expression)

	require.Len(t, in.EmbeddedFiles, 1)
	assert.Equal(t, ExpectedEmbeddedFile{Container: "lib/ui.lib", Index: 2, OutputPath: "obj/ui/2"}, in.EmbeddedFiles[0])
}

func TestLoader_RejectsUnknownSectionType(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "/bad.hcl", []byte(`section "bundle" {}`), 0o644))

	_, err := NewLoader(fs).Load(testContext(), "/bad.hcl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section type")
}

func TestLoader_NoFiles(t *testing.T) {
	_, err := NewLoader(memfs.New()).Load(testContext(), "/missing")
	require.Error(t, err)
}

func TestIntermediate_SectionRequiresExactlyOne(t *testing.T) {
	_, err := (&Intermediate{}).Section()
	assert.ErrorIs(t, err, ErrNoSection)
}

func TestSnapshot_RoundTripIsDeterministic(t *testing.T) {
	in := &Intermediate{ID: "x", Sections: []*Section{{Type: SectionModule, Records: []*Record{
		NewRecord("Component", "C1", "ComponentId", "{A}", "Directory_", "INSTALLDIR", "Attributes", "0", "KeyPath", "F1"),
	}}}}

	first, err := Marshal(in)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		again, err := Marshal(in)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	fs := memfs.New()
	path := SnapshotPath("/out/setup.msm")
	assert.Equal(t, "/out/setup.bir", path)
	require.NoError(t, Save(fs, path, in))
	back, err := Open(fs, path)
	require.NoError(t, err)
	assert.Equal(t, "{A}", back.Sections[0].Records[0].Get("ComponentId"))
}

func TestRecord_Helpers(t *testing.T) {
	r := NewRecord("Media", "1", "DiskId", "1", "Cabinet", "cab1.cab", "LastSequence", "x")
	n, ok, err := r.Int("DiskId")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, n)

	_, ok, err = r.Int("Missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = r.Int("LastSequence")
	assert.Error(t, err)

	c := r.Clone()
	c.Set("Cabinet", "other.cab")
	assert.Equal(t, "cab1.cab", r.Get("Cabinet"))
}

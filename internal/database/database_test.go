package database

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

func sampleOutput(t *testing.T) *output.Output {
	t.Helper()
	defs := schema.Standard()
	out := output.New(output.TypeModule, 1252)

	fileDef, _ := defs.Get("File")
	files := out.EnsureTable(fileDef)
	row := files.NewRow("test")
	files.Set(row, "File", "f1")
	files.Set(row, "Component_", "C1")
	files.Set(row, "FileName", "a.txt")
	files.Set(row, "FileSize", 300)
	files.Set(row, "Sequence", 1)

	mergeDef, _ := defs.Get("WixMerge")
	merges := out.EnsureTable(mergeDef)
	merges.NewRow("test")

	out.Streams["MergeModule.CABinet"] = []byte("cab")
	return out
}

func TestMsgpackWriter_RoundTrip(t *testing.T) {
	fs := memfs.New()
	w := MsgpackWriter{}
	require.NoError(t, w.Write(fs, sampleOutput(t), "out/module.msm", Options{SuppressValidationRows: true}))

	got, err := w.Read(fs, "out/module.msm")
	require.NoError(t, err)

	assert.Equal(t, output.TypeModule, got.Type)
	assert.Equal(t, 1252, got.Codepage)
	assert.Nil(t, got.Table("WixMerge"), "unreal tables are not written")
	assert.Nil(t, got.Table(ValidationTable))

	files := got.Table("File")
	require.NotNil(t, files)
	require.Len(t, files.Rows, 1)
	want := []any{"f1", "C1", "a.txt", 300, nil, nil, nil, 1}
	if diff := cmp.Diff(want, files.Rows[0].Values); diff != "" {
		t.Errorf("File row mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, []byte("cab"), got.Streams["MergeModule.CABinet"])
}

func TestMsgpackWriter_ValidationRows(t *testing.T) {
	fs := memfs.New()
	w := MsgpackWriter{}
	require.NoError(t, w.Write(fs, sampleOutput(t), "p.msi", Options{}))

	got, err := w.Read(fs, "p.msi")
	require.NoError(t, err)
	v := got.Table(ValidationTable)
	require.NotNil(t, v)
	assert.Len(t, v.Rows, 8)
	assert.Equal(t, "File", v.Rows[0].String(0))
}

func TestMsgpackWriter_AddedColumns(t *testing.T) {
	std, _ := schema.Standard().Get("Property")
	extended := &schema.TableDefinition{Name: "Property", Columns: append(append([]schema.ColumnDefinition(nil), std.Columns...),
		schema.ColumnDefinition{Name: "Note", Type: schema.ColumnString, Nullable: true})}

	out := output.New(output.TypeProduct, 0)
	props := out.EnsureTable(extended)
	row := props.NewRow("")
	props.Set(row, "Property", "A")
	props.Set(row, "Value", "1")
	props.Set(row, "Note", "extra")

	fs := memfs.New()
	w := MsgpackWriter{}

	require.NoError(t, w.Write(fs, out, "drop.msi", Options{SuppressValidationRows: true}))
	got, err := w.Read(fs, "drop.msi")
	require.NoError(t, err)
	assert.Len(t, got.Table("Property").Definition.Columns, 2)

	require.NoError(t, w.Write(fs, out, "keep.msi", Options{KeepAddedColumns: true, SuppressValidationRows: true}))
	got, err = w.Read(fs, "keep.msi")
	require.NoError(t, err)
	assert.Equal(t, "extra", got.Table("Property").Rows[0].String(2))
}

func TestMsgpackWriter_ReadErrors(t *testing.T) {
	fs := memfs.New()
	require.NoError(t, util.WriteFile(fs, "junk.msm", []byte("hello"), 0o644))

	_, err := MsgpackWriter{}.Read(fs, "junk.msm")
	require.ErrorIs(t, err, ErrNotDatabase)

	_, err = MsgpackWriter{}.Read(fs, "absent.msm")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotDatabase)
}

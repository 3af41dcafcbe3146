package output

import (
	"testing"

	"github.com/specialistvlad/pkgbind/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutput_EnsureAndDropTables(t *testing.T) {
	defs := schema.Standard()
	out := New(TypeProduct, 1252)

	fileDef, _ := defs.Get("File")
	mediaDef, _ := defs.Get("Media")
	files := out.EnsureTable(fileDef)
	assert.Same(t, files, out.EnsureTable(fileDef))
	out.EnsureTable(mediaDef)

	require.Len(t, out.Tables(), 2)
	assert.Equal(t, "File", out.Tables()[0].Name())

	out.DropTable("File")
	assert.Nil(t, out.Table("File"))
	require.Len(t, out.Tables(), 1)
	out.DropTable("Nope")
}

func TestTable_KeyAndFind(t *testing.T) {
	defs := schema.Standard()
	fcDef, _ := defs.Get("FeatureComponents")
	out := New(TypeProduct, 0)
	fc := out.EnsureTable(fcDef)

	row := fc.NewRow("a.hcl:3,1-2")
	fc.Set(row, "Feature_", "Main")
	fc.Set(row, "Component_", "C1")

	assert.Equal(t, "Main/C1", fc.Key(row))
	assert.Same(t, row, fc.Find("Main/C1"))
	assert.Nil(t, fc.Find("Main/C2"))
	assert.Equal(t, "C1", fc.Get(row, "Component_"))
	assert.Panics(t, func() { fc.Set(row, "Missing", "x") })
}

func TestRow_ValuesAndEqual(t *testing.T) {
	a := &Row{Values: []any{"F1", 12, nil}}
	b := &Row{Values: []any{"F1", 12, nil}}
	c := &Row{Values: []any{"F1", 13, nil}}

	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(c))
	assert.Equal(t, "12", a.String(1))
	assert.Equal(t, "", a.String(2))
	n, ok := a.Int(1)
	assert.True(t, ok)
	assert.Equal(t, 12, n)
}

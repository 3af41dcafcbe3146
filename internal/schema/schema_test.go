package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStandard_Tables(t *testing.T) {
	defs := Standard()
	assert.Equal(t, 3, defs.Version)

	file, ok := defs.Get("File")
	require.True(t, ok)
	assert.Equal(t, 7, file.ColumnIndex("Sequence"))
	assert.Equal(t, ColumnNumber, file.Columns[3].Type)
	assert.Equal(t, ModularizeCompanionFile, file.Columns[4].Modularize)

	merge, ok := defs.Get("WixMerge")
	require.True(t, ok)
	assert.True(t, merge.Unreal)

	assert.Equal(t, []string{
		"InstallExecuteSequence", "InstallUISequence", "AdminExecuteSequence",
		"AdminUISequence", "AdvertiseExecuteSequence",
	}, defs.SequenceTables())

	seq, _ := defs.Get("AdminUISequence")
	assert.Equal(t, "Action", seq.Columns[0].Name)
}

func TestDefinitions_AddValidates(t *testing.T) {
	defs := Standard()
	assert.Error(t, defs.Add(&TableDefinition{Name: "File", Columns: []ColumnDefinition{{Name: "x"}}}))
	assert.Error(t, defs.Add(&TableDefinition{Name: "Empty"}))
	assert.Error(t, defs.Add(&TableDefinition{Name: "Bad", Columns: []ColumnDefinition{{Name: "x", Type: "blob"}}}))

	require.NoError(t, defs.Add(&TableDefinition{Name: "Custom", Columns: []ColumnDefinition{{Name: "Id", PrimaryKey: true}}}))
	custom, ok := defs.Get("Custom")
	require.True(t, ok)
	assert.Equal(t, ColumnString, custom.Columns[0].Type)

	_, ok = Standard().Get("Custom")
	assert.False(t, ok, "extending a copy must not leak into the standard set")
}

func TestParse_Invalid(t *testing.T) {
	_, err := Parse([]byte("tables: [ {name: X, columns: [{name: a, type: weird}]} ]"))
	assert.Error(t, err)
}

func TestIsPublicProperty(t *testing.T) {
	assert.True(t, IsPublicProperty("INSTALLDIR"))
	assert.False(t, IsPublicProperty("InstallDir"))
	assert.False(t, IsPublicProperty(""))
}

package customtable

import (
	"testing"

	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseColumns(t *testing.T) {
	def, err := ParseColumns("Settings", "Name:string:pk:column; Value:number:nullable")
	require.NoError(t, err)
	require.Len(t, def.Columns, 2)
	assert.True(t, def.Columns[0].PrimaryKey)
	assert.Equal(t, schema.ModularizeColumn, def.Columns[0].Modularize)
	assert.Equal(t, schema.ColumnNumber, def.Columns[1].Type)
	assert.True(t, def.Columns[1].Nullable)

	_, err = ParseColumns("Bad", "Name:blob")
	require.Error(t, err)
	_, err = ParseColumns("Empty", "")
	require.Error(t, err)
}

func TestTranslator_RegisteredAndTranslates(t *testing.T) {
	r := extension.NewRegistry()
	(&Module{}).Register(r)

	tr, ok := r.Translator(RowRecord)
	require.True(t, ok)

	out := output.New(output.TypeProduct, 0)
	require.NoError(t, tr.TranslateRecord(ir.NewRecord(TableRecord, "Settings", "Columns", "Name:string:pk;Value:number:nullable"), out))
	require.NoError(t, tr.TranslateRecord(ir.NewRecord(RowRecord, "r1", "Table", "Settings", "Name", "Timeout", "Value", "30"), out))
	require.NoError(t, tr.TranslateRecord(ir.NewRecord(RowRecord, "r2", "Table", "Settings", "Name", "Retries"), out))

	table := out.Table("Settings")
	require.NotNil(t, table)
	require.Len(t, table.Rows, 2)
	assert.Equal(t, []any{"Timeout", 30}, table.Rows[0].Values)
	assert.Equal(t, []any{"Retries", nil}, table.Rows[1].Values)
}

func TestTranslator_Errors(t *testing.T) {
	tr := &Translator{}
	out := output.New(output.TypeProduct, 0)

	err := tr.TranslateRecord(ir.NewRecord(RowRecord, "r1", "Table", "Missing"), out)
	require.Error(t, err)

	require.NoError(t, tr.TranslateRecord(ir.NewRecord(TableRecord, "T", "Columns", "Id:string:pk;N:number"), out))
	assert.Error(t, tr.TranslateRecord(ir.NewRecord(TableRecord, "T", "Columns", "Id"), out))
	assert.Error(t, tr.TranslateRecord(ir.NewRecord(RowRecord, "r", "Table", "T", "Id", "a", "N", "x"), out))
	assert.Error(t, tr.TranslateRecord(ir.NewRecord(RowRecord, "r", "Table", "T", "Id", "a"), out))
}

package bind

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
)

func TestDatabaseGenerator(t *testing.T) {
	st := newTestState(t, nil, section(ir.SectionProduct), Options{
		OutputPath:             filepath.Join("out", "setup.msi"),
		IntermediateFolder:     "obj",
		SuppressValidationRows: true,
	})
	st.Output = output.New(output.TypeProduct, 1252)
	moduleRows(t, st, st.Output, "Property", "Property", "ProductName", "Value", "Widget")

	res := runStages(t, st, NewDatabaseGenerator())
	require.True(t, res.Succeeded, res.Diagnostics)

	require.Len(t, res.FileTransfers, 1)
	tr := res.FileTransfers[0]
	assert.Equal(t, TransferDatabase, tr.Type)
	assert.Equal(t, st.DatabasePath, tr.Source)
	assert.Equal(t, filepath.Join("out", "setup.msi"), tr.Destination)
	assert.True(t, tr.Move)
	assert.True(t, tr.Built)

	db, err := database.MsgpackWriter{}.Read(st.FS, st.DatabasePath)
	require.NoError(t, err)
	props := db.Table("Property")
	assert.Equal(t, "Widget", props.Get(props.Find("ProductName"), "Value"))
	assert.Nil(t, db.Table(database.ValidationTable))
}

func TestDatabaseGenerator_Applies(t *testing.T) {
	st := newTestState(t, nil, section(ir.SectionProduct), Options{})
	assert.False(t, NewDatabaseGenerator().Applies(st), "no output path means no database")
}

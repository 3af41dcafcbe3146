package bind

import (
	"context"
	"path/filepath"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/diag"
)

// DatabaseGenerator writes the output into a temporary database and queues
// its transfer to the output path.
type DatabaseGenerator struct{ stageInfo }

func NewDatabaseGenerator() *DatabaseGenerator {
	return &DatabaseGenerator{stageInfo{
		name:   "database-generator",
		access: Access{Reads: []Slot{SlotOutput}, Writes: []Slot{SlotDatabase, SlotTransfers}},
	}}
}

func (s *DatabaseGenerator) Applies(st *State) bool {
	return st.OutputPath != ""
}

func (s *DatabaseGenerator) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	tmp := st.temp(filepath.Base(st.OutputPath))

	if err := st.Writer.Write(st.FS, st.Output, tmp, databaseOptions(st)); err != nil {
		ds.Errorf(diag.CodeDatabase, "", "failed to write database: %v", err)
		return ds
	}
	st.DatabasePath = tmp
	st.AddTransfer(FileTransfer{Source: tmp, Destination: st.OutputPath, Move: true, Built: true, Type: TransferDatabase})
	ctxlog.FromContext(ctx).Debug("Generated database.", "path", tmp, "streams", len(st.Output.Streams))
	return ds
}

func databaseOptions(st *State) database.Options {
	return database.Options{
		KeepAddedColumns:       st.KeepAddedColumns,
		SuppressValidationRows: st.SuppressValidationRows,
	}
}

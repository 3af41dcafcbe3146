package bind

import (
	"context"

	"github.com/go-git/go-billy/v5/util"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// DeltaPatchGenerator replaces the payload of changed files in a patch with
// a delta against the previous version of the file.
type DeltaPatchGenerator struct{ stageInfo }

func NewDeltaPatchGenerator() *DeltaPatchGenerator {
	return &DeltaPatchGenerator{stageInfo{
		name:   "delta-patch-generator",
		access: Access{Reads: []Slot{SlotFacades}, Writes: []Slot{SlotFacades, SlotContentPaths}},
	}}
}

func (s *DeltaPatchGenerator) Applies(st *State) bool {
	return st.Section.Type == ir.SectionPatch && st.DeltaPatch
}

func (s *DeltaPatchGenerator) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	logger := ctxlog.FromContext(ctx)

	for _, f := range st.Facades {
		if f.PreviousSource == "" || f.DeltaPatch {
			continue
		}
		src := recordSource(f.Record)
		previous, err := util.ReadFile(st.FS, f.PreviousSource)
		if err != nil {
			ds.Errorf(diag.CodeMissingFile, src, "previous version of %s: %v", f.ID, err)
			continue
		}
		current, err := util.ReadFile(st.FS, f.Source)
		if err != nil {
			ds.Errorf(diag.CodeMissingFile, src, "file %s: %v", f.ID, err)
			continue
		}
		patch, err := cabinet.Delta(previous, current)
		if err != nil {
			ds.Errorf(diag.CodeDeltaPatch, src, "file %s: %v", f.ID, err)
			continue
		}

		target := st.temp("delta", f.ID+".zst")
		if err := util.WriteFile(st.FS, target, patch, 0o644); err != nil {
			ds.Errorf(diag.CodeIO, src, "failed to write delta for %s: %v", f.ID, err)
			continue
		}
		st.AddContentPath(f.PreviousSource)
		logger.Debug("Created delta patch.", "file", f.ID, "size", len(current), "delta", len(patch))
		f.Source = target
		f.Size = int64(len(patch))
		f.DeltaPatch = true
	}
	return ds
}

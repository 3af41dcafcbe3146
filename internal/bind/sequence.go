package bind

import (
	"context"
	"strconv"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/output"
)

// File attribute bits that record a compression different from the package.
const (
	fileAttrNoncompressed = 0x2000
	fileAttrCompressed    = 0x4000
)

// MediaSequenceSynchronizer numbers the files by media and writes sizes,
// versions, hashes and sequence numbers into the output.
type MediaSequenceSynchronizer struct{ stageInfo }

func NewMediaSequenceSynchronizer() *MediaSequenceSynchronizer {
	return &MediaSequenceSynchronizer{stageInfo{
		name: "media-sequence-synchronizer",
		access: Access{
			Reads:  []Slot{SlotMedia, SlotFacades, SlotOutput, SlotSummary},
			Writes: []Slot{SlotOutput, SlotFacades},
		},
	}}
}

func (s *MediaSequenceSynchronizer) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	files := st.Output.Table("File")
	media := st.Output.Table("Media")
	var hashes *output.Table
	if def, ok := st.Definitions.Get("MsiFileHash"); ok {
		hashes = st.Output.EnsureTable(def)
	}

	uncompressed := map[int][]*facade.Facade{}
	for _, f := range st.Media.Uncompressed {
		uncompressed[f.DiskID] = append(uncompressed[f.DiskID], f)
	}

	seq := 0
	for _, m := range st.Media.Media {
		group := append(append([]*facade.Facade(nil), st.Media.ByMedia[m.DiskID]...), uncompressed[m.DiskID]...)
		for _, f := range group {
			seq++
			f.Sequence = seq
			if f.Origin == facade.OriginModule {
				continue
			}
			ds = append(ds, syncFileRow(st, files, hashes, f)...)
		}
		if media != nil {
			if row := media.Find(strconv.Itoa(m.DiskID)); row != nil {
				media.Set(row, "LastSequence", seq)
			}
		}
	}

	if hashes != nil && len(hashes.Rows) == 0 {
		st.Output.DropTable(hashes.Name())
	}
	ctxlog.FromContext(ctx).Debug("Synchronized file sequences.", "files", seq)
	return ds
}

func syncFileRow(st *State, files, hashes *output.Table, f *facade.Facade) diag.Diagnostics {
	var ds diag.Diagnostics
	if files == nil {
		return ds
	}
	row := files.Find(f.ID)
	if row == nil {
		ds.Errorf(diag.CodeInvalidInput, recordSource(f.Record), "file %s has no row in the File table", f.ID)
		return ds
	}
	files.Set(row, "Sequence", f.Sequence)
	files.Set(row, "FileSize", int(f.Size))
	if f.Version != "" {
		files.Set(row, "Version", f.Version)
	}
	if f.Language != "" {
		files.Set(row, "Language", f.Language)
	}

	attrs, _ := row.Int(files.Definition.ColumnIndex("Attributes"))
	attrs &^= fileAttrCompressed | fileAttrNoncompressed
	if isCompressed := compressed(f, st.Summary.Compressed, st.IsModule()); isCompressed != st.Summary.Compressed {
		if isCompressed {
			attrs |= fileAttrCompressed
		} else {
			attrs |= fileAttrNoncompressed
		}
	}
	if attrs != 0 {
		files.Set(row, "Attributes", attrs)
	}

	if hashes != nil && f.HasHash {
		h := hashes.Find(f.ID)
		if h == nil {
			h = hashes.NewRow(row.Source)
			hashes.Set(h, "File_", f.ID)
		}
		hashes.Set(h, "Options", 0)
		for i, part := range f.Hash {
			hashes.Set(h, "HashPart"+strconv.Itoa(i+1), int(part))
		}
	}
	return ds
}

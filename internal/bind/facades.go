package bind

import (
	"context"
	"crypto/md5"
	"encoding/binary"
	"fmt"
	"io"
	"strconv"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/util"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// FileFacadeCollector builds the file list from the File records.
type FileFacadeCollector struct{ stageInfo }

func NewFileFacadeCollector() *FileFacadeCollector {
	return &FileFacadeCollector{stageInfo{
		name:   "file-facade-collector",
		access: Access{Reads: []Slot{SlotIntermediate}, Writes: []Slot{SlotFacades}},
	}}
}

func (s *FileFacadeCollector) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	seen := map[string]bool{}

	for _, rec := range st.Section.OfType("File") {
		if seen[rec.ID] {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "file %s is defined more than once", rec.ID)
			continue
		}
		seen[rec.ID] = true

		f, err := facade.New(rec)
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "%v", err)
			continue
		}
		if f.Directory == "" {
			if comp := st.Section.Find("Component", f.Component); comp != nil {
				f.Directory = comp.Get("Directory_")
			}
		}
		st.Facades = append(st.Facades, f)
	}
	ctxlog.FromContext(ctx).Debug("Collected file facades.", "count", len(st.Facades))
	return ds
}

// EmbeddedFileExtractor unpacks files stored inside library containers.
type EmbeddedFileExtractor struct{ stageInfo }

func NewEmbeddedFileExtractor() *EmbeddedFileExtractor {
	return &EmbeddedFileExtractor{stageInfo{
		name:   "embedded-file-extractor",
		access: Access{Reads: []Slot{SlotIntermediate, SlotFacades}, Writes: []Slot{SlotFacades, SlotContentPaths}},
	}}
}

func (s *EmbeddedFileExtractor) Applies(st *State) bool {
	return len(st.Intermediate.EmbeddedFiles) > 0
}

func (s *EmbeddedFileExtractor) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	logger := ctxlog.FromContext(ctx)
	extracted := map[string][]cabinet.Extracted{}
	broken := map[string]bool{}
	bySource := map[string][]*facade.Facade{}
	for _, f := range st.Facades {
		bySource[f.Source] = append(bySource[f.Source], f)
	}

	for _, e := range st.Intermediate.EmbeddedFiles {
		if broken[e.Container] {
			continue
		}
		files, ok := extracted[e.Container]
		if !ok {
			data, err := util.ReadFile(st.FS, e.Container)
			if err != nil {
				ds.Errorf(diag.CodeMissingFile, e.Container, "library container: %v", err)
				broken[e.Container] = true
				continue
			}
			dir := st.temp("embedded", strconv.Itoa(len(extracted)))
			files, err = st.Codec.Extract(st.FS, data, dir)
			if err != nil {
				ds.Errorf(diag.CodeCorruptContainer, e.Container, "%v", err)
				broken[e.Container] = true
				continue
			}
			extracted[e.Container] = files
			st.AddContentPath(e.Container)
			logger.Debug("Extracted library container.", "container", e.Container, "files", len(files))
		}

		if e.Index < 0 || e.Index >= len(files) {
			ds.Errorf(diag.CodeCorruptContainer, e.Container, "container has no embedded file #%d", e.Index)
			continue
		}
		if err := copyFile(st.FS, files[e.Index].Path, e.OutputPath); err != nil {
			ds.Errorf(diag.CodeIO, e.Container, "failed to place embedded file #%d: %v", e.Index, err)
			continue
		}
		for _, f := range bySource[e.OutputPath] {
			f.Origin = facade.OriginEmbedded
		}
	}
	return ds
}

// FileMetadataUpdater reads sizes and hashes of the payload files.
type FileMetadataUpdater struct{ stageInfo }

func NewFileMetadataUpdater() *FileMetadataUpdater {
	return &FileMetadataUpdater{stageInfo{
		name: "file-metadata-updater",
		access: Access{
			Reads:  []Slot{SlotFacades, SlotVariables},
			Writes: []Slot{SlotFacades, SlotVariables, SlotContentPaths},
		},
	}}
}

func (s *FileMetadataUpdater) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	for _, f := range st.Facades {
		if f.Origin == facade.OriginModule {
			continue
		}
		src := recordSource(f.Record)

		info, err := st.FS.Stat(f.Source)
		if err != nil {
			ds.Errorf(diag.CodeMissingFile, src, "cannot find file %s for %s: %v", f.Source, f.ID, err)
			continue
		}
		f.Size = info.Size()
		if f.Origin == facade.OriginOrdinary {
			st.AddContentPath(f.Source)
		}

		if !f.Versioned() {
			hash, err := fileHash(st.FS, f.Source)
			if err != nil {
				ds.Errorf(diag.CodeIO, src, "failed to hash %s: %v", f.Source, err)
				continue
			}
			f.Hash, f.HasHash = hash, true
		}

		if st.Variables != nil {
			st.Variables.Set("fileVersion."+f.ID, f.Version)
			st.Variables.Set("fileLanguage."+f.ID, f.Language)
			st.Variables.Set("fileSize."+f.ID, strconv.FormatInt(f.Size, 10))
		}
	}
	return ds
}

// fileHash computes the MsiFileHash parts: the MD5 of the file split into
// four little-endian 32-bit integers.
func fileHash(fs billy.Filesystem, p string) ([4]int32, error) {
	var out [4]int32
	f, err := fs.Open(p)
	if err != nil {
		return out, err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return out, err
	}
	sum := h.Sum(nil)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(sum[i*4:]))
	}
	return out, nil
}

func hashString(h [4]int32) string {
	return fmt.Sprintf("%d,%d,%d,%d", h[0], h[1], h[2], h[3])
}

// recordSource returns the source location of rec, tolerating nil.
func recordSource(rec *ir.Record) string {
	if rec == nil {
		return ""
	}
	return rec.Source
}

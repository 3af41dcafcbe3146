package bind

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// UncompressedFileLayoutProcessor queues a copy of every uncompressed file
// into the media layout.
type UncompressedFileLayoutProcessor struct{ stageInfo }

func NewUncompressedFileLayoutProcessor() *UncompressedFileLayoutProcessor {
	return &UncompressedFileLayoutProcessor{stageInfo{
		name:   "uncompressed-file-layout-processor",
		access: Access{Reads: []Slot{SlotMedia, SlotSummary, SlotIntermediate}, Writes: []Slot{SlotTransfers}},
	}}
}

func (s *UncompressedFileLayoutProcessor) Applies(st *State) bool {
	return !st.SuppressLayout && len(st.Media.Uncompressed) > 0
}

func (s *UncompressedFileLayoutProcessor) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	dirs := directoryIndex(st.Section)

	for _, f := range st.Media.Uncompressed {
		m := st.Media.Lookup(f.DiskID)
		if m == nil {
			ds.Errorf(diag.CodeMissingMedia, recordSource(f.Record), "file %s has no media", f.ID)
			continue
		}
		rel, err := sourceDir(dirs, f.Directory, st.Summary.LongNames)
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, recordSource(f.Record), "file %s: %v", f.ID, err)
			continue
		}
		dest := filepath.Join(resolveMediaLayout(st, m), rel, f.TargetName(st.Summary.LongNames))
		st.AddTransfer(FileTransfer{Source: f.Source, Destination: dest, Type: TransferFile})
	}
	ctxlog.FromContext(ctx).Debug("Laid out uncompressed files.", "count", len(st.Media.Uncompressed))
	return ds
}

// resolveMediaLayout asks the extensions for the layout directory of m and
// falls back to the default policy: no hint means the layout root, a rooted
// hint is used as is, anything else is relative to the layout root.
func resolveMediaLayout(st *State, m *Media) string {
	if dir, ok := st.Extensions.ResolveMedia(m.Record, m.Layout, st.LayoutDir); ok {
		return dir
	}
	return DefaultMediaLayout(m.Layout, st.LayoutDir)
}

// DefaultMediaLayout is the built-in layout policy.
func DefaultMediaLayout(hint, layoutDir string) string {
	switch {
	case hint == "":
		return layoutDir
	case filepath.IsAbs(hint):
		return hint
	default:
		return filepath.Join(layoutDir, hint)
	}
}

func directoryIndex(sec *ir.Section) map[string]*ir.Record {
	dirs := map[string]*ir.Record{}
	for _, d := range sec.OfType("Directory") {
		dirs[d.ID] = d
	}
	return dirs
}

// sourceDir builds the path of a directory below the source root from the
// source part of each DefaultDir ("target:source", names as "short|long").
func sourceDir(dirs map[string]*ir.Record, id string, long bool) (string, error) {
	var parts []string
	seen := map[string]bool{}
	for id != "" {
		if seen[id] {
			return "", fmt.Errorf("directory %s is its own ancestor", id)
		}
		seen[id] = true

		d, ok := dirs[id]
		if !ok {
			break
		}
		parent := d.Get("Directory_Parent")
		if parent == "" || parent == id {
			break
		}
		if name := directoryName(d.Get("DefaultDir"), long); name != "" && name != "." {
			parts = append(parts, name)
		}
		id = parent
	}
	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return filepath.Join(parts...), nil
}

func directoryName(defaultDir string, long bool) string {
	name := defaultDir
	if i := strings.IndexByte(name, ':'); i >= 0 {
		name = name[i+1:]
	}
	if long {
		return facade.LongName(name)
	}
	return facade.ShortName(name)
}

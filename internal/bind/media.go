package bind

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

const (
	defaultCabinetTemplate = "cab{0}.cab"
	defaultMaxMediaSizeMB  = 200
	defaultCabinet         = "cab1.cab"
)

// Media is one archive unit. Record is nil for the virtual media of merge
// module builds, which never appears in the database.
type Media struct {
	DiskID  int
	Cabinet string
	// Level is the compression level chosen for this media, if any.
	Level  cabinet.Level
	Layout string
	Record *ir.Record
}

// Embedded reports whether the cabinet is stored inside the database.
func (m *Media) Embedded() bool {
	return strings.HasPrefix(m.Cabinet, "#")
}

// MediaAssignment partitions the compressed files across media and lists
// the files laid out uncompressed.
type MediaAssignment struct {
	// Media lists every media in declaration order, auto-generated ones last.
	Media []*Media
	// ByMedia holds the compressed files of each media, in file order.
	ByMedia      map[int][]*facade.Facade
	MediaOf      map[string]int
	Uncompressed []*facade.Facade
}

// Lookup returns the media with the given disk id.
func (a *MediaAssignment) Lookup(diskID int) *Media {
	for _, m := range a.Media {
		if m.DiskID == diskID {
			return m
		}
	}
	return nil
}

// MediaAssigner partitions the files across media.
type MediaAssigner struct{ stageInfo }

func NewMediaAssigner() *MediaAssigner {
	return &MediaAssigner{stageInfo{
		name:   "media-assigner",
		access: Access{Reads: []Slot{SlotIntermediate, SlotSummary, SlotFacades}, Writes: []Slot{SlotMedia, SlotIntermediate}},
	}}
}

func (s *MediaAssigner) Run(ctx context.Context, st *State) diag.Diagnostics {
	a, ds := AssignMedia(st.Section, st.Facades, st.Summary.Compressed, st.IsModule())
	st.Media = a
	ctxlog.FromContext(ctx).Debug("Assigned files to media.", "media", len(a.Media), "uncompressed", len(a.Uncompressed))
	return ds
}

// compressed returns the effective compression of f.
func compressed(f *facade.Facade, packageCompressed, module bool) bool {
	switch {
	case module:
		return true
	case f.Compressed == facade.Yes:
		return true
	case f.Compressed == facade.No:
		return false
	default:
		return packageCompressed
	}
}

// AssignMedia computes the media partition. Auto-generated media of product
// builds are added to sec as Media records so they are projected.
func AssignMedia(sec *ir.Section, files []*facade.Facade, packageCompressed, module bool) (*MediaAssignment, diag.Diagnostics) {
	var ds diag.Diagnostics
	a := &MediaAssignment{ByMedia: map[int][]*facade.Facade{}, MediaOf: map[string]int{}}

	for _, rec := range sec.OfType("Media") {
		m, err := mediaFromRecord(rec)
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "%v", err)
			continue
		}
		if a.Lookup(m.DiskID) != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "media %d is declared more than once", m.DiskID)
			continue
		}
		a.Media = append(a.Media, m)
	}
	declared := len(a.Media)

	if module {
		return assignModule(a, files), ds
	}

	template := sec.OfType("WixMediaTemplate")
	var auto *autoMedia
	if len(template) > 0 {
		var err error
		auto, err = newAutoMedia(template[0], a)
		if err != nil {
			ds.Errorf(diag.CodeInvalidMediaTemplate, template[0].Source, "%v", err)
			return a, ds
		}
	}

	for _, f := range files {
		if !compressed(f, packageCompressed, false) {
			a.Uncompressed = append(a.Uncompressed, f)
			continue
		}

		var m *Media
		switch {
		case f.DiskID != 0:
			if m = a.Lookup(f.DiskID); m == nil {
				ds.Errorf(diag.CodeMissingMedia, recordSource(f.Record), "file %s references media %d which does not exist", f.ID, f.DiskID)
				continue
			}
		case auto != nil:
			m = auto.next(a, f.Size)
		case declared > 0:
			m = a.Media[0]
		default:
			m = ensureDefaultMedia(a, defaultCabinet)
		}
		a.ByMedia[m.DiskID] = append(a.ByMedia[m.DiskID], f)
		a.MediaOf[f.ID] = m.DiskID
		f.DiskID = m.DiskID
	}

	// Uncompressed files still need a media for their sequence numbers.
	for _, f := range a.Uncompressed {
		if f.DiskID != 0 && a.Lookup(f.DiskID) != nil {
			continue
		}
		if f.DiskID != 0 {
			ds.Errorf(diag.CodeMissingMedia, recordSource(f.Record), "file %s references media %d which does not exist", f.ID, f.DiskID)
			continue
		}
		if len(a.Media) == 0 {
			ensureDefaultMedia(a, "")
		}
		f.DiskID = a.Media[0].DiskID
	}

	for _, m := range a.Media {
		if len(a.ByMedia[m.DiskID]) > 0 && m.Cabinet == "" {
			ds.Errorf(diag.CodeMediaWithoutCabinet, recordSource(m.Record), "media %d holds compressed files but declares no cabinet", m.DiskID)
		}
	}

	for _, m := range a.Media[declared:] {
		if m.Record != nil {
			sec.Add(m.Record)
		}
	}
	return a, ds
}

// assignModule puts every file of a merge module into the single embedded
// module cabinet.
func assignModule(a *MediaAssignment, files []*facade.Facade) *MediaAssignment {
	m := &Media{DiskID: 1, Cabinet: "#" + ModuleCabinet}
	a.Media = []*Media{m}
	for _, f := range files {
		f.DiskID = m.DiskID
		a.ByMedia[m.DiskID] = append(a.ByMedia[m.DiskID], f)
		a.MediaOf[f.ID] = m.DiskID
	}
	return a
}

func mediaFromRecord(rec *ir.Record) (*Media, error) {
	id, err := strconv.Atoi(rec.ID)
	if err != nil || id < 1 {
		return nil, fmt.Errorf("media disk id %q is not a positive number", rec.ID)
	}
	m := &Media{DiskID: id, Cabinet: rec.Get("Cabinet"), Layout: rec.Get("Layout"), Record: rec}
	if lvl := rec.Get("CompressionLevel"); lvl != "" {
		if m.Level, err = cabinet.ParseLevel(lvl); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func nextDiskID(a *MediaAssignment) int {
	max := 0
	for _, m := range a.Media {
		if m.DiskID > max {
			max = m.DiskID
		}
	}
	return max + 1
}

func ensureDefaultMedia(a *MediaAssignment, cab string) *Media {
	if m := a.Lookup(1); m != nil {
		return m
	}
	rec := ir.NewRecord("Media", "1")
	if cab != "" {
		rec.Set("Cabinet", cab)
	}
	m := &Media{DiskID: 1, Cabinet: cab, Record: rec}
	a.Media = append(a.Media, m)
	return m
}

// autoMedia creates media from a media template, starting a new cabinet
// whenever the uncompressed size would exceed the template's limit.
type autoMedia struct {
	template string
	level    cabinet.Level
	maxBytes int64
	count    int
	current  *Media
	size     int64
}

func newAutoMedia(rec *ir.Record, a *MediaAssignment) (*autoMedia, error) {
	am := &autoMedia{template: rec.Get("CabinetTemplate"), maxBytes: defaultMaxMediaSizeMB << 20}
	if am.template == "" {
		am.template = defaultCabinetTemplate
	}
	if !strings.Contains(am.template, "{0}") {
		return nil, fmt.Errorf("cabinet template %q must contain {0}", am.template)
	}
	if lvl := rec.Get("CompressionLevel"); lvl != "" {
		var err error
		if am.level, err = cabinet.ParseLevel(lvl); err != nil {
			return nil, err
		}
	}
	mb, ok, err := rec.Int("MaximumUncompressedMediaSize")
	if err != nil {
		return nil, err
	}
	if ok && mb > 0 {
		am.maxBytes = int64(mb) << 20
	}
	return am, nil
}

func (am *autoMedia) next(a *MediaAssignment, size int64) *Media {
	if am.current == nil || (am.size > 0 && am.size+size > am.maxBytes) {
		am.count++
		id := nextDiskID(a)
		cab := strings.ReplaceAll(am.template, "{0}", strconv.Itoa(am.count))
		rec := ir.NewRecord("Media", strconv.Itoa(id), "Cabinet", cab)
		if am.level != "" {
			rec.Set("CompressionLevel", string(am.level))
		}
		am.current = &Media{DiskID: id, Cabinet: cab, Level: am.level, Record: rec}
		am.size = 0
		a.Media = append(a.Media, am.current)
	}
	am.size += size
	return am.current
}

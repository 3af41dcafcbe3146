package bind

import (
	"context"
	"strconv"

	"github.com/Masterminds/semver/v3"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/output"
)

// ModuleCabinet is the stream holding the files of a merge module.
const ModuleCabinet = "MergeModule.CABinet"

// moduleRoot is the directory merge module content hangs off.
const moduleRoot = "TARGETDIR"

// InstallerVersion converts an installer version number (200, 405, 500)
// into a comparable version.
func InstallerVersion(v int) *semver.Version {
	if v < 0 {
		v = 0
	}
	return semver.New(uint64(v/100), uint64(v%100), 0, "", "")
}

// MergeModuleFileExtractor opens the merge modules referenced by WixMerge
// records and adds their files to the file list.
type MergeModuleFileExtractor struct{ stageInfo }

func NewMergeModuleFileExtractor() *MergeModuleFileExtractor {
	return &MergeModuleFileExtractor{stageInfo{
		name: "merge-module-file-extractor",
		access: Access{
			Reads:  []Slot{SlotIntermediate, SlotSummary, SlotFacades},
			Writes: []Slot{SlotFacades, SlotMergeModules, SlotContentPaths},
		},
	}}
}

func (s *MergeModuleFileExtractor) Applies(st *State) bool {
	return isProduct(st) && len(st.Section.OfType("WixMerge")) > 0
}

func (s *MergeModuleFileExtractor) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	logger := ctxlog.FromContext(ctx)
	known := facade.Index(st.Facades)
	productVersion := InstallerVersion(st.Summary.InstallerVersion)

	for _, rec := range st.Section.OfType("WixMerge") {
		path := rec.Get("SourceFile")
		st.AddContentPath(path)

		db, err := st.Reader.Read(st.FS, path)
		if err != nil {
			ds.Errorf(diag.CodeCorruptContainer, rec.Source, "cannot open merge module %s: %v", rec.ID, err)
			continue
		}

		mm := &MergeModule{ID: rec.ID, Path: path, Record: rec, Database: db, InstallerVersion: defaultInstallerVersion}
		if row, t := summaryRow(db, pidInstallerVer); row != nil {
			if v, ok := row.Int(t.Definition.ColumnIndex("Value")); ok {
				mm.InstallerVersion = v
			}
		}
		if InstallerVersion(mm.InstallerVersion).GreaterThan(productVersion) {
			ds.Errorf(diag.CodeInstallerVersion, rec.Source,
				"merge module %s requires installer version %d but the package declares %d",
				rec.ID, mm.InstallerVersion, st.Summary.InstallerVersion)
			continue
		}

		files, fileDs := s.extractFiles(st, mm, known)
		ds = append(ds, fileDs...)
		mm.Files = files
		st.Facades = append(st.Facades, files...)
		st.MergeModules = append(st.MergeModules, mm)
		logger.Debug("Extracted merge module.", "id", rec.ID, "files", len(files), "installer_version", mm.InstallerVersion)
	}
	return ds
}

func (s *MergeModuleFileExtractor) extractFiles(st *State, mm *MergeModule, known map[string]*facade.Facade) ([]*facade.Facade, diag.Diagnostics) {
	var ds diag.Diagnostics
	rec := mm.Record
	fileTable := mm.Database.Table("File")
	if fileTable == nil || len(fileTable.Rows) == 0 {
		return nil, ds
	}

	data, ok := mm.Database.Streams[ModuleCabinet]
	if !ok {
		ds.Errorf(diag.CodeCorruptContainer, rec.Source, "merge module %s has files but no %s stream", mm.ID, ModuleCabinet)
		return nil, ds
	}
	extracted, err := st.Codec.Extract(st.FS, data, st.temp(mm.ID))
	if err != nil {
		ds.Errorf(diag.CodeCorruptContainer, rec.Source, "merge module %s: %v", mm.ID, err)
		return nil, ds
	}

	disk, _, err := rec.Int("DiskId")
	if err != nil {
		ds.Errorf(diag.CodeInvalidInput, rec.Source, "%v", err)
	}
	compressed := facade.Unset
	switch rec.Get("FileCompression") {
	case "yes":
		compressed = facade.Yes
	case "no":
		compressed = facade.No
	}
	hashes := moduleHashes(mm.Database)
	components := mm.Database.Table("Component")

	var files []*facade.Facade
	for _, row := range fileTable.Rows {
		id := fileTable.Get(row, "File")
		if _, dup := known[id]; dup {
			ds.Errorf(diag.CodeMergeConflict, rec.Source, "merge module %s file %s collides with a file of the package", mm.ID, id)
			continue
		}
		src, ok := cabinet.Find(extracted, id)
		if !ok {
			ds.Errorf(diag.CodeMissingFile, rec.Source, "merge module %s does not contain file %s in its cabinet", mm.ID, id)
			continue
		}
		size, _ := row.Int(fileTable.Definition.ColumnIndex("FileSize"))

		f := &facade.Facade{
			ID:         id,
			Component:  fileTable.Get(row, "Component_"),
			Source:     src,
			FileName:   fileTable.Get(row, "FileName"),
			Size:       int64(size),
			Version:    fileTable.Get(row, "Version"),
			Language:   fileTable.Get(row, "Language"),
			Compressed: compressed,
			DiskID:     disk,
			Origin:     facade.OriginModule,
			MergeID:    mm.ID,
		}
		if components != nil {
			if comp := components.Find(f.Component); comp != nil {
				f.Directory = components.Get(comp, "Directory_")
			}
		}
		if h, ok := hashes[id]; ok {
			f.Hash, f.HasHash = h, true
		}
		known[id] = f
		files = append(files, f)
	}
	return files, ds
}

func moduleHashes(db *output.Output) map[string][4]int32 {
	out := map[string][4]int32{}
	t := db.Table("MsiFileHash")
	if t == nil {
		return out
	}
	for _, row := range t.Rows {
		var h [4]int32
		for i := range h {
			n, _ := row.Int(t.Definition.ColumnIndex("HashPart" + strconv.Itoa(i+1)))
			h[i] = int32(n)
		}
		out[t.Get(row, "File_")] = h
	}
	return out
}

func summaryRow(db *output.Output, pid int) (*output.Row, *output.Table) {
	t := db.Table(summaryRecord)
	if t == nil {
		return nil, nil
	}
	return t.Find(strconv.Itoa(pid)), t
}

// MergeModuleMerger folds the tables of the extracted merge modules into the
// output and rewrites the database.
type MergeModuleMerger struct{ stageInfo }

func NewMergeModuleMerger() *MergeModuleMerger {
	return &MergeModuleMerger{stageInfo{
		name: "merge-module-merger",
		access: Access{
			Reads:  []Slot{SlotMergeModules, SlotOutput, SlotFacades, SlotDatabase},
			Writes: []Slot{SlotOutput, SlotDatabase},
		},
	}}
}

func (s *MergeModuleMerger) Applies(st *State) bool {
	return len(st.MergeModules) > 0
}

// moduleSkipTables are module tables that describe the module container
// rather than content to merge.
var moduleSkipTables = map[string]bool{
	summaryRecord:               true,
	"Media":                     true,
	database.ValidationTable:    true,
	"ModuleIgnoreTable":         true,
	"WixSuppressModularization": true,
}

func (s *MergeModuleMerger) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	logger := ctxlog.FromContext(ctx)

	// Sequence tables must all exist while merging; the ones added here are
	// dropped again if no module contributed rows.
	var added []string
	for _, name := range st.Definitions.SequenceTables() {
		if st.Output.Table(name) != nil {
			continue
		}
		def, _ := st.Definitions.Get(name)
		st.Output.EnsureTable(def)
		added = append(added, name)
	}

	existing := 0
	if t := st.Output.Table("Component"); t != nil {
		existing = len(t.Rows)
	}
	facades := facade.Index(st.Facades)
	for _, mm := range st.MergeModules {
		ds = append(ds, s.mergeModule(st, mm, facades)...)
	}

	for _, name := range added {
		if t := st.Output.Table(name); t != nil && len(t.Rows) == 0 {
			st.Output.DropTable(name)
		}
	}

	// Rows of the package itself were validated before the merge.
	ds = append(ds, validateComponentGuidsFrom(st.Output.Table("Component"), existing)...)
	if ds.HasErrors() || st.DatabasePath == "" {
		return ds
	}

	if err := st.Writer.Write(st.FS, st.Output, st.DatabasePath, databaseOptions(st)); err != nil {
		ds.Errorf(diag.CodeDatabase, "", "failed to rewrite merged database: %v", err)
		return ds
	}
	logger.Debug("Merged modules into database.", "modules", len(st.MergeModules), "path", st.DatabasePath)
	return ds
}

func (s *MergeModuleMerger) mergeModule(st *State, mm *MergeModule, facades map[string]*facade.Facade) diag.Diagnostics {
	var ds diag.Diagnostics
	targetDir := mm.Record.Get("Directory_")
	feature := mm.Record.Get("Feature_")

	for _, mt := range mm.Database.Tables() {
		if moduleSkipTables[mt.Name()] {
			continue
		}
		def := mt.Definition
		if std, ok := st.Definitions.Get(mt.Name()); ok {
			def = std
		}
		target := st.Output.EnsureTable(def)

		for _, mrow := range mt.Rows {
			row := &output.Row{Source: mm.Path, Values: make([]any, len(target.Definition.Columns))}
			for i, col := range target.Definition.Columns {
				if j := mt.Definition.ColumnIndex(col.Name); j >= 0 {
					row.Values[i] = mrow.Values[j]
				}
			}

			switch mt.Name() {
			case "Directory":
				if target.Get(row, "Directory") == moduleRoot {
					continue
				}
				if target.Get(row, "Directory_Parent") == moduleRoot {
					target.Set(row, "Directory_Parent", targetDir)
				}
			case "Component":
				if target.Get(row, "Directory_") == moduleRoot {
					target.Set(row, "Directory_", targetDir)
				}
				if feature != "" && !mergeConflict(target, row) {
					addFeatureComponent(st, feature, target.Get(row, "Component"), mm.Path)
				}
			case "File":
				if f, ok := facades[target.Get(row, "File")]; ok {
					target.Set(row, "Sequence", f.Sequence)
				}
			}

			key := target.Key(row)
			existing := target.Find(key)
			switch {
			case existing == nil:
				target.Rows = append(target.Rows, row)
			case existing.Equal(row):
				ds.Warnf(diag.CodeMergeDuplicate, mm.Record.Source,
					"merge module %s repeats row %s of table %s", mm.ID, key, mt.Name())
			default:
				ds.Errorf(diag.CodeMergeConflict, mm.Record.Source,
					"merge module %s row %s of table %s conflicts with an existing row", mm.ID, key, mt.Name())
			}
		}
	}
	return ds
}

// mergeConflict reports whether row collides with a different row of the
// same key.
func mergeConflict(t *output.Table, row *output.Row) bool {
	existing := t.Find(t.Key(row))
	return existing != nil && !existing.Equal(row)
}

func addFeatureComponent(st *State, feature, component, source string) {
	def, _ := st.Definitions.Get("FeatureComponents")
	t := st.Output.EnsureTable(def)
	if t.Find(feature+"/"+component) != nil {
		return
	}
	row := t.NewRow(source)
	t.Set(row, "Feature_", feature)
	t.Set(row, "Component_", component)
}

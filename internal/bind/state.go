package bind

import (
	"path/filepath"
	"strings"

	"github.com/go-git/go-billy/v5"

	"github.com/specialistvlad/pkgbind/internal/cabinet"
	"github.com/specialistvlad/pkgbind/internal/database"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// Options are the caller's settings for one bind.
type Options struct {
	FS billy.Filesystem
	// OutputPath is where the package database ends up.
	OutputPath string
	// IntermediateFolder holds temporary files: extracted files, cabinets
	// and the database before they are transferred.
	IntermediateFolder string
	// LayoutDir is the root of the media layout; defaults to the directory
	// of OutputPath.
	LayoutDir              string
	Threads                int
	CabCachePath           string
	DefaultCompression     cabinet.Level
	SuppressLayout         bool
	SuppressValidationRows bool
	KeepAddedColumns       bool
	DeltaPatch             bool

	Codec       cabinet.Codec
	Writer      database.Writer
	Reader      database.Reader
	Extensions  *extension.Registry
	Definitions *schema.Definitions
}

func (o *Options) applyDefaults() error {
	if o.Threads < 1 {
		o.Threads = 1
	}
	if o.DefaultCompression == "" {
		o.DefaultCompression = cabinet.DefaultLevel
	}
	if o.Codec == nil {
		o.Codec = cabinet.ZipCodec{}
	}
	if o.Definitions == nil {
		o.Definitions = schema.Standard()
	} else {
		o.Definitions = o.Definitions.Clone()
	}
	if err := o.Extensions.ExtendDefinitions(o.Definitions); err != nil {
		return err
	}
	if o.Writer == nil {
		o.Writer = database.MsgpackWriter{Definitions: o.Definitions}
	}
	if o.Reader == nil {
		o.Reader = database.MsgpackWriter{Definitions: o.Definitions}
	}
	if o.LayoutDir == "" && o.OutputPath != "" {
		o.LayoutDir = filepath.Dir(o.OutputPath)
	}
	if o.IntermediateFolder == "" {
		o.IntermediateFolder = "obj"
	}
	return nil
}

// Summary holds the package-level flags read from the summary information.
type Summary struct {
	Compressed       bool
	LongNames        bool
	InstallerVersion int
	PackageCode      string
	// ModularizationGuid seeds the suffix appended by the modularizer.
	ModularizationGuid string
}

// VariableCache maps binder variable names to values. Names are case
// insensitive.
type VariableCache map[string]string

// Set stores a value.
func (c VariableCache) Set(name, value string) {
	c[strings.ToLower(name)] = value
}

// Get looks a value up.
func (c VariableCache) Get(name string) (string, bool) {
	v, ok := c[strings.ToLower(name)]
	return v, ok
}

// MergeModule is a sub-package referenced by a WixMerge record.
type MergeModule struct {
	ID               string
	Path             string
	Record           *ir.Record
	Database         *output.Output
	InstallerVersion int
	Files            []*facade.Facade
}

// State is everything the stages share during one bind.
type State struct {
	Options

	Intermediate *ir.Intermediate
	Section      *ir.Section
	Sink         *diag.Sink

	Summary      Summary
	Variables    VariableCache
	Facades      []*facade.Facade
	MergeModules []*MergeModule
	Media        *MediaAssignment
	Output       *output.Output
	DatabasePath string

	Transfers    []FileTransfer
	ContentPaths []string
}

// NewState prepares the state for binding in. The intermediate must hold
// exactly one section.
func NewState(in *ir.Intermediate, opts Options) (*State, error) {
	sec, err := in.Section()
	if err != nil {
		return nil, err
	}
	if err := opts.applyDefaults(); err != nil {
		return nil, err
	}
	return &State{
		Options:      opts,
		Intermediate: in,
		Section:      sec,
		Sink:         diag.NewSink(),
	}, nil
}

// IsModule reports whether a merge module is being built.
func (s *State) IsModule() bool {
	return s.Section.Type == ir.SectionModule
}

// AddContentPath records a consumed input file once.
func (s *State) AddContentPath(p string) {
	for _, existing := range s.ContentPaths {
		if existing == p {
			return
		}
	}
	s.ContentPaths = append(s.ContentPaths, p)
}

// AddTransfer queues a file transfer.
func (s *State) AddTransfer(t FileTransfer) {
	s.Transfers = append(s.Transfers, t)
}

// temp returns a path inside the intermediate folder.
func (s *State) temp(elem ...string) string {
	return filepath.Join(append([]string{s.IntermediateFolder}, elem...)...)
}

// Package facade provides the binder's unified view of one payload file.
package facade

import (
	"path"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/ir"
)

// Origin tells where the bytes of a file come from.
type Origin int

const (
	OriginOrdinary Origin = iota
	OriginEmbedded
	OriginModule
)

func (o Origin) String() string {
	switch o {
	case OriginEmbedded:
		return "embedded"
	case OriginModule:
		return "module"
	default:
		return "ordinary"
	}
}

// Tri is a flag that may be left unset so a package-level default applies.
type Tri int

const (
	Unset Tri = iota
	Yes
	No
)

// TriOf converts an optional yes/no field.
func TriOf(value, ok bool) Tri {
	switch {
	case !ok:
		return Unset
	case value:
		return Yes
	default:
		return No
	}
}

// Facade describes one payload file.
type Facade struct {
	ID        string
	Component string
	Directory string
	// Source is where the binder reads the file from.
	Source string
	// FileName is the target name, "short|long" when both are given.
	FileName   string
	Size       int64
	Version    string
	Language   string
	Hash       [4]int32
	HasHash    bool
	Compressed Tri
	DiskID     int
	Sequence   int
	Origin     Origin
	// MergeID is the WixMerge record the file was extracted from.
	MergeID        string
	PreviousSource string
	DeltaPatch     bool
	// Record is the File record backing the facade; nil for module files.
	Record *ir.Record
}

// New builds a facade from a File record.
func New(rec *ir.Record) (*Facade, error) {
	f := &Facade{
		ID:             rec.ID,
		Component:      rec.Get("Component_"),
		Directory:      rec.Get("Directory_"),
		Source:         rec.Get("Source"),
		FileName:       rec.Get("FileName"),
		Version:        rec.Get("Version"),
		Language:       rec.Get("Language"),
		PreviousSource: rec.Get("PreviousSource"),
		Compressed:     TriOf(rec.Bool("Compressed")),
		Record:         rec,
	}
	disk, _, err := rec.Int("DiskId")
	if err != nil {
		return nil, err
	}
	f.DiskID = disk

	seq, _, err := rec.Int("Sequence")
	if err != nil {
		return nil, err
	}
	f.Sequence = seq
	if f.Source == "" {
		f.Source = rec.ID
	}
	return f, nil
}

// LongName returns the long target file name.
func (f *Facade) LongName() string {
	return LongName(f.FileName)
}

// ShortName returns the short target file name.
func (f *Facade) ShortName() string {
	return ShortName(f.FileName)
}

// TargetName returns the name used inside archives and layouts.
func (f *Facade) TargetName(long bool) string {
	if long {
		return f.LongName()
	}
	return f.ShortName()
}

// Versioned reports whether the file carries a version string, as opposed
// to a companion file reference or nothing.
func (f *Facade) Versioned() bool {
	return IsVersion(f.Version)
}

// Ext returns the lower-case extension of the long name.
func (f *Facade) Ext() string {
	return strings.ToLower(path.Ext(f.LongName()))
}

// LongName picks the long part of a "short|long" name.
func LongName(name string) string {
	if i := strings.IndexByte(name, '|'); i >= 0 {
		return name[i+1:]
	}
	return name
}

// ShortName picks the short part of a "short|long" name.
func ShortName(name string) string {
	if i := strings.IndexByte(name, '|'); i >= 0 {
		return name[:i]
	}
	return name
}

// IsVersion reports whether s looks like a dotted numeric version.
func IsVersion(s string) bool {
	if s == "" {
		return false
	}
	dots := 0
	for _, r := range s {
		switch {
		case r == '.':
			dots++
		case r < '0' || r > '9':
			return false
		}
	}
	return dots > 0 && !strings.HasPrefix(s, ".") && !strings.HasSuffix(s, ".") && !strings.Contains(s, "..")
}

// Index maps facade ids to facades.
func Index(fs []*Facade) map[string]*Facade {
	m := make(map[string]*Facade, len(fs))
	for _, f := range fs {
		m[f.ID] = f
	}
	return m
}

// Package envlayout lets the environment redirect media layouts:
// PKGBIND_MEDIA_<DiskId>=<dir> places the cabinet and uncompressed files of
// that media in dir.
package envlayout

import (
	"os"

	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// Prefix is prepended to the disk id to form the variable name.
const Prefix = "PKGBIND_MEDIA_"

// Module implements the extension.Module interface for this package.
type Module struct {
	// Lookup reads a variable; nil means os.LookupEnv.
	Lookup func(string) (string, bool)
}

// Register registers the resolver with the binder.
func (m *Module) Register(r *extension.Registry) {
	lookup := m.Lookup
	if lookup == nil {
		lookup = os.LookupEnv
	}
	r.Register("envlayout", &Resolver{lookup: lookup})
}

// Resolver implements extension.MediaLayoutResolver.
type Resolver struct {
	lookup func(string) (string, bool)
}

// ResolveMedia returns the directory named by PKGBIND_MEDIA_<DiskId>.
func (r *Resolver) ResolveMedia(media *ir.Record, hint, layoutDir string) (string, bool) {
	if media == nil {
		return "", false
	}
	dir, ok := r.lookup(Prefix + media.ID)
	if !ok || dir == "" {
		return "", false
	}
	return dir, true
}

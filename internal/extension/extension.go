package extension

import (
	"fmt"
	"log/slog"

	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// RecordTranslator projects record types the standard tables do not cover.
type RecordTranslator interface {
	CanTranslate(recordType string) bool
	TranslateRecord(rec *ir.Record, out *output.Output) error
}

// MediaLayoutResolver picks the layout directory of a media. It returns
// false to let the next resolver or the default policy decide.
type MediaLayoutResolver interface {
	ResolveMedia(media *ir.Record, hint, layoutDir string) (string, bool)
}

// ComponentGuidProvider overrides generated component identities.
type ComponentGuidProvider interface {
	ComponentGuid(component *ir.Record, section *ir.Section) (string, bool)
}

// TableProvider contributes table definitions for custom tables.
type TableProvider interface {
	TableDefinitions() []*schema.TableDefinition
}

// Module is the interface that all built-in extensions implement to be
// registered.
type Module interface {
	Register(r *Registry)
}

// Registry holds registered extensions per capability, in registration order.
type Registry struct {
	names       map[string]struct{}
	translators []RecordTranslator
	resolvers   []MediaLayoutResolver
	guids       []ComponentGuidProvider
	tables      []TableProvider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{names: map[string]struct{}{}}
}

// Register files ext under every capability it implements.
func (r *Registry) Register(name string, ext any) {
	if _, exists := r.names[name]; exists {
		panic(fmt.Sprintf("extension with name '%s' already registered", name))
	}
	r.names[name] = struct{}{}

	var caps []string
	if t, ok := ext.(RecordTranslator); ok {
		r.translators = append(r.translators, t)
		caps = append(caps, "translator")
	}
	if m, ok := ext.(MediaLayoutResolver); ok {
		r.resolvers = append(r.resolvers, m)
		caps = append(caps, "media_layout")
	}
	if g, ok := ext.(ComponentGuidProvider); ok {
		r.guids = append(r.guids, g)
		caps = append(caps, "component_guid")
	}
	if tp, ok := ext.(TableProvider); ok {
		r.tables = append(r.tables, tp)
		caps = append(caps, "tables")
	}
	slog.Debug("Registering extension.", "name", name, "capabilities", caps)
}

// Translator returns the first translator accepting recordType.
func (r *Registry) Translator(recordType string) (RecordTranslator, bool) {
	if r == nil {
		return nil, false
	}
	for _, t := range r.translators {
		if t.CanTranslate(recordType) {
			return t, true
		}
	}
	return nil, false
}

// ResolveMedia asks the resolvers in order for a layout directory.
func (r *Registry) ResolveMedia(media *ir.Record, hint, layoutDir string) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, m := range r.resolvers {
		if dir, ok := m.ResolveMedia(media, hint, layoutDir); ok && dir != "" {
			return dir, true
		}
	}
	return "", false
}

// ComponentGuid asks the providers in order for a component identity.
func (r *Registry) ComponentGuid(component *ir.Record, section *ir.Section) (string, bool) {
	if r == nil {
		return "", false
	}
	for _, g := range r.guids {
		if id, ok := g.ComponentGuid(component, section); ok && id != "" {
			return id, true
		}
	}
	return "", false
}

// ExtendDefinitions adds every contributed table to defs.
func (r *Registry) ExtendDefinitions(defs *schema.Definitions) error {
	if r == nil {
		return nil
	}
	for _, tp := range r.tables {
		for _, t := range tp.TableDefinitions() {
			if err := defs.Add(t); err != nil {
				return fmt.Errorf("extension table: %w", err)
			}
		}
	}
	return nil
}

package extension

import (
	"testing"

	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTranslator struct{ recordType string }

func (f fakeTranslator) CanTranslate(recordType string) bool { return recordType == f.recordType }

func (f fakeTranslator) TranslateRecord(*ir.Record, *output.Output) error { return nil }

type fakeResolver struct {
	dir string
	ok  bool
}

func (f fakeResolver) ResolveMedia(*ir.Record, string, string) (string, bool) { return f.dir, f.ok }

type fakeGuids struct{ id string }

func (f fakeGuids) ComponentGuid(*ir.Record, *ir.Section) (string, bool) { return f.id, f.id != "" }

type fakeTables struct{}

func (fakeTables) TableDefinitions() []*schema.TableDefinition {
	return []*schema.TableDefinition{{Name: "Extra", Columns: []schema.ColumnDefinition{{Name: "Id", PrimaryKey: true}}}}
}

func TestRegistry_FirstResultWins(t *testing.T) {
	r := NewRegistry()
	r.Register("declines", fakeResolver{ok: false})
	r.Register("first", fakeResolver{dir: "/first", ok: true})
	r.Register("second", fakeResolver{dir: "/second", ok: true})

	dir, ok := r.ResolveMedia(ir.NewRecord("Media", "1"), "", "/layout")
	require.True(t, ok)
	assert.Equal(t, "/first", dir)
}

func TestRegistry_Capabilities(t *testing.T) {
	r := NewRegistry()
	r.Register("a", fakeTranslator{recordType: "Custom"})
	r.Register("b", fakeGuids{})
	r.Register("c", fakeGuids{id: "{X}"})
	r.Register("d", fakeTables{})

	_, ok := r.Translator("Custom")
	assert.True(t, ok)
	_, ok = r.Translator("Other")
	assert.False(t, ok)

	id, ok := r.ComponentGuid(ir.NewRecord("Component", "c"), &ir.Section{})
	require.True(t, ok)
	assert.Equal(t, "{X}", id)

	defs := schema.Standard()
	require.NoError(t, r.ExtendDefinitions(defs))
	_, ok = defs.Get("Extra")
	assert.True(t, ok)
}

func TestRegistry_DuplicateNamePanics(t *testing.T) {
	r := NewRegistry()
	r.Register("x", struct{}{})
	assert.Panics(t, func() { r.Register("x", struct{}{}) })
}

func TestRegistry_Nil(t *testing.T) {
	var r *Registry
	_, ok := r.Translator("Custom")
	assert.False(t, ok)
	_, ok = r.ResolveMedia(nil, "", "")
	assert.False(t, ok)
	assert.NoError(t, r.ExtendDefinitions(schema.Standard()))
}

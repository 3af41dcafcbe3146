package bind

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

func TestComponentGuid_IsDeterministic(t *testing.T) {
	a := ComponentGuid(`c:\src\app.exe`, "")
	assert.Equal(t, a, ComponentGuid(`c:\src\app.exe`, ""))
	assert.NotEqual(t, a, ComponentGuid(`c:\src\app.exe`, "Instance1"))
	assert.NotEqual(t, a, ComponentGuid(`c:\src\other.exe`, ""))
	assert.Regexp(t, `^\{[0-9A-F]{8}-[0-9A-F]{4}-3[0-9A-F]{3}-[0-9A-F]{4}-[0-9A-F]{12}\}$`, a)
}

func guidState(t *testing.T, recs ...*ir.Record) (*State, []*facade.Facade) {
	t.Helper()
	st := newTestState(t, nil, section(ir.SectionProduct, recs...), Options{})
	for _, r := range st.Section.OfType("File") {
		f, err := facade.New(r)
		require.NoError(t, err)
		st.Facades = append(st.Facades, f)
	}
	return st, st.Facades
}

func TestComponentGuidGenerator(t *testing.T) {
	st, files := guidState(t,
		newRec("Component", "Versioned", "ComponentId", "*", "KeyPath", "app"),
		newRec("Component", "Hashed", "ComponentId", "*", "KeyPath", "readme"),
		newRec("Component", "Registry", "ComponentId", "*", "KeyPath", "reg1", "Attributes", "4"),
		newRec("Component", "Instanced", "ComponentId", "*", "KeyPath", "app", "InstanceToken", "Second"),
		newRec("Component", "Fixed", "ComponentId", "{AAAAAAAA-0000-0000-0000-000000000000}"),
		newRec("Component", "FixedInstance", "ComponentId", "{AAAAAAAA-0000-0000-0000-000000000000}", "InstanceToken", "Second"),
		newRec("File", "app", "Source", `Src\App.exe`, "Version", "1.0.0.0"),
		newRec("File", "readme", "Source", "readme.txt"),
		newRec("Registry", "reg1", "Root", "HKLM", "Key", `Software\Acme`, "Name", "Installed"),
	)
	files[1].Hash, files[1].HasHash = [4]int32{1, -2, 3, -4}, true

	res := runStages(t, st, NewComponentGuidGenerator())
	require.True(t, res.Succeeded, res.Diagnostics)

	id := func(c string) string { return st.Section.Find("Component", c).Get("ComponentId") }
	assert.Equal(t, ComponentGuid(`src\app.exe`, ""), id("Versioned"))
	assert.Equal(t, ComponentGuid("1,-2,3,-4", ""), id("Hashed"))
	assert.Equal(t, ComponentGuid(`hklm\software\acme\installed`, ""), id("Registry"))
	assert.Equal(t, ComponentGuid(`src\app.exe`, "Second"), id("Instanced"))
	assert.Equal(t, "{AAAAAAAA-0000-0000-0000-000000000000}", id("Fixed"))
	assert.Equal(t, ComponentGuid("{AAAAAAAA-0000-0000-0000-000000000000}", "Second"), id("FixedInstance"))
}

func TestComponentGuidGenerator_NoKeyPath(t *testing.T) {
	st, _ := guidState(t,
		newRec("Component", "Empty", "ComponentId", "*"),
		newRec("Component", "Dangling", "ComponentId", "*", "KeyPath", "nothing"),
	)
	res := runStages(t, st, NewComponentGuidGenerator())
	assert.False(t, res.Succeeded)
	assert.Equal(t, 2, res.Diagnostics.Count(diag.Error))
	assert.Equal(t, diag.CodeCannotGenerateGuid, res.Diagnostics[0].Code)
}

type fixedGuids string

func (g fixedGuids) ComponentGuid(comp *ir.Record, _ *ir.Section) (string, bool) {
	if comp.ID != "Custom" {
		return "", false
	}
	return string(g), true
}

func TestComponentGuidGenerator_AsksExtensionsFirst(t *testing.T) {
	reg := extension.NewRegistry()
	reg.Register("fixed", fixedGuids("{12345678-1234-1234-1234-123456789ABC}"))

	st := newTestState(t, nil, section(ir.SectionProduct,
		newRec("Component", "Custom", "ComponentId", "*"),
	), Options{Extensions: reg})
	res := runStages(t, st, NewComponentGuidGenerator())
	require.True(t, res.Succeeded)
	assert.Equal(t, "{12345678-1234-1234-1234-123456789ABC}", st.Section.Find("Component", "Custom").Get("ComponentId"))
}

func componentTable(t *testing.T, rows ...[3]string) *output.Table {
	t.Helper()
	def, ok := schema.Standard().Get("Component")
	require.True(t, ok)
	out := output.New(output.TypeProduct, 0)
	table := out.EnsureTable(def)
	for _, r := range rows {
		row := table.NewRow("test:" + r[0])
		table.Set(row, "Component", r[0])
		table.Set(row, "ComponentId", r[1])
		table.Set(row, "Condition", r[2])
	}
	return table
}

func TestValidateComponentGuids(t *testing.T) {
	const guid = "{11111111-1111-1111-1111-111111111111}"

	tests := []struct {
		name     string
		rows     [][3]string
		errors   int
		warnings int
	}{
		{name: "unique", rows: [][3]string{{"A", guid, ""}, {"B", "{22222222-2222-2222-2222-222222222222}", ""}}},
		{name: "both conditioned", rows: [][3]string{{"A", guid, "X"}, {"B", guid, "NOT X"}}, warnings: 1},
		{name: "one unconditioned", rows: [][3]string{{"A", guid, "X"}, {"B", guid, ""}}, errors: 1},
		{name: "unconditioned first", rows: [][3]string{{"A", guid, ""}, {"B", guid, "X"}}, errors: 1},
		{
			name:   "no return to warning",
			rows:   [][3]string{{"A", guid, "X"}, {"B", guid, ""}, {"C", guid, "Y"}},
			errors: 2,
		},
		{
			name:     "three conditioned",
			rows:     [][3]string{{"A", guid, "X"}, {"B", guid, "Y"}, {"C", guid, "Z"}},
			warnings: 2,
		},
		{name: "null identities are ignored", rows: [][3]string{{"A", "", ""}, {"B", "", ""}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ds := ValidateComponentGuids(componentTable(t, tt.rows...))
			assert.Equal(t, tt.errors, ds.Count(diag.Error))
			assert.Equal(t, tt.warnings, ds.Count(diag.Warning))
		})
	}
}

package bind

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
)

// ComponentGuidNamespace scopes every generated component identity.
var ComponentGuidNamespace = uuid.MustParse("3064E5C6-FB63-4FE9-AC49-E446A792EFA5")

// Component attribute bit marking a registry key path.
const componentRegistryKeyPath = 4

// ComponentGuid returns the identity for a content key and instance token:
// a version 3 UUID in ComponentGuidNamespace over key+instanceToken.
func ComponentGuid(key, instanceToken string) string {
	return formatGuid(uuid.NewMD5(ComponentGuidNamespace, []byte(key+instanceToken)))
}

// ComponentGuidGenerator fills in component identities left as "*".
type ComponentGuidGenerator struct{ stageInfo }

func NewComponentGuidGenerator() *ComponentGuidGenerator {
	return &ComponentGuidGenerator{stageInfo{
		name:   "component-guid-generator",
		access: Access{Reads: []Slot{SlotIntermediate, SlotFacades}, Writes: []Slot{SlotIntermediate}},
	}}
}

func (s *ComponentGuidGenerator) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	files := facade.Index(st.Facades)
	generated := 0

	for _, comp := range st.Section.OfType("Component") {
		id := comp.Get("ComponentId")
		token := comp.Get("InstanceToken")

		if id != ir.Placeholder {
			if id != "" && token != "" {
				comp.Set("ComponentId", ComponentGuid(id, token))
				generated++
			}
			continue
		}

		if guid, ok := st.Extensions.ComponentGuid(comp, st.Section); ok {
			comp.Set("ComponentId", guid)
			generated++
			continue
		}

		key, ok := componentKey(comp, st.Section, files)
		if !ok {
			ds.Errorf(diag.CodeCannotGenerateGuid, comp.Source,
				"component %s has no file or registry key path to derive an identity from", comp.ID)
			continue
		}
		comp.Set("ComponentId", ComponentGuid(key, token))
		generated++
	}
	ctxlog.FromContext(ctx).Debug("Generated component identities.", "count", generated)
	return ds
}

// componentKey returns the stable content key of a component: the key file's
// hash for unversioned files, otherwise its source path, or the registry
// location for registry key paths.
func componentKey(comp *ir.Record, sec *ir.Section, files map[string]*facade.Facade) (string, bool) {
	keyPath := comp.Get("KeyPath")
	if keyPath == "" {
		return "", false
	}

	attrs, _, _ := comp.Int("Attributes")
	if attrs&componentRegistryKeyPath != 0 {
		reg := sec.Find("Registry", keyPath)
		if reg == nil {
			return "", false
		}
		return strings.ToLower(reg.Get("Root") + `\` + reg.Get("Key") + `\` + reg.Get("Name")), true
	}

	f, ok := files[keyPath]
	if !ok {
		return "", false
	}
	if f.HasHash && !f.Versioned() {
		return hashString(f.Hash), true
	}
	return strings.ToLower(f.Source), true
}

// ComponentGuidValidator checks that component identities are unique, or
// at least that every component sharing one is conditioned.
type ComponentGuidValidator struct{ stageInfo }

func NewComponentGuidValidator() *ComponentGuidValidator {
	return &ComponentGuidValidator{stageInfo{
		name:   "component-guid-validator",
		access: Access{Reads: []Slot{SlotOutput}},
	}}
}

func (s *ComponentGuidValidator) Run(ctx context.Context, st *State) diag.Diagnostics {
	return ValidateComponentGuids(st.Output.Table("Component"))
}

// ValidateComponentGuids makes one pass over the Component rows in order.
// For each identity it tracks whether every component seen so far carries a
// condition: a repeat among conditioned components is a warning, any other
// repeat is an error, and an identity never returns to the warning state.
func ValidateComponentGuids(t *output.Table) diag.Diagnostics {
	return validateComponentGuidsFrom(t, 0)
}

// validateComponentGuidsFrom replays the rows before start without
// reporting them, then reports on the rest.
func validateComponentGuidsFrom(t *output.Table, start int) diag.Diagnostics {
	var ds, replayed diag.Diagnostics
	if t == nil {
		return ds
	}
	acc := newGuidAccumulator()
	for i, row := range t.Rows {
		if i < start {
			acc.add(t, row, &replayed)
			continue
		}
		acc.add(t, row, &ds)
	}
	return ds
}

type guidAccumulator struct {
	allConditioned map[string]bool
	owner          map[string]string
}

func newGuidAccumulator() *guidAccumulator {
	return &guidAccumulator{allConditioned: map[string]bool{}, owner: map[string]string{}}
}

func (a *guidAccumulator) add(t *output.Table, row *output.Row, ds *diag.Diagnostics) {
	guid := t.Get(row, "ComponentId")
	if guid == "" || guid == ir.Placeholder {
		return
	}
	name := t.Get(row, "Component")
	conditioned := t.Get(row, "Condition") != ""

	prev, seen := a.allConditioned[guid]
	if !seen {
		a.allConditioned[guid] = conditioned
		a.owner[guid] = name
		return
	}
	if prev && conditioned {
		ds.Warnf(diag.CodeDuplicateConditionedGuid, row.Source,
			"components %s and %s share identity %s; allowed only if their conditions are mutually exclusive", a.owner[guid], name, guid)
		return
	}
	a.allConditioned[guid] = false
	ds.Errorf(diag.CodeDuplicateComponentGuid, row.Source,
		"components %s and %s share identity %s", a.owner[guid], name, guid)
}

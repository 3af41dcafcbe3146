package bind

import (
	"context"
	"sort"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// PropertyResolver assigns generated values to wildcard properties and
// seeds the variable cache.
type PropertyResolver struct{ stageInfo }

func NewPropertyResolver() *PropertyResolver {
	return &PropertyResolver{stageInfo{
		name:   "property-resolver",
		access: Access{Reads: []Slot{SlotIntermediate}, Writes: []Slot{SlotIntermediate, SlotVariables}},
	}}
}

func (s *PropertyResolver) Run(ctx context.Context, st *State) diag.Diagnostics {
	if len(st.Intermediate.DelayedFields) > 0 {
		st.Variables = VariableCache{}
	}

	for _, rec := range st.Section.OfType("Property") {
		if rec.ID == "ProductCode" && rec.Get("Value") == ir.Placeholder {
			rec.Set("Value", NewGuid())
			ctxlog.FromContext(ctx).Debug("Generated product code.", "value", rec.Get("Value"))
		}
		if st.Variables != nil {
			st.Variables.Set("property."+rec.ID, rec.Get("Value"))
		}
	}
	return nil
}

// SpecialPropertySynthesizer turns WixProperty flags into the
// AdminProperties, MsiHiddenProperties and SecureCustomProperties lists.
type SpecialPropertySynthesizer struct{ stageInfo }

func NewSpecialPropertySynthesizer() *SpecialPropertySynthesizer {
	return &SpecialPropertySynthesizer{stageInfo{
		name:   "special-property-synthesizer",
		access: Access{Reads: []Slot{SlotIntermediate, SlotVariables}, Writes: []Slot{SlotIntermediate, SlotVariables}},
	}}
}

func (s *SpecialPropertySynthesizer) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	lists := map[string][]string{}

	for _, rec := range st.Section.OfType("WixProperty") {
		name := rec.Get("Property_")
		if name == "" {
			name = rec.ID
		}
		if v, _ := rec.Bool("Admin"); v {
			lists["AdminProperties"] = append(lists["AdminProperties"], name)
		}
		if v, _ := rec.Bool("Hidden"); v {
			lists["MsiHiddenProperties"] = append(lists["MsiHiddenProperties"], name)
		}
		if v, _ := rec.Bool("Secure"); v {
			if !schema.IsPublicProperty(name) {
				ds.Errorf(diag.CodeInvalidInput, rec.Source, "secure property %s must be public (all upper case)", name)
				continue
			}
			lists["SecureCustomProperties"] = append(lists["SecureCustomProperties"], name)
		}
	}

	keys := make([]string, 0, len(lists))
	for k := range lists {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, prop := range keys {
		names := lists[prop]
		rec := st.Section.Find("Property", prop)
		if rec == nil {
			rec = ir.NewRecord("Property", prop)
			st.Section.Add(rec)
		}
		rec.Set("Value", joinUnique(rec.Get("Value"), names))
		if st.Variables != nil {
			st.Variables.Set("property."+prop, rec.Get("Value"))
		}
	}
	return ds
}

func joinUnique(existing string, names []string) string {
	var out []string
	seen := map[string]bool{}
	for _, n := range append(strings.Split(existing, ";"), names...) {
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return strings.Join(out, ";")
}

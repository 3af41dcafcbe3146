package bind

import (
	"context"
	"path"
	"regexp"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/facade"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// ModularizationToken derives the identifier suffix from a GUID:
// "{12345678-ABCD-...}" becomes ".12345678_ABCD_...".
func ModularizationToken(guid string) string {
	g := strings.Trim(guid, "{}")
	return "." + strings.ReplaceAll(g, "-", "_")
}

// Modularizer appends the build's modularization token to the identifiers
// of a merge module so that merged modules cannot collide.
type Modularizer struct{ stageInfo }

func NewModularizer() *Modularizer {
	return &Modularizer{stageInfo{
		name: "modularizer",
		access: Access{
			Reads:  []Slot{SlotOutput, SlotSummary, SlotFacades, SlotMedia},
			Writes: []Slot{SlotOutput, SlotFacades, SlotMedia},
		},
	}}
}

func (s *Modularizer) Applies(st *State) bool {
	return st.IsModule()
}

func (s *Modularizer) Run(ctx context.Context, st *State) diag.Diagnostics {
	m := NewModularization(st.Summary.ModularizationGuid, suppressed(st.Output))
	changed := m.Apply(st.Output)

	mediaOf := make(map[string]int, len(st.Media.MediaOf))
	for _, f := range st.Facades {
		disk, assigned := st.Media.MediaOf[f.ID]
		f.ID = m.Identifier(f.ID)
		f.Component = m.Identifier(f.Component)
		f.Directory = m.Identifier(f.Directory)
		if assigned {
			mediaOf[f.ID] = disk
		}
	}
	st.Media.MediaOf = mediaOf

	ctxlog.FromContext(ctx).Debug("Modularized identifiers.", "token", m.Token, "values_changed", changed)
	return nil
}

// suppressed lists names that keep their identity. The module root is shared
// with every consuming package.
func suppressed(out *output.Output) map[string]bool {
	set := map[string]bool{moduleRoot: true}
	if t := out.Table("WixSuppressModularization"); t != nil {
		for _, row := range t.Rows {
			set[t.Get(row, "Name")] = true
		}
	}
	return set
}

// Modularization rewrites identifiers with a fixed token. Every rewrite is
// idempotent: values already carrying the token are left alone.
type Modularization struct {
	Token      string
	Suppressed map[string]bool
}

// NewModularization creates a modularization for guid.
func NewModularization(guid string, suppressed map[string]bool) *Modularization {
	if suppressed == nil {
		suppressed = map[string]bool{}
	}
	return &Modularization{Token: ModularizationToken(guid), Suppressed: suppressed}
}

// Apply rewrites every modularizable column of out and returns the number
// of changed values.
func (m *Modularization) Apply(out *output.Output) int {
	changed := 0
	for _, t := range out.Tables() {
		for i, col := range t.Definition.Columns {
			if col.Modularize == schema.ModularizeNone {
				continue
			}
			for _, row := range t.Rows {
				s, ok := row.Values[i].(string)
				if !ok || s == "" {
					continue
				}
				if v := m.Value(col.Modularize, s); v != s {
					row.Values[i] = v
					changed++
				}
			}
		}
	}
	return changed
}

// Value rewrites one column value according to its modularization kind.
func (m *Modularization) Value(kind schema.ModularizeType, v string) string {
	switch kind {
	case schema.ModularizeColumn:
		return m.Identifier(v)
	case schema.ModularizeProperty:
		if schema.IsPublicProperty(v) {
			return v
		}
		return m.Identifier(v)
	case schema.ModularizeCondition:
		return m.Formatted(v)
	case schema.ModularizeIcon:
		return m.Icon(v)
	case schema.ModularizeCompanionFile:
		if facade.IsVersion(v) {
			return v
		}
		return m.Identifier(v)
	case schema.ModularizeSemicolon:
		parts := strings.Split(v, ";")
		for i, p := range parts {
			parts[i] = m.Identifier(p)
		}
		return strings.Join(parts, ";")
	default:
		return v
	}
}

// Identifier appends the token unless v is empty, suppressed or already
// modularized.
func (m *Modularization) Identifier(v string) string {
	if v == "" || m.Suppressed[v] || strings.HasSuffix(v, m.Token) {
		return v
	}
	return v + m.Token
}

// Icon inserts the token before the extension: "app.ico" -> "app<token>.ico".
func (m *Modularization) Icon(v string) string {
	if v == "" || m.Suppressed[v] || strings.Contains(v, m.Token) {
		return v
	}
	ext := path.Ext(v)
	return strings.TrimSuffix(v, ext) + m.Token + ext
}

// formattedRef matches [Name], [#File], [!File] and [$Component]. Special
// forms such as [~], [\x], [%ENV] and [1] are not matched.
var formattedRef = regexp.MustCompile(`\[([#!$]?)([A-Za-z_][A-Za-z0-9_.]*)\]`)

// Formatted rewrites the references of a formatted string or condition.
// Public properties keep their names.
func (m *Modularization) Formatted(v string) string {
	return formattedRef.ReplaceAllStringFunc(v, func(ref string) string {
		parts := formattedRef.FindStringSubmatch(ref)
		prefix, name := parts[1], parts[2]
		if prefix == "" && schema.IsPublicProperty(name) {
			return ref
		}
		return "[" + prefix + m.Identifier(name) + "]"
	})
}

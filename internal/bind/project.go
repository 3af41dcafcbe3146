package bind

import (
	"context"
	"strconv"
	"strings"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/extension"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
	"github.com/specialistvlad/pkgbind/internal/schema"
)

// OutputProjector translates the records into output tables.
type OutputProjector struct{ stageInfo }

func NewOutputProjector() *OutputProjector {
	return &OutputProjector{stageInfo{
		name:   "output-projector",
		access: Access{Reads: []Slot{SlotIntermediate, SlotSummary}, Writes: []Slot{SlotOutput}},
	}}
}

func (s *OutputProjector) Run(ctx context.Context, st *State) diag.Diagnostics {
	out, ds := Project(st.Section, st.Definitions, st.Extensions)
	st.Output = out
	ctxlog.FromContext(ctx).Debug("Projected output.", "tables", len(out.Tables()))
	return ds
}

// Project builds the output model of sec. Record types without a table
// definition go to the first extension translator that accepts them.
func Project(sec *ir.Section, defs *schema.Definitions, ext *extension.Registry) (*output.Output, diag.Diagnostics) {
	var ds diag.Diagnostics
	out := output.New(outputType(sec.Type), sec.Codepage)

	for _, rec := range sec.Records {
		def, ok := defs.Get(rec.Type)
		if !ok {
			t, ok := ext.Translator(rec.Type)
			if !ok {
				ds.Errorf(diag.CodeNoTranslator, rec.Source, "no table or extension can project %s records", rec.Type)
				continue
			}
			if err := t.TranslateRecord(rec, out); err != nil {
				ds.Errorf(diag.CodeInvalidColumnValue, rec.Source, "%s %s: %v", rec.Type, rec.ID, err)
			}
			continue
		}
		ds = append(ds, projectRecord(out.EnsureTable(def), rec)...)
	}
	return out, ds
}

// projectRecord appends one row. The first primary key column defaults to
// the record id. Missing number columns become 0 so later stages can fill
// them in; other missing required columns are errors.
func projectRecord(t *output.Table, rec *ir.Record) diag.Diagnostics {
	var ds diag.Diagnostics
	row := t.NewRow(rec.Source)

	for i, col := range t.Definition.Columns {
		v, present := rec.Fields[col.Name]
		if !present && i == 0 && col.PrimaryKey {
			v, present = rec.ID, true
		}
		if !present || v == "" {
			switch {
			case col.Nullable:
				row.Values[i] = nil
			case col.Type == schema.ColumnNumber:
				row.Values[i] = 0
			default:
				ds.Errorf(diag.CodeInvalidColumnValue, rec.Source, "%s %s: column %s is required", rec.Type, rec.ID, col.Name)
			}
			continue
		}

		if col.Type == schema.ColumnNumber {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				ds.Errorf(diag.CodeInvalidColumnValue, rec.Source, "%s %s: column %s expects a number, got %q", rec.Type, rec.ID, col.Name, v)
				continue
			}
			row.Values[i] = n
			continue
		}
		row.Values[i] = v
	}
	return ds
}

func outputType(t ir.SectionType) output.Type {
	switch t {
	case ir.SectionModule:
		return output.TypeModule
	case ir.SectionPatch:
		return output.TypePatch
	default:
		return output.TypeProduct
	}
}

package bind

import (
	"context"
	"strconv"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// ActionSequencer places WixAction records into their sequence tables.
// Actions carry either an absolute Sequence or a Before/After reference to
// another action of the same table.
type ActionSequencer struct{ stageInfo }

func NewActionSequencer() *ActionSequencer {
	return &ActionSequencer{stageInfo{
		name:   "action-sequencer",
		access: Access{Reads: []Slot{SlotIntermediate}, Writes: []Slot{SlotIntermediate}},
	}}
}

type pendingAction struct {
	rec      *ir.Record
	table    string
	action   string
	sequence int
	resolved bool
}

// relative reports whether the sequence came from a Before/After reference.
func (a *pendingAction) relative() bool {
	return a.rec.Get("Sequence") == ""
}

func (s *ActionSequencer) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	var actions []*pendingAction
	byKey := map[string]*pendingAction{}

	for _, rec := range st.Section.OfType("WixAction") {
		a := &pendingAction{rec: rec, table: rec.Get("SequenceTable"), action: rec.Get("Action")}
		if a.action == "" {
			a.action = rec.ID
		}
		seq, ok, err := rec.Int("Sequence")
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "%v", err)
			continue
		}
		if ok {
			a.sequence, a.resolved = seq, true
		} else if rec.Get("Before") == "" && rec.Get("After") == "" {
			ds.Errorf(diag.CodeUnresolvedAction, rec.Source, "action %s/%s has neither a sequence nor a Before/After reference", a.table, a.action)
			continue
		}
		actions = append(actions, a)
		byKey[a.table+"/"+a.action] = a
	}

	// Resolve relative actions until nothing changes; whatever is left
	// references a missing action or a cycle.
	for progress := true; progress; {
		progress = false
		for _, a := range actions {
			if a.resolved {
				continue
			}
			if after := byKey[a.table+"/"+a.rec.Get("After")]; after != nil && after.resolved {
				a.sequence, a.resolved = after.sequence+1, true
				progress = true
			} else if before := byKey[a.table+"/"+a.rec.Get("Before")]; before != nil && before.resolved {
				a.sequence, a.resolved = before.sequence-1, true
				progress = true
			}
		}
	}

	placed := 0
	taken := map[string]*pendingAction{}
	for _, a := range actions {
		if !a.resolved {
			ds.Errorf(diag.CodeUnresolvedAction, a.rec.Source, "action %s/%s references a missing action or forms a cycle", a.table, a.action)
			continue
		}
		if a.sequence < 1 {
			ds.Errorf(diag.CodeUnresolvedAction, a.rec.Source, "action %s/%s would get sequence %d", a.table, a.action, a.sequence)
			continue
		}
		slot := a.table + "/" + strconv.Itoa(a.sequence)
		if other := taken[slot]; other != nil && (a.relative() || other.relative()) {
			ds.Warnf(diag.CodeActionCollision, a.rec.Source, "actions %s and %s both get sequence %d in %s",
				other.action, a.action, a.sequence, a.table)
		} else if other == nil {
			taken[slot] = a
		}
		if st.Section.Find(a.table, a.action) != nil {
			continue
		}
		st.Section.Add(&ir.Record{
			Type:   a.table,
			ID:     a.action,
			Source: a.rec.Source,
			Fields: map[string]string{
				"Action":    a.action,
				"Condition": a.rec.Get("Condition"),
				"Sequence":  strconv.Itoa(a.sequence),
			},
		})
		placed++
	}
	ctxlog.FromContext(ctx).Debug("Sequenced actions.", "placed", placed)
	return ds
}

package bind

import (
	"context"
	"io"
	"testing"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/testutil"
)

func testContext() context.Context {
	return testutil.Context(io.Discard)
}

// newTestState builds a state over a single section on fs.
func newTestState(t *testing.T, fs billy.Filesystem, sec *ir.Section, opts Options) *State {
	t.Helper()
	if fs == nil {
		fs = memfs.New()
	}
	opts.FS = fs
	st, err := NewState(&ir.Intermediate{ID: "test", Sections: []*ir.Section{sec}}, opts)
	require.NoError(t, err)
	return st
}

// runStages runs stages in order on st, stopping at the first error like
// the orchestrator does. Slot checks are skipped: tests seed the state the
// stages read.
func runStages(t *testing.T, st *State, stages ...Stage) *Result {
	t.Helper()
	o := &Orchestrator{stages: stages}
	return o.Run(testContext(), st)
}

func section(t ir.SectionType, recs ...*ir.Record) *ir.Section {
	return &ir.Section{ID: "main", Type: t, Codepage: 1252, Records: recs}
}

func newRec(recordType, id string, fields ...string) *ir.Record {
	r := ir.NewRecord(recordType, id, fields...)
	r.Source = "test.hcl:" + recordType + ":" + id
	return r
}

package bind

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/specialistvlad/pkgbind/internal/ctxlog"
	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
	"github.com/specialistvlad/pkgbind/internal/output"
)

// Slot names one part of the State.
type Slot string

const (
	SlotIntermediate Slot = "intermediate"
	SlotSummary      Slot = "summary"
	SlotVariables    Slot = "variables"
	SlotFacades      Slot = "facades"
	SlotMergeModules Slot = "merge_modules"
	SlotMedia        Slot = "media"
	SlotOutput       Slot = "output"
	SlotDatabase     Slot = "database"
	SlotTransfers    Slot = "transfers"
	SlotContentPaths Slot = "content_paths"
)

// inputSlots are populated by NewState.
var inputSlots = []Slot{SlotIntermediate}

// Access declares the parts of the State a stage reads and writes.
type Access struct {
	Reads  []Slot
	Writes []Slot
}

// Stage is one step of the bind.
type Stage interface {
	Name() string
	Access() Access
	// Applies reports whether the stage runs for this bind at all.
	Applies(st *State) bool
	// Run performs the stage. Errors are reported as diagnostics; the stage
	// should report every problem it finds rather than stop at the first.
	Run(ctx context.Context, st *State) diag.Diagnostics
}

// Result is the outcome of a bind.
type Result struct {
	Succeeded bool
	// FailedStage names the stage after which the bind stopped.
	FailedStage      string
	FileTransfers    []FileTransfer
	ContentFilePaths []string
	SnapshotPath     string
	Output           *output.Output
	Diagnostics      diag.Diagnostics
}

// Orchestrator runs stages in order and stops at the first stage boundary
// after an error.
type Orchestrator struct {
	stages []Stage
}

// New validates the stage order and returns an orchestrator for it.
func New(stages ...Stage) (*Orchestrator, error) {
	available := make(map[Slot]bool)
	for _, s := range inputSlots {
		available[s] = true
	}
	names := make(map[string]bool)

	for _, stage := range stages {
		if names[stage.Name()] {
			return nil, fmt.Errorf("stage %q is listed twice", stage.Name())
		}
		names[stage.Name()] = true

		access := stage.Access()
		for _, r := range access.Reads {
			if !available[r] {
				return nil, fmt.Errorf("stage %q reads %s before any earlier stage writes it", stage.Name(), r)
			}
		}
		for _, w := range access.Writes {
			available[w] = true
		}
	}
	return &Orchestrator{stages: stages}, nil
}

// Stages returns the stage names in run order.
func (o *Orchestrator) Stages() []string {
	names := make([]string, len(o.stages))
	for i, s := range o.stages {
		names[i] = s.Name()
	}
	return names
}

// Run binds st. The returned result is never nil; callers must check
// Succeeded before trusting any artifact left on disk.
func (o *Orchestrator) Run(ctx context.Context, st *State) *Result {
	logger := ctxlog.FromContext(ctx)
	logger.Info("🚀 Starting bind.", "stages", len(o.stages), "section", st.Section.ID, "type", st.Section.Type)

	for i, stage := range o.stages {
		stageLogger := logger.With("stage", stage.Name())
		if !stage.Applies(st) {
			stageLogger.Debug("Stage does not apply, skipping.")
			continue
		}

		stageLogger.Debug("▶️ Running stage.", "step", i+1)
		ds := stage.Run(ctxlog.WithLogger(ctx, stageLogger), st)
		st.Sink.Append(ds...)
		logDiagnostics(stageLogger, ds)

		if st.Sink.HasErrors() {
			stageLogger.Error("❌ Bind failed.", "errors", st.Sink.All().Count(diag.Error))
			return st.result(false, stage.Name())
		}
	}

	res := st.result(true, "")
	if st.OutputPath != "" {
		res.SnapshotPath = ir.SnapshotPath(st.OutputPath)
		if err := ir.Save(st.FS, res.SnapshotPath, st.Intermediate); err != nil {
			var ds diag.Diagnostics
			ds.Errorf(diag.CodeIO, "", "failed to save bound intermediate: %v", err)
			st.Sink.Append(ds...)
			logDiagnostics(logger, ds)
			return st.result(false, "snapshot")
		}
	}
	logger.Info("✅ Bind finished.", "transfers", len(res.FileTransfers), "warnings", res.Diagnostics.Count(diag.Warning))
	return res
}

func (s *State) result(ok bool, failed string) *Result {
	return &Result{
		Succeeded:        ok,
		FailedStage:      failed,
		FileTransfers:    append([]FileTransfer(nil), s.Transfers...),
		ContentFilePaths: append([]string(nil), s.ContentPaths...),
		Output:           s.Output,
		Diagnostics:      s.Sink.All(),
	}
}

func logDiagnostics(logger *slog.Logger, ds diag.Diagnostics) {
	for _, d := range ds {
		args := []any{"code", d.Code}
		if d.Source != "" {
			args = append(args, "source", d.Source)
		}
		switch d.Severity {
		case diag.Error:
			logger.Error(d.Message, args...)
		case diag.Warning:
			logger.Warn(d.Message, args...)
		default:
			logger.Debug(d.Message, args...)
		}
	}
}

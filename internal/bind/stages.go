package bind

import "github.com/specialistvlad/pkgbind/internal/ir"

// stageInfo carries the name and access declaration shared by every stage.
type stageInfo struct {
	name   string
	access Access
}

func (s stageInfo) Name() string   { return s.name }
func (s stageInfo) Access() Access { return s.access }

// Applies is the default: the stage always runs.
func (stageInfo) Applies(*State) bool { return true }

// DefaultStages returns the full bind pipeline in dependency order.
func DefaultStages() []Stage {
	return []Stage{
		NewSummaryInfoExtractor(),
		NewPropertyResolver(),
		NewActionSequencer(),
		NewSpecialPropertySynthesizer(),
		NewFileFacadeCollector(),
		NewEmbeddedFileExtractor(),
		NewFileMetadataUpdater(),
		NewDelayedFieldResolver(),
		NewComponentGuidGenerator(),
		NewMergeModuleFileExtractor(),
		NewMediaAssigner(),
		NewOutputProjector(),
		NewMediaSequenceSynchronizer(),
		NewModularizer(),
		NewDeltaPatchGenerator(),
		NewCabinetBuilder(),
		NewComponentGuidValidator(),
		NewDatabaseGenerator(),
		NewMergeModuleMerger(),
		NewUncompressedFileLayoutProcessor(),
	}
}

// NewDefault returns an orchestrator running DefaultStages.
func NewDefault() *Orchestrator {
	o, err := New(DefaultStages()...)
	if err != nil {
		panic("bind: default stage order is invalid: " + err.Error())
	}
	return o
}

func isProduct(st *State) bool { return st.Section.Type == ir.SectionProduct }

package bind

import (
	"context"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/specialistvlad/pkgbind/internal/diag"
	"github.com/specialistvlad/pkgbind/internal/ir"
)

// Summary information property ids.
const (
	pidCodepage        = 1
	pidPackageCode     = 9
	pidInstallerVer    = 14
	pidWordCount       = 15
	pidApplicationName = 18
)

const (
	wordCountShortNames = 1
	wordCountCompressed = 2

	defaultInstallerVersion = 200
	summaryRecord           = "_SummaryInformation"
	applicationName         = "pkgbind"
)

// SummaryInfoExtractor reads the package-level flags.
type SummaryInfoExtractor struct{ stageInfo }

func NewSummaryInfoExtractor() *SummaryInfoExtractor {
	return &SummaryInfoExtractor{stageInfo{
		name:   "summary-info-extractor",
		access: Access{Reads: []Slot{SlotIntermediate}, Writes: []Slot{SlotSummary, SlotIntermediate}},
	}}
}

func (s *SummaryInfoExtractor) Run(ctx context.Context, st *State) diag.Diagnostics {
	var ds diag.Diagnostics
	sum := Summary{LongNames: true, InstallerVersion: defaultInstallerVersion}

	if rec := summaryProperty(st.Section, pidWordCount); rec != nil {
		wc, _, err := rec.Int("Value")
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "word count: %v", err)
		}
		sum.LongNames = wc&wordCountShortNames == 0
		sum.Compressed = wc&wordCountCompressed != 0
	}
	if st.IsModule() {
		sum.Compressed = true
	}

	if rec := summaryProperty(st.Section, pidInstallerVer); rec != nil {
		v, ok, err := rec.Int("Value")
		if err != nil {
			ds.Errorf(diag.CodeInvalidInput, rec.Source, "installer version: %v", err)
		} else if ok {
			sum.InstallerVersion = v
		}
	}

	rec := summaryProperty(st.Section, pidPackageCode)
	if rec == nil {
		rec = ir.NewRecord(summaryRecord, strconv.Itoa(pidPackageCode))
		st.Section.Add(rec)
	}
	if code := rec.Get("Value"); code == "" || code == ir.Placeholder {
		rec.Set("Value", NewGuid())
	}
	sum.PackageCode = rec.Get("Value")
	sum.ModularizationGuid = sum.PackageCode

	if summaryProperty(st.Section, pidCodepage) == nil && st.Section.Codepage != 0 {
		st.Section.Add(ir.NewRecord(summaryRecord, strconv.Itoa(pidCodepage), "Value", strconv.Itoa(st.Section.Codepage)))
	}
	if summaryProperty(st.Section, pidApplicationName) == nil {
		st.Section.Add(ir.NewRecord(summaryRecord, strconv.Itoa(pidApplicationName), "Value", applicationName))
	}

	st.Summary = sum
	return ds
}

func summaryProperty(sec *ir.Section, pid int) *ir.Record {
	return sec.Find(summaryRecord, strconv.Itoa(pid))
}

// NewGuid returns a random GUID in registry format.
func NewGuid() string {
	return formatGuid(uuid.New())
}

func formatGuid(id uuid.UUID) string {
	return "{" + strings.ToUpper(id.String()) + "}"
}

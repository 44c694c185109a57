package anonymize

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/remindsafe/internal/destruction"
)

// Phase numbering and names are fixed; certificates reference them verbatim.
const (
	PhaseValidation     = 1
	PhaseInventory      = 2
	PhaseKeyDestruction = 3
	PhaseContentPurge   = 4
	PhaseAccountScrub   = 5
	PhaseSyncInvalidate = 6
	PhaseFinalAudit     = 7

	TotalPhases = 7
)

var phaseNames = map[int]string{
	PhaseValidation:     "PRE-ANONYMIZATION VALIDATION",
	PhaseInventory:      "CONTENT INVENTORY",
	PhaseKeyDestruction: "KEY DESTRUCTION",
	PhaseContentPurge:   "CONTENT PURGE",
	PhaseAccountScrub:   "ACCOUNT ANONYMIZATION",
	PhaseSyncInvalidate: "SYNC INVALIDATION",
	PhaseFinalAudit:     "FINAL AUDIT",
}

// PhaseName returns the fixed display name for a phase number.
func PhaseName(phase int) string { return phaseNames[phase] }

type PhaseStatus string

const (
	PhaseCompleted PhaseStatus = "completed"
	PhaseFailed    PhaseStatus = "failed"
	PhaseSkipped   PhaseStatus = "skipped"
)

// PhaseResult records one phase's outcome.
type PhaseResult struct {
	Phase  int         `json:"phase"`
	Name   string      `json:"name"`
	Status PhaseStatus `json:"status"`
	Detail string      `json:"detail,omitempty"`
	Errors []string    `json:"errors,omitempty"`
}

// Report is the full anonymization record. Its JSON form, with ProofHash
// blanked, is the input to the certificate proof hash.
type Report struct {
	UserID     string    `json:"user_id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`

	Phases []PhaseResult `json:"phases"`

	ContentCounts  map[string]int64    `json:"content_counts,omitempty"`
	PurgedCounts   map[string]int64    `json:"purged_counts,omitempty"`
	ClearedCounts  map[string]int64    `json:"cleared_counts,omitempty"`
	KeyDestruction *destruction.Report `json:"key_destruction,omitempty"`

	PointOfNoReturnReached bool `json:"point_of_no_return_reached"`
	Aborted                bool `json:"aborted"`
	Success                bool `json:"success"`

	ProofHash string `json:"proof_hash,omitempty"`
}

func (r *Report) addPhase(phase int, status PhaseStatus, detail string, errs ...error) *PhaseResult {
	pr := PhaseResult{Phase: phase, Name: PhaseName(phase), Status: status, Detail: detail}
	for _, err := range errs {
		if err != nil {
			pr.Errors = append(pr.Errors, err.Error())
		}
	}
	r.Phases = append(r.Phases, pr)
	return &r.Phases[len(r.Phases)-1]
}

func (r *Report) phaseFailed() bool {
	for _, p := range r.Phases {
		if p.Status == PhaseFailed {
			return true
		}
	}
	return false
}

// Progress is emitted after every phase.
type Progress struct {
	CurrentPhase           int
	TotalPhases            int
	Fraction               float64
	PointOfNoReturnReached bool
}

// ProgressFunc receives phase-granular progress. May be nil.
type ProgressFunc func(p Progress)

func progressFor(phase int, ponr bool) Progress {
	return Progress{
		CurrentPhase:           phase,
		TotalPhases:            TotalPhases,
		Fraction:               float64(phase) / float64(TotalPhases),
		PointOfNoReturnReached: ponr,
	}
}

func countsSummary(counts map[string]int64) string {
	var total int64
	for _, n := range counts {
		total += n
	}
	return fmt.Sprintf("%d rows across %d tables", total, len(counts))
}

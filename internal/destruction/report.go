package destruction

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Report records one destruction run: which key slots existed before, what
// was destroyed, what is still present after verification, and every error
// hit along the way. Slots are named "<location>/<key name>". ExistedBefore
// is populated only when the caller asked for the pre-destruction snapshot
// (PreChecked); ExistsAfter is always populated.
type Report struct {
	UserID     string
	StartedAt  time.Time
	FinishedAt time.Time

	ExistedBefore map[string]bool
	Destroyed     map[string]bool
	ExistsAfter   map[string]bool

	Errors     []string
	PreChecked bool
	Verified   bool
	Success    bool
}

func newReport(userID string, start time.Time) *Report {
	return &Report{
		UserID:        userID,
		StartedAt:     start,
		ExistedBefore: make(map[string]bool),
		Destroyed:     make(map[string]bool),
		ExistsAfter:   make(map[string]bool),
	}
}

func (r *Report) addError(format string, args ...any) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Report) slots() []string {
	seen := make(map[string]bool)
	for _, m := range []map[string]bool{r.ExistedBefore, r.Destroyed, r.ExistsAfter} {
		for slot := range m {
			seen[slot] = true
		}
	}
	out := make([]string, 0, len(seen))
	for slot := range seen {
		out = append(out, slot)
	}
	sort.Strings(out)
	return out
}

// Render formats the report as the KEY DESTRUCTION section embedded in
// anonymization certificates.
func (r *Report) Render() string {
	var b strings.Builder
	b.WriteString("KEY DESTRUCTION\n")
	fmt.Fprintf(&b, "  User: %s\n", r.UserID)
	fmt.Fprintf(&b, "  Started: %s\n", r.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "  Finished: %s\n", r.FinishedAt.UTC().Format(time.RFC3339))
	for _, slot := range r.slots() {
		switch {
		case r.ExistsAfter[slot]:
			fmt.Fprintf(&b, "  %s: STILL PRESENT\n", slot)
		case r.PreChecked && !r.ExistedBefore[slot]:
			fmt.Fprintf(&b, "  %s: absent\n", slot)
		default:
			fmt.Fprintf(&b, "  %s: destroyed\n", slot)
		}
	}
	for _, e := range r.Errors {
		fmt.Fprintf(&b, "  ERROR: %s\n", e)
	}
	fmt.Fprintf(&b, "  Verified: %t\n", r.Verified)
	fmt.Fprintf(&b, "  Success: %t\n", r.Success)
	return b.String()
}

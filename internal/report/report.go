package report

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/dataguardian/dataguardian/internal/detect"
	"github.com/dataguardian/dataguardian/internal/risk"
)

// Finding is one scanned value plus every detector match against it. The
// masked value is the safe-to-display form; match raw text is masked at
// report construction as well, so a serialized report never carries the full
// original value.
type Finding struct {
	Location    string         `json:"location"`
	MaskedValue string         `json:"masked_value"`
	Matches     []detect.Match `json:"matches"`
}

// MatchTypes returns the distinct match types of the finding, sorted.
func (f Finding) MatchTypes() []string {
	set := make(map[string]struct{}, len(f.Matches))
	for _, m := range f.Matches {
		set[m.Type] = struct{}{}
	}
	types := make([]string, 0, len(set))
	for t := range set {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// Report is the immutable record of a completed scan: create once, read
// many, never mutated after construction.
type Report struct {
	ID        string         `json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	Target    string         `json:"target"`
	Summary   risk.Summary   `json:"summary"`
	Findings  []Finding      `json:"findings"`
	Meta      map[string]any `json:"meta"`
}

// New assembles a report with a fresh ID and timestamp.
func New(target string, summary risk.Summary, findings []Finding, meta map[string]any) *Report {
	if findings == nil {
		findings = []Finding{}
	}
	if meta == nil {
		meta = map[string]any{}
	}
	return &Report{
		ID:        uuid.NewString(),
		CreatedAt: time.Now().UTC(),
		Target:    target,
		Summary:   summary,
		Findings:  findings,
		Meta:      meta,
	}
}

// JSON serializes the report to its stable structured form.
func (r *Report) JSON() ([]byte, error) {
	return json.MarshalIndent(r, "", "  ")
}

package detect

// Match is a single detector hit: the detector that produced it, the entity
// type it was tagged with, and the matched text. Immutable once created.
type Match struct {
	Detector string `json:"detector"`
	Type     string `json:"type"`
	Raw      string `json:"raw"`
}

// Detector is anything that can produce Matches from a piece of text.
// Implementations must be safe for reuse across sequential scans and must not
// mutate internal state per call.
type Detector interface {
	Name() string
	Detect(text string) []Match
}

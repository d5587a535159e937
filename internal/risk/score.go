package risk

import (
	"strings"

	"github.com/dataguardian/dataguardian/internal/detect"
)

// Level is an ordered severity classification for a scan.
type Level string

const (
	LevelLow      Level = "LOW"
	LevelMedium   Level = "MEDIUM"
	LevelHigh     Level = "HIGH"
	LevelCritical Level = "CRITICAL"
)

// Rank orders levels so callers can compare severities.
func (l Level) Rank() int {
	switch l {
	case LevelCritical:
		return 3
	case LevelHigh:
		return 2
	case LevelMedium:
		return 1
	default:
		return 0
	}
}

// ParseLevel maps a user-supplied string to a Level, defaulting to LOW.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelCritical):
		return LevelCritical
	case string(LevelHigh):
		return LevelHigh
	case string(LevelMedium):
		return LevelMedium
	default:
		return LevelLow
	}
}

// Summary is the aggregate risk for one scan. Derived from matches, never
// persisted on its own.
type Summary struct {
	Score        int            `json:"score"`
	Level        Level          `json:"level"`
	CountsByType map[string]int `json:"counts_by_type"`
}

// typeWeights assigns a severity weight per normalized match type. Types not
// listed fall back to defaultWeight.
var typeWeights = map[string]int{
	// High: account takeover or direct identity exposure.
	"CREDIT_CARD":        10,
	"CREDIT_CARD_NUMBER": 10,
	"CPF":                9,
	"CNPJ":               9,
	"PASSWORD":           9,
	"API_KEY":            9,
	"TOKEN":              9,
	// Medium: contact and network identifiers.
	"EMAIL":      6,
	"IBAN":       6,
	"IP_ADDRESS": 5,
	"PHONE":      5,
}

const defaultWeight = 3

// NormalizeType canonicalizes a match type before tallying.
func NormalizeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// Score aggregates matches into a deterministic risk summary. It is pure and
// total: the same match multiset always yields the same summary, and empty
// input yields score 0 at LOW.
func Score(matches []detect.Match) Summary {
	counts := make(map[string]int)
	score := 0
	for _, m := range matches {
		t := NormalizeType(m.Type)
		counts[t]++
		if w, ok := typeWeights[t]; ok {
			score += w
		} else {
			score += defaultWeight
		}
	}

	// Volume bonus: systemic exposure outweighs isolated hits.
	total := len(matches)
	switch {
	case total >= 50:
		score += 30
	case total >= 10:
		score += 10
	}

	return Summary{
		Score:        score,
		Level:        levelFor(score),
		CountsByType: counts,
	}
}

func levelFor(score int) Level {
	switch {
	case score >= 60:
		return LevelCritical
	case score >= 25:
		return LevelHigh
	case score >= 10:
		return LevelMedium
	default:
		return LevelLow
	}
}

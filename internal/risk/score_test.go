package risk

import (
	"testing"

	"github.com/dataguardian/dataguardian/internal/detect"
)

func match(typ string) detect.Match {
	return detect.Match{Detector: "regex", Type: typ, Raw: "x"}
}

func TestScore(t *testing.T) {
	t.Run("EmptyInput", func(t *testing.T) {
		s := Score(nil)
		if s.Score != 0 || s.Level != LevelLow {
			t.Fatalf("expected 0/LOW, got %d/%s", s.Score, s.Level)
		}
		if s.CountsByType == nil || len(s.CountsByType) != 0 {
			t.Fatalf("expected empty non-nil counts, got %v", s.CountsByType)
		}
	})

	t.Run("TypeNormalization", func(t *testing.T) {
		s := Score([]detect.Match{match("email"), match(" Email "), match("EMAIL")})
		if s.CountsByType["EMAIL"] != 3 {
			t.Fatalf("expected 3 EMAIL, got %v", s.CountsByType)
		}
		if len(s.CountsByType) != 1 {
			t.Fatalf("expected a single normalized type, got %v", s.CountsByType)
		}
	})

	t.Run("Weights", func(t *testing.T) {
		s := Score([]detect.Match{match("CPF")})
		if s.Score != 9 {
			t.Errorf("CPF weight: expected 9, got %d", s.Score)
		}
		s = Score([]detect.Match{match("SOMETHING_NEW")})
		if s.Score != 3 {
			t.Errorf("unknown type baseline: expected 3, got %d", s.Score)
		}
	})

	t.Run("Thresholds", func(t *testing.T) {
		cases := []struct {
			matches []detect.Match
			level   Level
		}{
			{[]detect.Match{match("UNKNOWN")}, LevelLow},                               // 3
			{[]detect.Match{match("CREDIT_CARD")}, LevelMedium},                        // 10
			{[]detect.Match{match("CREDIT_CARD"), match("CREDIT_CARD")}, LevelMedium},  // 20
			{[]detect.Match{match("CPF"), match("CREDIT_CARD")}, LevelMedium},          // 19
			{[]detect.Match{match("CPF"), match("CPF"), match("CPF")}, LevelHigh},      // 27
		}
		for i, c := range cases {
			if got := Score(c.matches).Level; got != c.level {
				t.Errorf("case %d: expected %s, got %s", i, c.level, got)
			}
		}
	})

	t.Run("VolumeBonus", func(t *testing.T) {
		nine := make([]detect.Match, 9)
		for i := range nine {
			nine[i] = match("UNKNOWN")
		}
		if got := Score(nine).Score; got != 27 {
			t.Errorf("below volume threshold: expected 27, got %d", got)
		}

		ten := append(nine, match("UNKNOWN"))
		if got := Score(ten).Score; got != 40 {
			t.Errorf("ten matches: expected 30+10=40, got %d", got)
		}

		fifty := make([]detect.Match, 50)
		for i := range fifty {
			fifty[i] = match("UNKNOWN")
		}
		if got := Score(fifty).Score; got != 180 {
			t.Errorf("fifty matches: expected 150+30=180, got %d", got)
		}
	})

	t.Run("Monotonicity", func(t *testing.T) {
		base := []detect.Match{match("EMAIL"), match("CPF"), match("UNKNOWN")}
		prev := Score(base).Score
		for _, typ := range []string{"EMAIL", "CREDIT_CARD", "WHATEVER", "PHONE", "TOKEN"} {
			base = append(base, match(typ))
			cur := Score(base).Score
			if cur < prev {
				t.Fatalf("score decreased from %d to %d after adding %s", prev, cur, typ)
			}
			prev = cur
		}
	})

	t.Run("StrictlyPositiveCounts", func(t *testing.T) {
		s := Score([]detect.Match{match("EMAIL"), match("CPF")})
		for typ, n := range s.CountsByType {
			if n <= 0 {
				t.Errorf("count for %s must be positive, got %d", typ, n)
			}
		}
	})
}

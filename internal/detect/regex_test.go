package detect

import (
	"reflect"
	"testing"

	"go.uber.org/zap"
)

func TestRegexDetector(t *testing.T) {
	logger := zap.NewNop()

	t.Run("EmptyInput", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{"EMAIL": `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`}, logger)
		if got := d.Detect(""); got != nil {
			t.Errorf("expected nil for empty input, got %v", got)
		}
	})

	t.Run("InvalidPatternSkipped", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{
			"BROKEN": `([unclosed`,
			"EMAIL":  `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		}, logger)
		if d.PatternCount() != 1 {
			t.Fatalf("expected 1 usable pattern, got %d", d.PatternCount())
		}
		matches := d.Detect("reach me at someone@example.com")
		if len(matches) != 1 || matches[0].Type != "EMAIL" {
			t.Fatalf("unexpected matches: %v", matches)
		}
	})

	t.Run("AllPatternsInvalid", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{"BROKEN": `([`}, logger)
		if got := d.Detect("someone@example.com"); got != nil {
			t.Errorf("detector with zero patterns should return nothing, got %v", got)
		}
	})

	t.Run("CPFCheckDigitFilter", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{
			"CPF": `\b\d{3}\.?\d{3}\.?\d{3}-?\d{2}\b`,
		}, logger)

		matches := d.Detect("valid: 529.982.247-25 invalid: 529.982.247-26")
		if len(matches) != 1 {
			t.Fatalf("expected exactly the valid CPF, got %v", matches)
		}
		if matches[0].Raw != "529.982.247-25" {
			t.Errorf("unexpected raw value: %q", matches[0].Raw)
		}
		if matches[0].Detector != "regex" {
			t.Errorf("unexpected detector name: %q", matches[0].Detector)
		}
	})

	t.Run("DeduplicatesPreservingOrder", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{
			"EMAIL": `[a-z0-9._%+-]+@[a-z0-9.-]+\.[a-z]{2,}`,
		}, logger)

		matches := d.Detect("b@x.com a@x.com b@x.com a@x.com")
		var raws []string
		for _, m := range matches {
			raws = append(raws, m.Raw)
		}
		if !reflect.DeepEqual(raws, []string{"b@x.com", "a@x.com"}) {
			t.Errorf("unexpected order or duplicates: %v", raws)
		}
	})

	t.Run("CaseInsensitive", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{
			"PASSWORD": `(?:password|senha)\s*[:=]\s*\S+`,
		}, logger)
		if got := d.Detect("PASSWORD: hunter2"); len(got) != 1 {
			t.Errorf("expected case-insensitive match, got %v", got)
		}
	})

	t.Run("SubmatchGroupsFlattened", func(t *testing.T) {
		d := NewRegexDetector(map[string]string{
			"PAIR": `(\d{2})-(\d{2})`,
		}, logger)
		matches := d.Detect("code 12-34 here")
		if len(matches) != 1 || matches[0].Raw != "1234" {
			t.Fatalf("expected concatenated groups, got %v", matches)
		}
	})
}

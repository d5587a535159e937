package detect

import (
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// RegexDetector matches text against a set of named, case-insensitive
// patterns. Patterns are compiled once at construction; a pattern that fails
// to compile is dropped so a partially broken set still produces results.
type RegexDetector struct {
	types    []string
	compiled map[string]*regexp.Regexp
	logger   *zap.Logger
}

// NewRegexDetector compiles the given type-name -> pattern mapping.
func NewRegexDetector(patterns map[string]string, logger *zap.Logger) *RegexDetector {
	d := &RegexDetector{
		compiled: make(map[string]*regexp.Regexp, len(patterns)),
		logger:   logger,
	}

	for typ, src := range patterns {
		re, err := regexp.Compile("(?i)" + src)
		if err != nil {
			logger.Warn("Skipping invalid detection pattern",
				zap.String("type", typ),
				zap.Error(err),
			)
			continue
		}
		d.compiled[typ] = re
		d.types = append(d.types, typ)
	}
	// Stable match order regardless of map iteration.
	sort.Strings(d.types)

	logger.Info("Regex detector initialized",
		zap.Int("patterns", len(d.compiled)),
		zap.Int("dropped", len(patterns)-len(d.compiled)),
	)
	return d
}

// Name implements Detector.
func (d *RegexDetector) Name() string { return "regex" }

// PatternCount reports how many patterns survived compilation.
func (d *RegexDetector) PatternCount() int { return len(d.compiled) }

// Detect runs every compiled pattern over the text. Submatch groups are
// flattened by concatenation, CPF/CNPJ candidates must pass check-digit
// validation, and duplicates within a type are dropped keeping first-seen
// order.
func (d *RegexDetector) Detect(text string) []Match {
	if text == "" {
		return nil
	}

	var out []Match
	for _, typ := range d.types {
		re := d.compiled[typ]
		found := re.FindAllStringSubmatch(text, -1)
		if len(found) == 0 {
			continue
		}

		flat := make([]string, 0, len(found))
		for _, m := range found {
			if len(m) > 1 {
				flat = append(flat, strings.Join(m[1:], ""))
			} else {
				flat = append(flat, m[0])
			}
		}

		switch strings.ToUpper(typ) {
		case "CPF":
			flat = keep(flat, ValidateCPF)
		case "CNPJ":
			flat = keep(flat, ValidateCNPJ)
		}

		seen := make(map[string]struct{}, len(flat))
		for _, v := range flat {
			if _, dup := seen[v]; dup {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, Match{Detector: d.Name(), Type: typ, Raw: v})
		}
	}
	return out
}

func keep(values []string, valid func(string) bool) []string {
	out := values[:0]
	for _, v := range values {
		if valid(v) {
			out = append(out, v)
		}
	}
	return out
}

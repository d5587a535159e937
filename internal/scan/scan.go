package scan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/dataguardian/dataguardian/internal/detect"
	"github.com/dataguardian/dataguardian/internal/ingest"
	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/risk"
)

// ErrTargetNotFound is returned by Path when the target does not exist. It is
// the only error a path scan propagates; everything else degrades to an
// empty result.
var ErrTargetNotFound = errors.New("scan target does not exist")

// Limits bound the work one scan may perform. They are enforced before any
// detector is invoked, so a pathological column can never blow out scan time
// or memory.
type Limits struct {
	MaxRows            int
	MaxUniquePerColumn int
	MaxCharsPerCell    int
	MaskKeepLast       int
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxRows:            200,
		MaxUniquePerColumn: 200,
		MaxCharsPerCell:    20000,
		MaskKeepLast:       4,
	}
}

// Scanner fans scanned values out to a fixed detector set under resource
// bounds. Detectors are held for the duration of the scans only and are
// never mutated, so a Scanner is safe to reuse across sequential scans.
type Scanner struct {
	detectors []detect.Detector
	limits    Limits
	reader    *ingest.Reader
	logger    *zap.Logger
}

// New creates a scanner over the given detector set.
func New(detectors []detect.Detector, limits Limits, logger *zap.Logger) *Scanner {
	return &Scanner{
		detectors: detectors,
		limits:    limits,
		reader:    ingest.NewReader(logger),
		logger:    logger,
	}
}

// DetectorNames lists the active detectors, for report metadata.
func (s *Scanner) DetectorNames() []string {
	names := make([]string, len(s.detectors))
	for i, d := range s.detectors {
		names[i] = d.Name()
	}
	return names
}

// detectValue runs every active detector over one value.
func (s *Scanner) detectValue(text string) []detect.Match {
	var matches []detect.Match
	for _, d := range s.detectors {
		matches = append(matches, d.Detect(text)...)
	}
	return matches
}

// maskMatches copies matches with their raw text masked, so serialized
// reports never carry the full matched substring.
func (s *Scanner) maskMatches(matches []detect.Match) []detect.Match {
	masked := make([]detect.Match, len(matches))
	for i, m := range matches {
		m.Raw = Mask(m.Raw, s.limits.MaskKeepLast)
		masked[i] = m
	}
	return masked
}

// Text scans a single free-form value at logical location "text".
func (s *Scanner) Text(text, target string) *report.Report {
	if len(text) > s.limits.MaxCharsPerCell {
		text = text[:s.limits.MaxCharsPerCell]
	}

	matches := s.detectValue(text)
	var findings []report.Finding
	if len(matches) > 0 {
		findings = append(findings, report.Finding{
			Location:    "text",
			MaskedValue: Mask(text, s.limits.MaskKeepLast),
			Matches:     s.maskMatches(matches),
		})
	}

	s.logger.Debug("Text scan complete",
		zap.String("target", target),
		zap.Int("matches", len(matches)),
	)
	return report.New(target, risk.Score(matches), findings, map[string]any{
		"rows_scanned": 1,
		"detectors":    s.DetectorNames(),
	})
}

// Table scans a tabular structure column by column: distinct non-null values
// in encounter order, truncated per cell and capped per column and per table
// before any detector runs.
func (s *Scanner) Table(table ingest.Table, target string) *report.Report {
	maxRows := s.limits.MaxRows
	if len(table.Rows) < maxRows {
		maxRows = len(table.Rows)
	}

	var findings []report.Finding
	var allMatches []detect.Match

	for ci, column := range table.Columns {
		values := s.distinctColumnValues(table, ci, maxRows)
		for _, text := range values {
			matches := s.detectValue(text)
			if len(matches) == 0 {
				continue
			}
			allMatches = append(allMatches, matches...)
			findings = append(findings, report.Finding{
				Location:    fmt.Sprintf("column:%s", column),
				MaskedValue: Mask(text, s.limits.MaskKeepLast),
				Matches:     s.maskMatches(matches),
			})
		}
	}

	s.logger.Debug("Table scan complete",
		zap.String("target", target),
		zap.Int("rows_scanned", maxRows),
		zap.Int("findings", len(findings)),
	)
	return report.New(target, risk.Score(allMatches), findings, map[string]any{
		"rows_scanned": maxRows,
		"columns":      append([]string{}, table.Columns...),
		"detectors":    s.DetectorNames(),
	})
}

// distinctColumnValues applies the backpressure policy for one column: first
// maxRows rows, non-null cells only, truncated, de-duplicated in encounter
// order, capped at MaxUniquePerColumn.
func (s *Scanner) distinctColumnValues(table ingest.Table, col, maxRows int) []string {
	seen := make(map[string]struct{})
	var values []string
	for ri := 0; ri < maxRows; ri++ {
		row := table.Rows[ri]
		if col >= len(row) || row[col].IsNull() {
			continue
		}
		text := row[col].Text()
		if len(text) > s.limits.MaxCharsPerCell {
			text = text[:s.limits.MaxCharsPerCell]
		}
		if _, dup := seen[text]; dup {
			continue
		}
		seen[text] = struct{}{}
		values = append(values, text)
		if len(values) >= s.limits.MaxUniquePerColumn {
			break
		}
	}
	return values
}

// Path scans a file or a directory tree. A nonexistent target is the one
// propagated error; unparseable files inside a directory are skipped.
func (s *Scanner) Path(path string) (*report.Report, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTargetNotFound, path)
		}
		return nil, err
	}

	if !info.IsDir() {
		return s.File(path, path), nil
	}

	return s.scanDirectory(path)
}

// File scans one file, reporting it under the given target name. Upload
// handlers use this to keep spool paths out of reports.
func (s *Scanner) File(path, target string) *report.Report {
	table, err := s.reader.ReadFile(path)
	if err != nil {
		// Single-file parse failure yields an empty report, not an error,
		// so batch callers can keep going.
		s.logger.Warn("Failed to parse scan target, reporting empty result",
			zap.String("path", path),
			zap.Error(err),
		)
		table = ingest.Table{}
	}
	return s.Table(table, target)
}

func (s *Scanner) scanDirectory(root string) (*report.Report, error) {
	var findings []report.Finding
	var allMatches []detect.Match
	filesScanned := 0

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			s.logger.Warn("Skipping unreadable entry", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() || !ingest.SupportedFile(path) {
			return nil
		}

		table, err := s.reader.ReadFile(path)
		if err != nil {
			s.logger.Warn("Skipping unparseable file", zap.String("path", path), zap.Error(err))
			return nil
		}

		fileReport := s.Table(table, path)
		filesScanned++
		findings = append(findings, fileReport.Findings...)
		for _, f := range fileReport.Findings {
			allMatches = append(allMatches, f.Matches...)
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	s.logger.Info("Directory scan complete",
		zap.String("root", root),
		zap.Int("files_scanned", filesScanned),
		zap.Int("findings", len(findings)),
	)
	return report.New(root, risk.Score(allMatches), findings, map[string]any{
		"files_scanned": filesScanned,
		"detectors":     s.DetectorNames(),
	}), nil
}

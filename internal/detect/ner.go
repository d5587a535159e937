package detect

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
)

// NERModelConfig locates the model artifacts for the optional NER backend.
type NERModelConfig struct {
	ModelPath  string
	VocabPath  string
	LabelsPath string
	MaxLength  int
}

// EntityDetector is the optional named-entity detector. When its backing
// engine could not be loaded it reports unavailable and detects nothing;
// callers must check Available before adding it to an active detector set.
type EntityDetector struct {
	backend EntityBackend
	allow   map[string]struct{}
	logger  *zap.Logger
	timeout time.Duration
}

// defaultEntityLabels are the entity labels surfaced when none are configured.
var defaultEntityLabels = []string{"PER", "PERSON", "ORG", "LOC", "GPE", "DATE"}

// NewEntityDetector builds the backend for the current build configuration.
// A nil or unready backend is not an error: the detector simply reports
// unavailable.
func NewEntityDetector(cfg NERModelConfig, labels []string, logger *zap.Logger) *EntityDetector {
	if len(labels) == 0 {
		labels = defaultEntityLabels
	}
	allow := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		allow[strings.ToUpper(strings.TrimSpace(l))] = struct{}{}
	}

	d := &EntityDetector{
		backend: NewEntityBackend(logger, cfg),
		allow:   allow,
		logger:  logger,
		timeout: 30 * time.Second,
	}

	if d.Available() {
		logger.Info("NER detector ready", zap.String("model", cfg.ModelPath))
	} else {
		logger.Info("NER detector unavailable, continuing without it")
	}
	return d
}

// Name implements Detector.
func (d *EntityDetector) Name() string { return "ner" }

// Available reports whether the backing engine loaded successfully.
func (d *EntityDetector) Available() bool {
	return d.backend != nil && d.backend.IsReady()
}

// Detect implements Detector. Backend failures degrade to an empty result
// rather than surfacing an error into the scan.
func (d *EntityDetector) Detect(text string) []Match {
	if !d.Available() || text == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	entities, err := d.backend.Entities(ctx, text)
	if err != nil {
		d.logger.Debug("NER inference failed, returning no matches", zap.Error(err))
		return nil
	}

	var out []Match
	for _, e := range entities {
		label := strings.ToUpper(e.Label)
		if _, ok := d.allow[label]; !ok {
			continue
		}
		out = append(out, Match{Detector: d.Name(), Type: label, Raw: e.Text})
	}
	return out
}

// Close releases backend resources.
func (d *EntityDetector) Close() error {
	if d.backend == nil {
		return nil
	}
	return d.backend.Close()
}

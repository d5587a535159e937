package detect

import "context"

// Entity is a labeled span produced by the NER backend.
type Entity struct {
	Label string
	Text  string
}

// EntityBackend defines a pluggable named-entity recognition engine.
// Implementations may use ONNX Runtime or other inference engines.
type EntityBackend interface {
	// Entities labels entity spans found in the text.
	Entities(ctx context.Context, text string) ([]Entity, error)
	// IsReady returns whether the backend is initialized and ready.
	IsReady() bool
	// Close releases any native resources.
	Close() error
}

// NewEntityBackend creates a backend if supported by the current build.
// The default (no build tags) returns nil to avoid CGO dependencies.
// Implementations are provided in build-tagged files, e.g. ner_onnx.go and
// ner_stub.go.

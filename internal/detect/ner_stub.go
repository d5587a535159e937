//go:build !onnx
// +build !onnx

package detect

import (
	"go.uber.org/zap"
)

// Stub implementation used when the 'onnx' build tag is not set.
func NewEntityBackend(logger *zap.Logger, cfg NERModelConfig) EntityBackend {
	return nil
}

//go:build onnx
// +build onnx

package detect

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"
)

// onnxEntityBackend implements EntityBackend with a token-classification
// model running on ONNX Runtime (via yalue/onnxruntime_go).
type onnxEntityBackend struct {
	session    *ort.DynamicAdvancedSession
	inputNames []string
	outputName string
	vocab      map[string]int64
	unkID      int64
	labels     []string
	maxLength  int
	logger     *zap.Logger
	ready      bool
	mu         sync.RWMutex
}

// NewEntityBackend initializes the ONNX Runtime backend. Requires build tag
// 'onnx'. Any initialization failure yields a nil backend so the detector
// degrades to unavailable.
func NewEntityBackend(logger *zap.Logger, cfg NERModelConfig) EntityBackend {
	if cfg.ModelPath == "" {
		return nil
	}

	if shlib := os.Getenv("ONNXRUNTIME_SHARED_LIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	} else if shlib := os.Getenv("ORT_SHLIB"); shlib != "" {
		ort.SetSharedLibraryPath(shlib)
	}

	if err := ort.InitializeEnvironment(); err != nil {
		logger.Error("ONNX Runtime environment init failed", zap.Error(err))
		return nil
	}

	inputsInfo, outputsInfo, err := ort.GetInputOutputInfo(cfg.ModelPath)
	if err != nil {
		logger.Error("Failed to inspect ONNX model IO", zap.Error(err), zap.String("model", cfg.ModelPath))
		return nil
	}

	preferredInputs := []string{"input_ids", "attention_mask"}
	available := map[string]bool{}
	for _, ii := range inputsInfo {
		available[strings.ToLower(ii.Name)] = true
	}
	var inputNames []string
	for _, name := range preferredInputs {
		if available[name] {
			inputNames = append(inputNames, name)
		}
	}
	if len(inputNames) == 0 && len(inputsInfo) > 0 {
		sorted := make([]string, 0, len(inputsInfo))
		for _, ii := range inputsInfo {
			sorted = append(sorted, ii.Name)
		}
		sort.Strings(sorted)
		inputNames = sorted
	}

	if len(outputsInfo) == 0 {
		logger.Error("ONNX model reports no outputs", zap.String("model", cfg.ModelPath))
		return nil
	}
	outputName := outputsInfo[0].Name

	vocab, err := loadVocab(cfg.VocabPath)
	if err != nil {
		logger.Error("Failed to load NER vocabulary", zap.Error(err), zap.String("path", cfg.VocabPath))
		return nil
	}
	labels, err := loadLines(cfg.LabelsPath)
	if err != nil {
		logger.Error("Failed to load NER label set", zap.Error(err), zap.String("path", cfg.LabelsPath))
		return nil
	}

	sess, err := ort.NewDynamicAdvancedSession(cfg.ModelPath, inputNames, []string{outputName}, nil)
	if err != nil {
		logger.Error("ONNX Runtime session creation failed", zap.Error(err), zap.String("model", cfg.ModelPath))
		return nil
	}

	unkID := int64(0)
	if id, ok := vocab["[unk]"]; ok {
		unkID = id
	}

	maxLength := cfg.MaxLength
	if maxLength <= 0 {
		maxLength = 256
	}

	logger.Info("ONNX NER backend ready",
		zap.String("model", cfg.ModelPath),
		zap.Strings("inputs", inputNames),
		zap.String("output", outputName),
		zap.Int("labels", len(labels)),
	)
	return &onnxEntityBackend{
		session:    sess,
		inputNames: inputNames,
		outputName: outputName,
		vocab:      vocab,
		unkID:      unkID,
		labels:     labels,
		maxLength:  maxLength,
		logger:     logger,
		ready:      true,
	}
}

func loadVocab(path string) (map[string]int64, error) {
	lines, err := loadLines(path)
	if err != nil {
		return nil, err
	}
	vocab := make(map[string]int64, len(lines))
	for i, tok := range lines {
		vocab[strings.ToLower(tok)] = int64(i)
	}
	return vocab, nil
}

func loadLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line != "" {
			out = append(out, line)
		}
	}
	return out, sc.Err()
}

// IsReady implements EntityBackend.
func (b *onnxEntityBackend) IsReady() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.ready
}

// Close implements EntityBackend.
func (b *onnxEntityBackend) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.session != nil {
		b.session.Destroy()
		b.session = nil
	}
	ort.DestroyEnvironment()
	b.ready = false
	return nil
}

// Entities runs token classification over whitespace tokens and merges
// adjacent B-/I- tags into labeled spans.
func (b *onnxEntityBackend) Entities(ctx context.Context, text string) ([]Entity, error) {
	if !b.IsReady() {
		return nil, fmt.Errorf("onnx backend not ready")
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil, nil
	}
	if len(words) > b.maxLength {
		words = words[:b.maxLength]
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	seqLen := len(words)
	inputIDs := make([]int64, seqLen)
	attention := make([]int64, seqLen)
	for i, w := range words {
		id, ok := b.vocab[strings.ToLower(strings.Trim(w, ".,;:!?\"'()"))]
		if !ok {
			id = b.unkID
		}
		inputIDs[i] = id
		attention[i] = 1
	}

	shape := ort.NewShape(1, int64(seqLen))
	idsTensor, err := ort.NewTensor[int64](shape, inputIDs)
	if err != nil {
		return nil, fmt.Errorf("failed to create input_ids tensor: %w", err)
	}
	defer idsTensor.Destroy()
	maskTensor, err := ort.NewTensor[int64](shape, attention)
	if err != nil {
		return nil, fmt.Errorf("failed to create attention_mask tensor: %w", err)
	}
	defer maskTensor.Destroy()

	inputs := make([]ort.Value, 0, len(b.inputNames))
	for _, rawName := range b.inputNames {
		if strings.Contains(strings.ToLower(rawName), "mask") {
			inputs = append(inputs, maskTensor)
		} else {
			inputs = append(inputs, idsTensor)
		}
	}

	outputs := make([]ort.Value, 1)
	if err := b.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("onnx run failed: %w", err)
	}
	defer outputs[0].Destroy()

	logits, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type")
	}
	data := logits.GetData()
	numLabels := len(b.labels)
	if numLabels == 0 || len(data) < seqLen*numLabels {
		return nil, fmt.Errorf("unexpected logits shape: %d values for %d tokens", len(data), seqLen)
	}

	// Argmax per token, then merge consecutive tokens sharing an entity label.
	var entities []Entity
	var spanWords []string
	spanLabel := ""
	flush := func() {
		if spanLabel != "" && len(spanWords) > 0 {
			entities = append(entities, Entity{Label: spanLabel, Text: strings.Join(spanWords, " ")})
		}
		spanWords = nil
		spanLabel = ""
	}
	for i := 0; i < seqLen; i++ {
		best, bestScore := 0, data[i*numLabels]
		for j := 1; j < numLabels; j++ {
			if data[i*numLabels+j] > bestScore {
				best, bestScore = j, data[i*numLabels+j]
			}
		}
		label := b.labels[best]
		core := strings.ToUpper(strings.TrimPrefix(strings.TrimPrefix(label, "B-"), "I-"))
		switch {
		case label == "O" || core == "O":
			flush()
		case strings.HasPrefix(label, "I-") && core == spanLabel:
			spanWords = append(spanWords, words[i])
		default:
			flush()
			spanLabel = core
			spanWords = []string{words[i]}
		}
	}
	flush()

	return entities, nil
}

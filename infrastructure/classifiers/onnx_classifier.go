package classifiers

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/ahrav/go-verity/internal/ports"
)

// DefaultONNXSequenceLength is the token budget of BERT-family models.
const DefaultONNXSequenceLength = 512

// ONNXConfig locates a sequence classification model and its vocabulary.
type ONNXConfig struct {
	ModelPath string `yaml:"model_path" json:"model_path" validate:"required"`
	VocabPath string `yaml:"vocab_path" json:"vocab_path" validate:"required"`
	// SharedLibraryPath points at libonnxruntime. Empty falls back to
	// ONNXRUNTIME_SHARED_LIBRARY_PATH and common install locations.
	SharedLibraryPath string `yaml:"shared_library_path" json:"shared_library_path"`
	SequenceLength    int    `yaml:"sequence_length" json:"sequence_length" validate:"omitempty,min=8,max=4096"`
	// NumLabels is the width of the logits output.
	NumLabels int `yaml:"num_labels" json:"num_labels" validate:"omitempty,min=2"`
	// CredibleLabel is the logits index of the credible/real class.
	CredibleLabel int    `yaml:"credible_label" json:"credible_label" validate:"min=0"`
	InputIDsName  string `yaml:"input_ids_name" json:"input_ids_name"`
	MaskName      string `yaml:"attention_mask_name" json:"attention_mask_name"`
	OutputName    string `yaml:"output_name" json:"output_name"`
}

func (c *ONNXConfig) applyDefaults() {
	if c.SequenceLength == 0 {
		c.SequenceLength = DefaultONNXSequenceLength
	}
	if c.NumLabels == 0 {
		c.NumLabels = 2
	}
	if c.InputIDsName == "" {
		c.InputIDsName = "input_ids"
	}
	if c.MaskName == "" {
		c.MaskName = "attention_mask"
	}
	if c.OutputName == "" {
		c.OutputName = "logits"
	}
}

var (
	ortInitOnce sync.Once
	ortInitErr  error
)

func initRuntime(libPath string) error {
	ortInitOnce.Do(func() {
		if libPath == "" {
			ortInitErr = errors.New("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH")
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if !ort.IsInitialized() {
			ortInitErr = ort.InitializeEnvironment()
		}
	})
	return ortInitErr
}

// ONNXClassifier runs a local transformer text classifier. Input tensors
// are reused across calls, so Classify serializes on a mutex.
type ONNXClassifier struct {
	name      string
	config    ONNXConfig
	tokenizer *WordPieceTokenizer

	mu            sync.Mutex
	session       *ort.AdvancedSession
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

// NewONNXClassifier loads the tokenizer and model and allocates the
// session tensors.
func NewONNXClassifier(name string, config ONNXConfig) (*ONNXClassifier, error) {
	config.applyDefaults()
	if err := validate.Struct(config); err != nil {
		return nil, fmt.Errorf("onnx classifier: invalid configuration: %w", err)
	}
	if config.CredibleLabel >= config.NumLabels {
		return nil, fmt.Errorf("onnx classifier: credible_label %d out of range for %d labels",
			config.CredibleLabel, config.NumLabels)
	}
	if _, err := os.Stat(config.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx classifier: model file: %w", err)
	}

	tokenizer, err := LoadWordPieceTokenizer(config.VocabPath)
	if err != nil {
		return nil, fmt.Errorf("onnx classifier: %w", err)
	}

	lib := config.SharedLibraryPath
	if lib == "" {
		lib = resolveSharedLibraryPath(filepath.Dir(config.ModelPath))
	}
	if err := initRuntime(lib); err != nil {
		return nil, fmt.Errorf("onnx classifier: initialize runtime: %w", err)
	}

	c := &ONNXClassifier{name: name, config: config, tokenizer: tokenizer}
	if err := c.allocate(); err != nil {
		_ = c.destroy()
		return nil, err
	}
	return c, nil
}

func (c *ONNXClassifier) allocate() error {
	var err error
	inputShape := ort.NewShape(1, int64(c.config.SequenceLength))
	if c.inputIDs, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return fmt.Errorf("onnx classifier: allocate input_ids: %w", err)
	}
	if c.attentionMask, err = ort.NewEmptyTensor[int64](inputShape); err != nil {
		return fmt.Errorf("onnx classifier: allocate attention_mask: %w", err)
	}
	if c.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(c.config.NumLabels))); err != nil {
		return fmt.Errorf("onnx classifier: allocate output: %w", err)
	}

	c.session, err = ort.NewAdvancedSession(
		c.config.ModelPath,
		[]string{c.config.InputIDsName, c.config.MaskName},
		[]string{c.config.OutputName},
		[]ort.Value{c.inputIDs, c.attentionMask},
		[]ort.Value{c.output},
		nil,
	)
	if err != nil {
		return fmt.Errorf("onnx classifier: create session: %w", err)
	}
	return nil
}

// Name returns the configured classifier name.
func (c *ONNXClassifier) Name() string { return c.name }

// Classify tokenizes in.Text, runs the model and returns the softmax
// probability of the credible label.
func (c *ONNXClassifier) Classify(ctx context.Context, in ports.ClassifierInput) (ports.Inference, error) {
	if strings.TrimSpace(in.Text) == "" {
		return ports.Inference{}, ports.NewClassifierError(c.name, "classify",
			fmt.Errorf("%w: empty text", ports.ErrUnsupportedInput))
	}
	ids, mask := c.tokenizer.Encode(in.Text, c.config.SequenceLength)

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return ports.Inference{}, err
	}
	if c.session == nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "classify",
			fmt.Errorf("%w: session closed", ports.ErrServiceUnavailable))
	}

	copy(c.inputIDs.GetData(), ids)
	copy(c.attentionMask.GetData(), mask)
	if err := c.session.Run(); err != nil {
		return ports.Inference{}, ports.NewClassifierError(c.name, "run", err)
	}

	probs := softmax(c.output.GetData())
	return inferenceFromProbs(probs, c.config.CredibleLabel)
}

// Ready reports whether the session is loaded.
func (c *ONNXClassifier) Ready(context.Context) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session != nil
}

// Close releases the session and its tensors. Close is idempotent.
func (c *ONNXClassifier) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.destroy()
}

func (c *ONNXClassifier) destroy() error {
	var errs []error
	if c.session != nil {
		errs = append(errs, c.session.Destroy())
		c.session = nil
	}
	if c.inputIDs != nil {
		errs = append(errs, c.inputIDs.Destroy())
		c.inputIDs = nil
	}
	if c.attentionMask != nil {
		errs = append(errs, c.attentionMask.Destroy())
		c.attentionMask = nil
	}
	if c.output != nil {
		errs = append(errs, c.output.Destroy())
		c.output = nil
	}
	return errors.Join(errs...)
}

func inferenceFromProbs(probs []float64, label int) (ports.Inference, error) {
	if label < 0 || label >= len(probs) {
		return ports.Inference{}, fmt.Errorf("%w: %d outputs, credible label %d",
			ports.ErrInvalidResponse, len(probs), label)
	}
	maxP := 0.0
	for _, p := range probs {
		maxP = math.Max(maxP, p)
	}
	return ports.Inference{Probability: probs[label], Confidence: maxP}, nil
}

// softmax converts logits into probabilities. It subtracts the maximum
// logit first so large logits do not overflow.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxL := float64(logits[0])
	for _, l := range logits[1:] {
		maxL = math.Max(maxL, float64(l))
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, l := range logits {
		out[i] = math.Exp(float64(l) - maxL)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// resolveSharedLibraryPath locates libonnxruntime. The environment
// variable wins over searching the usual locations.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}
	names := []string{"libonnxruntime.so", "libonnxruntime.dylib", "onnxruntime.dll"}
	dirs := []string{modelDir, filepath.Join(modelDir, "lib"), "/usr/local/lib", "/usr/lib", "/opt/homebrew/lib"}
	for _, dir := range dirs {
		for _, name := range names {
			candidate := filepath.Join(dir, name)
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
		}
	}
	return ""
}

package onnx

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
	"go.uber.org/zap"

	"github.com/mikey/phish-scorer/internal/core"
	"github.com/mikey/phish-scorer/internal/urlfeatures"
)

// Options configures the ONNX URL classifier
type Options struct {
	ModelPath         string
	SharedLibraryPath string
	InputName         string
	OutputName        string
	IntraOpThreads    int
}

// URLClassifier runs an exported URL model through onnxruntime. The model
// takes a float [N, 10] input and yields [N, 2] class probabilities.
type URLClassifier struct {
	session    *ort.DynamicAdvancedSession
	outputName string
	logger     *zap.Logger
	mu         sync.Mutex
}

var initOnce sync.Once
var initErr error

// NewURLClassifier loads the model session
func NewURLClassifier(opts Options, logger *zap.Logger) (*URLClassifier, error) {
	if opts.ModelPath == "" {
		return nil, fmt.Errorf("onnx model path is empty")
	}
	if _, err := os.Stat(opts.ModelPath); err != nil {
		return nil, fmt.Errorf("onnx model missing at %s: %w", opts.ModelPath, err)
	}
	if opts.InputName == "" {
		opts.InputName = "float_input"
	}
	if opts.OutputName == "" {
		opts.OutputName = "probabilities"
	}

	if err := initialize(opts.SharedLibraryPath, filepath.Dir(opts.ModelPath)); err != nil {
		return nil, err
	}

	sessionOpts, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("create session options: %w", err)
	}
	defer sessionOpts.Destroy()
	if opts.IntraOpThreads > 0 {
		if err := sessionOpts.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("set intra threads: %w", err)
		}
	}

	session, err := ort.NewDynamicAdvancedSession(
		opts.ModelPath,
		[]string{opts.InputName},
		[]string{opts.OutputName},
		sessionOpts,
	)
	if err != nil {
		return nil, fmt.Errorf("create onnx session: %w", err)
	}

	logger.Info("Loaded ONNX URL classifier",
		zap.String("model", opts.ModelPath),
		zap.String("input", opts.InputName),
		zap.String("output", opts.OutputName))

	return &URLClassifier{
		session:    session,
		outputName: opts.OutputName,
		logger:     logger,
	}, nil
}

func initialize(libPath, modelDir string) error {
	initOnce.Do(func() {
		if libPath == "" {
			libPath = resolveSharedLibraryPath(modelDir)
		}
		if libPath == "" {
			initErr = fmt.Errorf("onnxruntime shared library not found; set ONNXRUNTIME_SHARED_LIBRARY_PATH or onnx.shared_library_path")
			return
		}
		ort.SetSharedLibraryPath(libPath)
		if !ort.IsInitialized() {
			if err := ort.InitializeEnvironment(); err != nil {
				initErr = fmt.Errorf("initialize onnxruntime: %w", err)
			}
		}
	})
	return initErr
}

// PredictProba implements core.URLClassifier
func (c *URLClassifier) PredictProba(ctx context.Context, features []urlfeatures.Vector) ([]core.ClassProbabilities, error) {
	if len(features) == 0 {
		return []core.ClassProbabilities{}, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	width := len(urlfeatures.FeatureNames)
	data := make([]float32, 0, len(features)*width)
	for _, row := range urlfeatures.Matrix(features) {
		for _, v := range row {
			data = append(data, float32(v))
		}
	}

	input, err := ort.NewTensor(ort.NewShape(int64(len(features)), int64(width)), data)
	if err != nil {
		return nil, fmt.Errorf("allocate input tensor: %w", err)
	}
	defer input.Destroy()

	output, err := ort.NewEmptyTensor[float32](ort.NewShape(int64(len(features)), 2))
	if err != nil {
		return nil, fmt.Errorf("allocate output tensor: %w", err)
	}
	defer output.Destroy()

	c.mu.Lock()
	err = c.session.Run([]ort.Value{input}, []ort.Value{output})
	c.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("onnx run: %w", err)
	}

	return rowsFromFlat(output.GetData(), len(features))
}

// Close releases the session
func (c *URLClassifier) Close() error {
	return c.session.Destroy()
}

// rowsFromFlat splits a row major [n, 2] buffer
func rowsFromFlat(raw []float32, n int) ([]core.ClassProbabilities, error) {
	if len(raw) != n*2 {
		return nil, fmt.Errorf("%w: onnx output has %d values for %d rows", core.ErrInvalidProbabilities, len(raw), n)
	}
	out := make([]core.ClassProbabilities, n)
	for i := 0; i < n; i++ {
		out[i] = core.ClassProbabilities{float64(raw[2*i]), float64(raw[2*i+1])}
	}
	return out, nil
}

// resolveSharedLibraryPath locates a platform onnxruntime library.
// ONNXRUNTIME_SHARED_LIBRARY_PATH wins over probing.
func resolveSharedLibraryPath(modelDir string) string {
	if env := strings.TrimSpace(os.Getenv("ONNXRUNTIME_SHARED_LIBRARY_PATH")); env != "" {
		return env
	}

	names := []string{
		"libonnxruntime.so",
		"onnxruntime.so",
		"libonnxruntime.dylib",
		"onnxruntime.dll",
	}
	dirs := []string{
		modelDir,
		filepath.Join(modelDir, "lib"),
		".",
		"/usr/local/lib",
		"/usr/lib",
		"/opt/homebrew/lib",
	}
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

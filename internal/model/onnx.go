package model

import (
	"context"
	"fmt"

	ort "github.com/yalue/onnxruntime_go"
)

// Runtime owns the process-wide ONNX Runtime environment and loads sessions.
type Runtime struct{}

// NewRuntime initializes ONNX Runtime. libPath may be empty to use the default library.
func NewRuntime(libPath string) (*Runtime, error) {
	if libPath != "" {
		ort.SetSharedLibraryPath(libPath)
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("failed to initialize ONNX environment: %w", err)
		}
	}
	return &Runtime{}, nil
}

// Load opens an ONNX model with a single float input and a single float output.
func (r *Runtime) Load(path string) (Model, error) {
	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model info: %w", err)
	}
	if len(inputs) != 1 || len(outputs) != 1 {
		return nil, fmt.Errorf("expected 1 input and 1 output, got %d and %d", len(inputs), len(outputs))
	}

	in, out := inputs[0], outputs[0]
	if in.DataType != ort.TensorElementDataTypeFloat || out.DataType != ort.TensorElementDataTypeFloat {
		return nil, fmt.Errorf("model input and output must be float32")
	}
	outShape, classes, err := outputShape(out.Dimensions)
	if err != nil {
		return nil, fmt.Errorf("output %q: %w", out.Name, err)
	}

	session, err := ort.NewDynamicAdvancedSession(path,
		[]string{in.Name}, []string{out.Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create ONNX session: %w", err)
	}

	return &Session{
		session:     session,
		inputShape:  []int64(in.Dimensions),
		outputShape: outShape,
		classes:     classes,
	}, nil
}

// Close tears down the ONNX Runtime environment.
func (r *Runtime) Close() error {
	return ort.DestroyEnvironment()
}

// Session runs one ONNX model. Tensors are allocated per call, so Predict
// may be called from several goroutines.
type Session struct {
	session     *ort.DynamicAdvancedSession
	inputShape  []int64
	outputShape []int64
	classes     int64
}

func (s *Session) Predict(ctx context.Context, input Tensor) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkShape(s.inputShape, input.Shape); err != nil {
		return nil, err
	}

	inputTensor, err := ort.NewTensor(ort.NewShape(input.Shape...), input.Data)
	if err != nil {
		return nil, fmt.Errorf("failed to create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	outputTensor, err := ort.NewEmptyTensor[float32](ort.NewShape(s.outputShape...))
	if err != nil {
		return nil, fmt.Errorf("failed to create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	if err := s.session.Run([]ort.ArbitraryTensor{inputTensor}, []ort.ArbitraryTensor{outputTensor}); err != nil {
		return nil, fmt.Errorf("inference failed: %w", err)
	}

	probs := make([]float32, s.classes)
	copy(probs, outputTensor.GetData())
	return probs, nil
}

func (s *Session) Close() error {
	if s.session == nil {
		return nil
	}
	return s.session.Destroy()
}

// outputShape resolves dynamic output dimensions to 1 and returns the
// concrete shape with its class count. The output must hold exactly one
// probability vector along the last dimension.
func outputShape(dims []int64) ([]int64, int64, error) {
	if len(dims) == 0 {
		return nil, 0, fmt.Errorf("no dimensions")
	}
	classes := dims[len(dims)-1]
	if classes <= 0 {
		return nil, 0, fmt.Errorf("dynamic class dimension in %v", dims)
	}

	shape := make([]int64, len(dims))
	for i, d := range dims[:len(dims)-1] {
		if d < 0 {
			d = 1
		}
		if d != 1 {
			return nil, 0, fmt.Errorf("shape %v holds more than one probability vector", dims)
		}
		shape[i] = d
	}
	shape[len(dims)-1] = classes
	return shape, classes, nil
}

// checkShape compares a tensor shape against a model shape where
// negative dimensions are dynamic.
func checkShape(want, got []int64) error {
	if len(want) != len(got) {
		return fmt.Errorf("input rank mismatch: model expects %v, got %v", want, got)
	}
	for i := range want {
		if want[i] >= 0 && want[i] != got[i] {
			return fmt.Errorf("input shape mismatch: model expects %v, got %v", want, got)
		}
	}
	return nil
}

package tagger

import (
	"context"
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"k8s.io/klog/v2"
)

// defaultInputSize is used when the model leaves its spatial dimensions dynamic.
const defaultInputSize = 448

// WD14Options locate a wd14-style tagger model.
type WD14Options struct {
	ModelPath  string
	LabelsPath string
	// LibraryPath points at libonnxruntime; empty uses the platform default.
	LibraryPath string
}

// WD14 runs a wd14-style ONNX tagger locally.
type WD14 struct {
	session *ort.DynamicAdvancedSession
	labels  []Label
	size    int
}

// NewWD14 loads the label table and opens an inference session.
func NewWD14(o WD14Options) (*WD14, error) {
	labels, err := LoadLabels(o.LabelsPath)
	if err != nil {
		return nil, err
	}

	if !ort.IsInitialized() {
		if o.LibraryPath != "" {
			ort.SetSharedLibraryPath(o.LibraryPath)
		}
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("onnxruntime init: %w", err)
		}
	}

	ins, outs, err := ort.GetInputOutputInfo(o.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("model info: %w", err)
	}
	if len(ins) != 1 || len(outs) < 1 {
		return nil, fmt.Errorf("model has %d inputs and %d outputs, want 1 and >=1", len(ins), len(outs))
	}

	size := defaultInputSize
	if d := ins[0].Dimensions; len(d) == 4 && d[1] > 0 {
		size = int(d[1])
	}
	if d := outs[0].Dimensions; len(d) == 2 && d[1] > 0 && int(d[1]) != len(labels) {
		return nil, fmt.Errorf("model emits %d scores but label table has %d rows", d[1], len(labels))
	}

	s, err := ort.NewDynamicAdvancedSession(o.ModelPath, []string{ins[0].Name}, []string{outs[0].Name}, nil)
	if err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}

	klog.Infof("loaded %s: %d labels, %dpx input", o.ModelPath, len(labels), size)
	return &WD14{session: s, labels: labels, size: size}, nil
}

// Infer scores every label for img.
func (w *WD14) Infer(ctx context.Context, img image.Image) (*Prediction, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInference, err)
	}

	n := int64(w.size)
	in, err := ort.NewTensor(ort.NewShape(1, n, n, 3), Preprocess(img, w.size))
	if err != nil {
		return nil, fmt.Errorf("%w: input tensor: %w", ErrInference, err)
	}
	defer in.Destroy()

	out, err := ort.NewEmptyTensor[float32](ort.NewShape(1, int64(len(w.labels))))
	if err != nil {
		return nil, fmt.Errorf("%w: output tensor: %w", ErrInference, err)
	}
	defer out.Destroy()

	if err := w.session.Run([]ort.Value{in}, []ort.Value{out}); err != nil {
		return nil, fmt.Errorf("%w: run: %w", ErrInference, err)
	}
	return split(w.labels, out.GetData())
}

// Close releases the session.
func (w *WD14) Close() error {
	return w.session.Destroy()
}

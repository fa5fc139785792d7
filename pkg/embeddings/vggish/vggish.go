//go:build cgo
// +build cgo

package vggish

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/tonearmlabs/tonearm/pkg/tensor"
)

// Embedder runs VGGish inference through an ONNX Runtime session.
//
// The session is created with fixed single-example tensors; Embed loops over
// a file's examples, refilling the input tensor and reading the output after
// each run. A mutex serializes access since the tensors are shared state.
type Embedder struct {
	session *ort.AdvancedSession
	logger  *slog.Logger

	inputTensor  *ort.Tensor[float32]
	outputTensor *ort.Tensor[float32]
	mu           sync.Mutex
}

// New creates a VGGish embedder from an ONNX model file. The ONNX Runtime
// environment is initialized if it has not been already.
func New(cfg Config, logger *slog.Logger) (*Embedder, error) {
	cfg.applyDefaults()
	if cfg.ModelPath == "" {
		return nil, fmt.Errorf("vggish model path is required")
	}

	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initializing onnx runtime: %w", err)
		}
	}

	inputData := make([]float32, exampleFrames*melBands)
	inputTensor, err := ort.NewTensor(ort.NewShape(1, 1, exampleFrames, melBands), inputData)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}

	outputData := make([]float32, VectorLength)
	outputTensor, err := ort.NewTensor(ort.NewShape(1, VectorLength), outputData)
	if err != nil {
		inputTensor.Destroy()
		return nil, fmt.Errorf("creating output tensor: %w", err)
	}

	options, err := sessionOptions(cfg.Device)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, err
	}
	if options != nil {
		defer options.Destroy()
	}

	session, err := ort.NewAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.OutputName},
		[]ort.ArbitraryTensor{inputTensor},
		[]ort.ArbitraryTensor{outputTensor},
		options,
	)
	if err != nil {
		inputTensor.Destroy()
		outputTensor.Destroy()
		return nil, fmt.Errorf("creating vggish session from %s: %w", cfg.ModelPath, err)
	}

	logger.Debug("vggish model loaded",
		"model_path", cfg.ModelPath,
		"device", cfg.Device,
	)

	return &Embedder{
		session:      session,
		logger:       logger,
		inputTensor:  inputTensor,
		outputTensor: outputTensor,
	}, nil
}

func sessionOptions(device string) (*ort.SessionOptions, error) {
	switch device {
	case "cpu":
		return nil, nil
	case "cuda":
		options, err := ort.NewSessionOptions()
		if err != nil {
			return nil, fmt.Errorf("creating session options: %w", err)
		}
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err != nil {
			options.Destroy()
			return nil, fmt.Errorf("creating CUDA provider options: %w", err)
		}
		defer cudaOptions.Destroy()
		if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
			options.Destroy()
			return nil, fmt.Errorf("enabling CUDA execution provider: %w", err)
		}
		return options, nil
	default:
		return nil, fmt.Errorf("unsupported device %q (have cpu, cuda)", device)
	}
}

// Embed decodes the audio file and runs every log-mel example through the
// model, returning one 128-float row per example.
func (e *Embedder) Embed(ctx context.Context, audioPath string) (*tensor.Embedding, error) {
	samples, rate, err := readWAV(audioPath)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", audioPath, err)
	}
	samples = resample(samples, rate, sampleRate)

	patches, err := examples(samples)
	if err != nil {
		return nil, fmt.Errorf("preprocessing %s: %w", audioPath, err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	rows := make([][]float32, 0, len(patches))
	for i, patch := range patches {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		copy(e.inputTensor.GetData(), patch)
		if err := e.session.Run(); err != nil {
			return nil, fmt.Errorf("vggish inference on segment %d of %s: %w", i, audioPath, err)
		}

		row := make([]float32, VectorLength)
		copy(row, e.outputTensor.GetData())
		rows = append(rows, row)
	}

	emb, err := tensor.FromRows(rows)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("embedded audio",
		"path", audioPath,
		"segments", emb.Segments(),
	)
	return emb, nil
}

// Dimensions returns the VGGish vector length.
func (e *Embedder) Dimensions() int {
	return VectorLength
}

// Close destroys the session and its tensors.
func (e *Embedder) Close() error {
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.inputTensor != nil {
		_ = e.inputTensor.Destroy()
		e.inputTensor = nil
	}
	if e.outputTensor != nil {
		_ = e.outputTensor.Destroy()
		e.outputTensor = nil
	}
	return err
}

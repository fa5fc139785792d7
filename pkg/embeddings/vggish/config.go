// Package vggish embeds audio with the VGGish model via ONNX Runtime.
//
// Audio is decoded, resampled to 16 kHz mono, converted to log-mel examples
// spanning 0.96 s with 50% overlap, and run through the model one example at
// a time. Each example yields one 128-float segment vector.
//
// Inference requires CGO and the onnxruntime shared library; without CGO the
// constructor returns an error (see stub.go).
package vggish

// VectorLength is the fixed dimensionality of VGGish segment vectors.
const VectorLength = 128

// Default ONNX graph tensor names for exported VGGish models.
const (
	defaultInputName  = "input"
	defaultOutputName = "embeddings"
)

// Config holds construction settings for the VGGish embedder.
type Config struct {
	// ModelPath is the path to the VGGish ONNX model file.
	ModelPath string

	// Device selects the compute device: "cpu" (default) or "cuda".
	Device string

	// InputName and OutputName override the ONNX graph tensor names.
	InputName  string
	OutputName string
}

func (c *Config) applyDefaults() {
	if c.Device == "" {
		c.Device = "cpu"
	}
	if c.InputName == "" {
		c.InputName = defaultInputName
	}
	if c.OutputName == "" {
		c.OutputName = defaultOutputName
	}
}

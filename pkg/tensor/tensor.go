// Package tensor holds the embedding tensor type shared by the ledger, the
// vector indices, and the similarity operations.
//
// An embedding is a rectangular (segments x dim) float32 matrix stored
// row-major. Segment count is not carried on disk; it is recovered on read
// from the blob length and the provider's known dimensionality.
package tensor

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Embedding is a 2-D float32 tensor of shape (segments, dim), one row per
// audio segment.
type Embedding struct {
	data []float32
	dim  int
}

// New returns a zero-filled embedding of the given shape.
func New(segments, dim int) (*Embedding, error) {
	if segments <= 0 || dim <= 0 {
		return nil, fmt.Errorf("invalid embedding shape (%d, %d)", segments, dim)
	}
	return &Embedding{data: make([]float32, segments*dim), dim: dim}, nil
}

// FromRows builds an embedding from per-segment vectors. Every row must have
// the same length.
func FromRows(rows [][]float32) (*Embedding, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("embedding needs at least one segment")
	}
	dim := len(rows[0])
	if dim == 0 {
		return nil, fmt.Errorf("embedding rows cannot be empty")
	}

	e := &Embedding{data: make([]float32, 0, len(rows)*dim), dim: dim}
	for i, row := range rows {
		if len(row) != dim {
			return nil, fmt.Errorf("ragged embedding: row %d has length %d, want %d", i, len(row), dim)
		}
		e.data = append(e.data, row...)
	}
	return e, nil
}

// Segments returns the number of rows.
func (e *Embedding) Segments() int {
	return len(e.data) / e.dim
}

// Dim returns the per-segment vector length.
func (e *Embedding) Dim() int {
	return e.dim
}

// Row returns segment i as a slice view into the underlying data.
// Mutating the returned slice mutates the embedding.
func (e *Embedding) Row(i int) []float32 {
	return e.data[i*e.dim : (i+1)*e.dim]
}

// SetRow copies vec into segment i.
func (e *Embedding) SetRow(i int, vec []float32) error {
	if len(vec) != e.dim {
		return fmt.Errorf("vector length %d does not match embedding dim %d", len(vec), e.dim)
	}
	copy(e.Row(i), vec)
	return nil
}

// MeanPool returns the arithmetic mean across segments as one dim-length
// vector.
func (e *Embedding) MeanPool() []float32 {
	segments := e.Segments()
	out := make([]float32, e.dim)

	// Accumulate in float64 so long items do not lose precision.
	acc := make([]float64, e.dim)
	for s := 0; s < segments; s++ {
		row := e.Row(s)
		for j, v := range row {
			acc[j] += float64(v)
		}
	}
	for j := range out {
		out[j] = float32(acc[j] / float64(segments))
	}
	return out
}

// Clone returns a deep copy.
func (e *Embedding) Clone() *Embedding {
	data := make([]float32, len(e.data))
	copy(data, e.data)
	return &Embedding{data: data, dim: e.dim}
}

// Marshal serializes the embedding as little-endian float32 bytes, the same
// layout sqlite-vec uses for its vector blobs.
func (e *Embedding) Marshal() []byte {
	buf := make([]byte, len(e.data)*4)
	for i, f := range e.data {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// Unmarshal reconstitutes an embedding from a little-endian float32 blob.
// The segment count is recovered as len(blob)/4/dim; the blob must describe
// a rectangular (segments, dim) matrix.
func Unmarshal(blob []byte, dim int) (*Embedding, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("invalid embedding dim %d", dim)
	}
	if len(blob) == 0 {
		return nil, fmt.Errorf("empty embedding blob")
	}
	if len(blob)%4 != 0 {
		return nil, fmt.Errorf("invalid embedding blob length %d: must be divisible by 4", len(blob))
	}
	n := len(blob) / 4
	if n%dim != 0 {
		return nil, fmt.Errorf("embedding blob holds %d floats, not divisible by dim %d", n, dim)
	}

	data := make([]float32, n)
	for i := range data {
		data[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return &Embedding{data: data, dim: dim}, nil
}

// MarshalVector serializes a single vector as little-endian float32 bytes.
func MarshalVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// NormalizeL2 scales v in place to unit L2 norm. Zero vectors are left
// untouched.
func NormalizeL2(v []float32) {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

// Mean returns the elementwise arithmetic mean of the given equal-length
// vectors.
func Mean(vectors [][]float32) ([]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("mean of zero vectors")
	}
	dim := len(vectors[0])
	acc := make([]float64, dim)
	for i, v := range vectors {
		if len(v) != dim {
			return nil, fmt.Errorf("ragged input: vector %d has length %d, want %d", i, len(v), dim)
		}
		for j, f := range v {
			acc[j] += float64(f)
		}
	}
	out := make([]float32, dim)
	for j := range out {
		out[j] = float32(acc[j] / float64(len(vectors)))
	}
	return out, nil
}

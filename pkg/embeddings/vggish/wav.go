package vggish

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

// readWAV decodes a RIFF/WAVE file into mono float32 samples in [-1, 1].
// 16-bit PCM and 32-bit IEEE float encodings are supported; multi-channel
// audio is downmixed by averaging.
func readWAV(path string) (samples []float32, sampleRate int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	var riff [12]byte
	if _, err := io.ReadFull(f, riff[:]); err != nil {
		return nil, 0, fmt.Errorf("reading RIFF header: %w", err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, 0, fmt.Errorf("%s: not a RIFF/WAVE file", path)
	}

	var (
		audioFormat   uint16
		numChannels   uint16
		rate          uint32
		bitsPerSample uint16
		haveFmt       bool
	)

	for {
		var chunk [8]byte
		if _, err := io.ReadFull(f, chunk[:]); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				break
			}
			return nil, 0, fmt.Errorf("reading chunk header: %w", err)
		}
		id := string(chunk[0:4])
		size := binary.LittleEndian.Uint32(chunk[4:8])

		switch id {
		case "fmt ":
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, 0, fmt.Errorf("reading fmt chunk: %w", err)
			}
			if size < 16 {
				return nil, 0, fmt.Errorf("fmt chunk too short (%d bytes)", size)
			}
			audioFormat = binary.LittleEndian.Uint16(body[0:2])
			numChannels = binary.LittleEndian.Uint16(body[2:4])
			rate = binary.LittleEndian.Uint32(body[4:8])
			bitsPerSample = binary.LittleEndian.Uint16(body[14:16])
			haveFmt = true

		case "data":
			if !haveFmt {
				return nil, 0, fmt.Errorf("data chunk before fmt chunk")
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(f, body); err != nil {
				return nil, 0, fmt.Errorf("reading data chunk: %w", err)
			}
			samples, err := decodeSamples(body, audioFormat, numChannels, bitsPerSample)
			if err != nil {
				return nil, 0, err
			}
			return samples, int(rate), nil

		default:
			// Chunks are word-aligned; skip unknown ones.
			skip := int64(size)
			if size%2 == 1 {
				skip++
			}
			if _, err := f.Seek(skip, io.SeekCurrent); err != nil {
				return nil, 0, fmt.Errorf("skipping %q chunk: %w", id, err)
			}
		}
	}

	return nil, 0, fmt.Errorf("%s: no data chunk found", path)
}

func decodeSamples(body []byte, format, channels, bits uint16) ([]float32, error) {
	if channels == 0 {
		return nil, fmt.Errorf("wav reports zero channels")
	}

	const (
		formatPCM   = 1
		formatFloat = 3
	)

	var frames int
	switch {
	case format == formatPCM && bits == 16:
		frames = len(body) / 2 / int(channels)
	case format == formatFloat && bits == 32:
		frames = len(body) / 4 / int(channels)
	default:
		return nil, fmt.Errorf("unsupported wav encoding: format=%d bits=%d", format, bits)
	}
	if frames == 0 {
		return nil, fmt.Errorf("wav contains no audio frames")
	}

	mono := make([]float32, frames)
	ch := int(channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < ch; c++ {
			idx := i*ch + c
			switch {
			case format == formatPCM && bits == 16:
				raw := int16(binary.LittleEndian.Uint16(body[idx*2:]))
				sum += float32(raw) / 32768.0
			case format == formatFloat && bits == 32:
				sum += math.Float32frombits(binary.LittleEndian.Uint32(body[idx*4:]))
			}
		}
		mono[i] = sum / float32(ch)
	}
	return mono, nil
}

// resample converts samples from one rate to another by linear
// interpolation. Adequate for feature extraction; not transcription grade.
func resample(samples []float32, fromRate, toRate int) []float32 {
	if fromRate == toRate || len(samples) == 0 {
		return samples
	}
	ratio := float64(fromRate) / float64(toRate)
	n := int(float64(len(samples)) / ratio)
	if n == 0 {
		return nil
	}
	out := make([]float32, n)
	for i := range out {
		pos := float64(i) * ratio
		j := int(pos)
		if j >= len(samples)-1 {
			out[i] = samples[len(samples)-1]
			continue
		}
		frac := float32(pos - float64(j))
		out[i] = samples[j]*(1-frac) + samples[j+1]*frac
	}
	return out
}

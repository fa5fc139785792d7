package vggish

import (
	"fmt"
	"math"
	"math/cmplx"
)

// Log-mel front end matching the published VGGish input pipeline: 16 kHz
// mono audio, 25 ms Hann-windowed STFT frames with 10 ms hop, 64 mel bands
// spanning 125-7500 Hz, log compression with a 0.01 offset, grouped into
// 96-frame examples.
const (
	sampleRate = 16000

	windowSamples = 400 // 25 ms
	hopSamples    = 160 // 10 ms
	fftSize       = 512

	melBands = 64
	melMinHz = 125.0
	melMaxHz = 7500.0

	logOffset = 0.01

	// An example spans 0.96 s (96 frames). Examples overlap by 50%.
	exampleFrames = 96
	exampleHop    = exampleFrames / 2
)

// examples converts mono 16 kHz samples into flattened VGGish input
// patches, each exampleFrames*melBands floats in frame-major order.
func examples(samples []float32) ([][]float32, error) {
	frames := logMelSpectrogram(samples)
	if len(frames) < exampleFrames {
		return nil, fmt.Errorf("audio too short: %d spectrogram frames, need %d", len(frames), exampleFrames)
	}

	var out [][]float32
	for start := 0; start+exampleFrames <= len(frames); start += exampleHop {
		patch := make([]float32, 0, exampleFrames*melBands)
		for _, frame := range frames[start : start+exampleFrames] {
			patch = append(patch, frame...)
		}
		out = append(out, patch)
	}
	return out, nil
}

// logMelSpectrogram computes per-frame log-mel energies.
func logMelSpectrogram(samples []float32) [][]float32 {
	if len(samples) < windowSamples {
		return nil
	}

	window := hannWindow(windowSamples)
	filterbank := melFilterbank()
	nFrames := 1 + (len(samples)-windowSamples)/hopSamples
	nBins := fftSize/2 + 1

	frames := make([][]float32, 0, nFrames)
	buf := make([]complex128, fftSize)
	mags := make([]float64, nBins)

	for i := 0; i < nFrames; i++ {
		start := i * hopSamples
		for j := 0; j < fftSize; j++ {
			if j < windowSamples {
				buf[j] = complex(float64(samples[start+j])*window[j], 0)
			} else {
				buf[j] = 0
			}
		}
		fft(buf)
		for b := 0; b < nBins; b++ {
			mags[b] = cmplx.Abs(buf[b])
		}

		mel := make([]float32, melBands)
		for b, filter := range filterbank {
			var energy float64
			for _, tap := range filter {
				energy += mags[tap.bin] * tap.weight
			}
			mel[b] = float32(math.Log(energy + logOffset))
		}
		frames = append(frames, mel)
	}
	return frames
}

func hannWindow(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n))
	}
	return w
}

// fft runs an in-place iterative radix-2 transform. len(buf) must be a
// power of two.
func fft(buf []complex128) {
	n := len(buf)

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j ^= bit
		if i < j {
			buf[i], buf[j] = buf[j], buf[i]
		}
	}

	for length := 2; length <= n; length <<= 1 {
		angle := -2 * math.Pi / float64(length)
		wl := cmplx.Exp(complex(0, angle))
		for i := 0; i < n; i += length {
			w := complex(1, 0)
			for j := 0; j < length/2; j++ {
				u := buf[i+j]
				v := buf[i+j+length/2] * w
				buf[i+j] = u + v
				buf[i+j+length/2] = u - v
				w *= wl
			}
		}
	}
}

type melTap struct {
	bin    int
	weight float64
}

func hzToMel(hz float64) float64 {
	return 2595.0 * math.Log10(1.0+hz/700.0)
}

// melFilterbank builds triangular filters over the FFT bins, returned as
// sparse (bin, weight) taps per band.
func melFilterbank() [][]melTap {
	nBins := fftSize/2 + 1
	binHz := float64(sampleRate) / float64(fftSize)

	melMin := hzToMel(melMinHz)
	melMax := hzToMel(melMaxHz)
	// Band edges are evenly spaced on the mel scale: melBands filters need
	// melBands+2 edges.
	edges := make([]float64, melBands+2)
	for i := range edges {
		edges[i] = melMin + (melMax-melMin)*float64(i)/float64(melBands+1)
	}

	filters := make([][]melTap, melBands)
	for b := 0; b < melBands; b++ {
		lower, center, upper := edges[b], edges[b+1], edges[b+2]
		var taps []melTap
		for bin := 0; bin < nBins; bin++ {
			mel := hzToMel(float64(bin) * binHz)
			var w float64
			switch {
			case mel <= lower || mel >= upper:
				continue
			case mel <= center:
				w = (mel - lower) / (center - lower)
			default:
				w = (upper - mel) / (upper - center)
			}
			taps = append(taps, melTap{bin: bin, weight: w})
		}
		filters[b] = taps
	}
	return filters
}

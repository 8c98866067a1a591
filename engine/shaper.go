package engine

import "math"

// Soft clip parameters.
const (
	softClipThreshold = 0.95
	softClipDrive     = 0.9
)

// SoftClip saturates near-full-scale samples with tanh(0.9x). Samples with
// |x| <= 0.95 pass through unchanged. The second result reports whether
// saturation was applied.
func SoftClip(x float64) (float64, bool) {
	if math.Abs(x) > softClipThreshold {
		return math.Tanh(softClipDrive * x), true
	}
	return x, false
}

// Shaper is the output stage: soft clip, then compression, then gain.
type Shaper struct {
	comp *Compressor
}

// NewShaper creates an output stage running at sampleRate.
func NewShaper(sampleRate int) *Shaper {
	return &Shaper{comp: NewCompressor(DefaultCompressorParams, sampleRate)}
}

// Process shapes one stereo frame and returns the number of samples that
// were soft clipped.
func (s *Shaper) Process(left, right, gain float64) (float32, float32, int) {
	clips := 0
	l, c := SoftClip(left)
	if c {
		clips++
	}
	r, c := SoftClip(right)
	if c {
		clips++
	}
	l, r = s.comp.Process(l, r)
	return float32(l * gain), float32(r * gain), clips
}

// Reset clears the compressor envelope.
func (s *Shaper) Reset() {
	s.comp.Reset()
}

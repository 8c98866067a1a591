package engine

import (
	"math"
	"time"
)

// CompressorParams describes a feed-forward dynamics compressor.
type CompressorParams struct {
	ThresholdDB float64
	KneeDB      float64
	Ratio       float64
	Attack      time.Duration
	Release     time.Duration
}

// DefaultCompressorParams are the fixed output stage settings.
var DefaultCompressorParams = CompressorParams{
	ThresholdDB: -24,
	KneeDB:      30,
	Ratio:       12,
	Attack:      3 * time.Millisecond,
	Release:     250 * time.Millisecond,
}

// silenceDB is the level used for a zero input.
const silenceDB = -200.0

// Compressor is a stereo-linked soft-knee compressor. The gain reduction is
// computed from the louder channel and applied equally to both.
type Compressor struct {
	params      CompressorParams
	attackCoef  float64
	releaseCoef float64

	// reductionDB is the smoothed gain reduction, always <= 0
	reductionDB float64
}

// NewCompressor creates a compressor running at sampleRate.
func NewCompressor(p CompressorParams, sampleRate int) *Compressor {
	if p.Ratio < 1 {
		p.Ratio = 1
	}
	if p.KneeDB < 0 {
		p.KneeDB = 0
	}
	return &Compressor{
		params:      p,
		attackCoef:  smoothingCoef(p.Attack, sampleRate),
		releaseCoef: smoothingCoef(p.Release, sampleRate),
	}
}

func smoothingCoef(d time.Duration, sampleRate int) float64 {
	if d <= 0 || sampleRate <= 0 {
		return 0
	}
	return math.Exp(-1 / (d.Seconds() * float64(sampleRate)))
}

// StaticGainDB returns the steady-state gain change in dB for an input level.
func (c *Compressor) StaticGainDB(levelDB float64) float64 {
	t, w, r := c.params.ThresholdDB, c.params.KneeDB, c.params.Ratio
	over := levelDB - t
	switch {
	case 2*over < -w:
		return 0
	case w > 0 && 2*math.Abs(over) <= w:
		d := over + w/2
		return (1/r - 1) * d * d / (2 * w)
	default:
		return (1/r - 1) * over
	}
}

// Process applies gain reduction to one stereo frame.
func (c *Compressor) Process(left, right float64) (float64, float64) {
	peak := math.Max(math.Abs(left), math.Abs(right))
	level := silenceDB
	if peak > 1e-10 {
		level = 20 * math.Log10(peak)
	}
	target := c.StaticGainDB(level)

	coef := c.releaseCoef
	if target < c.reductionDB {
		coef = c.attackCoef
	}
	c.reductionDB = coef*c.reductionDB + (1-coef)*target

	if c.reductionDB == 0 {
		return left, right
	}
	g := math.Pow(10, c.reductionDB/20)
	return left * g, right * g
}

// ReductionDB returns the current smoothed gain reduction.
func (c *Compressor) ReductionDB() float64 {
	return c.reductionDB
}

// Reset clears the envelope.
func (c *Compressor) Reset() {
	c.reductionDB = 0
}

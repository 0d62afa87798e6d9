package audio

import "math"

// peakHeadroomDB keeps peak normalization just under full scale.
const peakHeadroomDB = 0.1

// RMS returns the root mean square of the samples on the int16 scale.
func RMS(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Peak returns the largest absolute sample value.
func Peak(samples []int16) int {
	peak := 0
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		if v > peak {
			peak = v
		}
	}
	return peak
}

// ScaleInPlace multiplies every sample by factor, saturating at the int16 range.
func ScaleInPlace(samples []int16, factor float64) {
	for i, s := range samples {
		samples[i] = clamp16(math.Round(float64(s) * factor))
	}
}

// PeakNormalize raises samples so the loudest one sits just below full scale.
// It never attenuates and reports whether anything changed.
func PeakNormalize(samples []int16) bool {
	peak := Peak(samples)
	if peak == 0 {
		return false
	}
	target := math.MaxInt16 * math.Pow(10, -peakHeadroomDB/20)
	factor := target / float64(peak)
	if factor <= 1 {
		return false
	}
	ScaleInPlace(samples, factor)
	return true
}

// ApplyGainDB amplifies samples by a positive decibel amount with saturation.
// Non-positive gains are ignored.
func ApplyGainDB(samples []int16, db float64) {
	if db <= 0 {
		return
	}
	ScaleInPlace(samples, math.Pow(10, db/20))
}

// LoudnessPolicy describes the quiet-audio correction.
type LoudnessPolicy struct {
	QuietRMS  float64
	BoostRMS  float64
	BoostGain float64
}

// EnsureLoudness peak normalizes audio below QuietRMS and, if still below
// BoostRMS, applies BoostGain decibels. The returned RMS is measured after
// correction.
func EnsureLoudness(samples []int16, p LoudnessPolicy) float64 {
	rms := RMS(samples)
	if rms >= p.QuietRMS || rms == 0 {
		return rms
	}
	PeakNormalize(samples)
	if rms = RMS(samples); rms < p.BoostRMS {
		ApplyGainDB(samples, p.BoostGain)
		rms = RMS(samples)
	}
	return rms
}

// Downmix averages interleaved channels into a mono signal.
func Downmix(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	frames := len(samples) / channels
	mono := make([]int16, frames)
	for i := 0; i < frames; i++ {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		mono[i] = int16(sum / channels)
	}
	return mono
}

func clamp16(v float64) int16 {
	switch {
	case v > math.MaxInt16:
		return math.MaxInt16
	case v < math.MinInt16:
		return math.MinInt16
	}
	return int16(v)
}

// Int16ToFloat converts samples to the [-1, 1) range.
func Int16ToFloat(samples []int16) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = float64(s) / 32768.0
	}
	return out
}

// FloatToInt16 converts [-1, 1] samples back to int16 with saturation.
func FloatToInt16(samples []float64) []int16 {
	out := make([]int16, len(samples))
	for i, s := range samples {
		out[i] = clamp16(math.Round(s * 32768.0))
	}
	return out
}

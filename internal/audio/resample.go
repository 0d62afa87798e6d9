package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts mono 16-bit samples from inRate to outRate. Matching rates
// return the input unchanged.
func Resample(samples []int16, inRate, outRate int) ([]int16, error) {
	if inRate <= 0 || outRate <= 0 {
		return nil, ErrInvalidRate
	}
	if inRate == outRate || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(inRate),
		OutputRate: float64(outRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := r.Process(Int16ToFloat(samples))
	if err != nil {
		return nil, fmt.Errorf("resample %d Hz -> %d Hz: %w", inRate, outRate, err)
	}
	tail, err := r.Flush()
	if err != nil {
		return nil, fmt.Errorf("flush resampler: %w", err)
	}
	return FloatToInt16(append(out, tail...)), nil
}

// ToCanonical downmixes interleaved samples to mono and resamples to rate.
func ToCanonical(samples []int16, channels, inRate, rate int) ([]int16, error) {
	return Resample(Downmix(samples, channels), inRate, rate)
}

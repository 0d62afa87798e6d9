package domain

import "time"

// AudioFormat is the container format guessed from leading bytes.
type AudioFormat string

const (
	FormatWebM    AudioFormat = "webm"
	FormatMP4     AudioFormat = "mp4"
	FormatWAV     AudioFormat = "wav"
	FormatOgg     AudioFormat = "ogg"
	FormatMP3     AudioFormat = "mp3"
	FormatUnknown AudioFormat = "unknown"
)

// Canonical output shape of the normalizer.
const (
	TargetSampleRate = 16000
	TargetChannels   = 1
	TargetBitDepth   = 16
)

// NormalizedAudio is a WAV container holding 16 kHz mono 16-bit PCM, except
// when it wraps untouched WAV input on a pass-through or fallback path.
type NormalizedAudio struct {
	Data       []byte
	SampleRate int
	Channels   int
	BitDepth   int
	Duration   time.Duration
	// Passthrough is true when Data is the caller's original bytes.
	Passthrough bool
}

// DecodedAudio is interleaved signed 16-bit PCM produced by a decoder.
type DecodedAudio struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Duration reports the playback length of the decoded samples.
func (d *DecodedAudio) Duration() time.Duration {
	if d == nil || d.SampleRate <= 0 || d.Channels <= 0 {
		return 0
	}
	frames := len(d.Samples) / d.Channels
	return time.Duration(frames) * time.Second / time.Duration(d.SampleRate)
}

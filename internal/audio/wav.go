package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

const (
	wavHeaderSize         = 44
	wavFormatPCM          = 1
	wavFormatExtensible   = 0xFFFE
	maxWAVChunksInspected = 64
)

var (
	ErrNotWAV        = errors.New("not a RIFF/WAVE container")
	ErrWAVNoFormat   = errors.New("wav: missing fmt chunk")
	ErrWAVNoData     = errors.New("wav: missing data chunk")
	ErrWAVNotPCM     = errors.New("wav: only integer PCM is supported")
	ErrWAVBitDepth   = errors.New("wav: unsupported bit depth")
	ErrEmptySamples  = errors.New("no samples to encode")
	ErrInvalidRate   = errors.New("sample rate must be positive")
	ErrInvalidLayout = errors.New("channel count must be positive")
)

// WAVInfo describes the fmt chunk of a WAV file.
type WAVInfo struct {
	AudioFormat   uint16
	Channels      int
	SampleRate    int
	BitsPerSample int
	DataSize      int
}

// Duration derived from the data chunk size.
func (w WAVInfo) Duration() time.Duration {
	frameSize := w.Channels * w.BitsPerSample / 8
	if frameSize == 0 || w.SampleRate == 0 {
		return 0
	}
	frames := w.DataSize / frameSize
	return time.Duration(frames) * time.Second / time.Duration(w.SampleRate)
}

// ParseWAV walks the RIFF chunks and returns the format plus raw data bytes.
// Chunks other than fmt and data are skipped.
func ParseWAV(data []byte) (WAVInfo, []byte, error) {
	var info WAVInfo
	if len(data) < 12 || !bytes.Equal(data[0:4], riffMagic) || !bytes.Equal(data[8:12], waveMagic) {
		return info, nil, ErrNotWAV
	}

	var (
		haveFormat bool
		pcm        []byte
	)
	offset := 12
	for i := 0; i < maxWAVChunksInspected && offset+8 <= len(data); i++ {
		id := string(data[offset : offset+4])
		size := int(binary.LittleEndian.Uint32(data[offset+4 : offset+8]))
		body := offset + 8
		end := body + size
		if end > len(data) || end < body {
			// Streaming writers leave the size unset; take what is there.
			end = len(data)
		}

		switch id {
		case "fmt ":
			if end-body < 16 {
				return info, nil, fmt.Errorf("wav: fmt chunk too short (%d bytes)", end-body)
			}
			chunk := data[body:end]
			info.AudioFormat = binary.LittleEndian.Uint16(chunk[0:2])
			info.Channels = int(binary.LittleEndian.Uint16(chunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(chunk[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(chunk[14:16]))
			if info.AudioFormat == wavFormatExtensible && len(chunk) >= 26 {
				info.AudioFormat = binary.LittleEndian.Uint16(chunk[24:26])
			}
			haveFormat = true
		case "data":
			pcm = data[body:end]
			info.DataSize = len(pcm)
		}

		if haveFormat && pcm != nil {
			break
		}
		// chunks are word aligned
		offset = end + size%2
	}

	if !haveFormat {
		return info, nil, ErrWAVNoFormat
	}
	if pcm == nil {
		return info, nil, ErrWAVNoData
	}
	return info, pcm, nil
}

// DecodeWAV returns interleaved 16-bit samples from an integer PCM WAV file.
func DecodeWAV(data []byte) (samples []int16, info WAVInfo, err error) {
	info, pcm, err := ParseWAV(data)
	if err != nil {
		return nil, info, err
	}
	if info.AudioFormat != wavFormatPCM {
		return nil, info, ErrWAVNotPCM
	}
	if info.Channels <= 0 {
		return nil, info, ErrInvalidLayout
	}
	if info.SampleRate <= 0 {
		return nil, info, ErrInvalidRate
	}

	switch info.BitsPerSample {
	case 8:
		samples = make([]int16, len(pcm))
		for i, b := range pcm {
			samples[i] = int16(int(b)-128) << 8
		}
	case 16:
		samples = make([]int16, len(pcm)/2)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		}
	case 24:
		samples = make([]int16, len(pcm)/3)
		for i := range samples {
			// keep the two most significant bytes
			samples[i] = int16(uint16(pcm[i*3+1]) | uint16(pcm[i*3+2])<<8)
		}
	case 32:
		samples = make([]int16, len(pcm)/4)
		for i := range samples {
			samples[i] = int16(binary.LittleEndian.Uint32(pcm[i*4:]) >> 16)
		}
	default:
		return nil, info, fmt.Errorf("%w: %d", ErrWAVBitDepth, info.BitsPerSample)
	}

	// drop a trailing partial frame
	samples = samples[:len(samples)-len(samples)%info.Channels]
	return samples, info, nil
}

// EncodeWAV wraps interleaved 16-bit samples in a canonical 44-byte header.
func EncodeWAV(samples []int16, sampleRate, channels int) ([]byte, error) {
	if len(samples) == 0 {
		return nil, ErrEmptySamples
	}
	if sampleRate <= 0 {
		return nil, ErrInvalidRate
	}
	if channels <= 0 {
		return nil, ErrInvalidLayout
	}

	dataSize := len(samples) * 2
	blockAlign := channels * 2
	buf := make([]byte, wavHeaderSize+dataSize)

	copy(buf[0:4], riffMagic)
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize))
	copy(buf[8:12], waveMagic)
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], wavFormatPCM)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(sampleRate*blockAlign))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], 16)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))

	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[wavHeaderSize+i*2:], uint16(s))
	}
	return buf, nil
}

package audio

import (
	"bytes"

	"github.com/satriahrh/voicerelay/domain"
)

// minSniffLength is the shortest input Detect will inspect.
const minSniffLength = 12

var (
	ebmlMagic = []byte{0x1A, 0x45, 0xDF, 0xA3}
	ftypMagic = []byte("ftyp")
	riffMagic = []byte("RIFF")
	waveMagic = []byte("WAVE")
	oggMagic  = []byte("OggS")
	id3Magic  = []byte("ID3")
)

// Detect guesses the container format from the leading bytes of data.
// Signatures are checked in a fixed order and the first match wins.
func Detect(data []byte) domain.AudioFormat {
	if len(data) < minSniffLength {
		return domain.FormatUnknown
	}

	switch {
	case bytes.HasPrefix(data, ebmlMagic):
		return domain.FormatWebM
	case bytes.Equal(data[4:8], ftypMagic):
		return domain.FormatMP4
	case bytes.HasPrefix(data, riffMagic) && bytes.Equal(data[8:12], waveMagic):
		return domain.FormatWAV
	case bytes.HasPrefix(data, oggMagic):
		return domain.FormatOgg
	case bytes.HasPrefix(data, id3Magic):
		return domain.FormatMP3
	case data[0] == 0xFF && (data[1] == 0xFB || data[1] == 0xFA):
		return domain.FormatMP3
	}
	return domain.FormatUnknown
}

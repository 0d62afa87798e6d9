package repositories

import (
	"context"

	"github.com/satriahrh/voicerelay/domain"
)

// AudioDecoder decodes container audio to PCM. A FormatUnknown hint asks the
// decoder to detect the format itself.
type AudioDecoder interface {
	Decode(ctx context.Context, data []byte, hint domain.AudioFormat) (*domain.DecodedAudio, error)
}

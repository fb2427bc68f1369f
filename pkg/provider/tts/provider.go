// Package tts defines the Provider interface for Text-to-Speech backends.
//
// A TTS provider wraps a speech synthesis service (e.g., ElevenLabs) and
// presents a uniform streaming interface. The primary entry point is
// SynthesizeStream, which accepts a channel of text fragments and returns a
// channel of raw audio bytes as they become available. The voice cache
// concatenates those chunks into the stored MP3 object; callers that need
// the whole clip simply drain the channel.
//
// Implementations must be safe for concurrent use; multiple synthesis
// requests may run in parallel (one per active lane).
package tts

import (
	"context"

	"github.com/ordervox/ordervox/pkg/types"
)

// Provider is the abstraction over any TTS backend.
type Provider interface {
	// SynthesizeStream consumes text fragments from the text channel and
	// returns a channel that emits encoded audio byte slices as they are
	// synthesised.
	//
	// The returned audio channel is closed by the implementation when all
	// text has been synthesised or when ctx is cancelled. The caller must
	// drain the audio channel to avoid blocking the provider's internal
	// goroutines.
	//
	// voice selects the synthesis voice; providers return an error if the
	// requested voice is not available.
	//
	// Returns a non-nil error only if the stream cannot be started. Errors
	// during synthesis are signalled by closing the audio channel early;
	// callers should check ctx.Err() to distinguish cancellation from
	// provider failure.
	SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error)

	// ListVoices returns all voice profiles available from this provider.
	ListVoices(ctx context.Context) ([]types.VoiceProfile, error)
}

// SynthesizeAll is a convenience helper that synthesises a single text
// fragment and concatenates the streamed chunks into one payload. This is
// the shape the voice cache stores.
func SynthesizeAll(ctx context.Context, p Provider, text string, voice types.VoiceProfile) ([]byte, error) {
	textCh := make(chan string, 1)
	textCh <- text
	close(textCh)

	audioCh, err := p.SynthesizeStream(ctx, textCh, voice)
	if err != nil {
		return nil, err
	}

	var out []byte
	for chunk := range audioCh {
		out = append(out, chunk...)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

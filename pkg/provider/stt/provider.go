// Package stt defines the Provider interface for Speech-to-Text backends.
//
// An STT provider wraps a transcription service (a hosted API such as
// OpenAI's audio endpoint, or a local whisper.cpp model) and exposes a
// uniform clip-transcription interface. The drive-thru lane hardware posts
// one complete utterance per request, so the unit of work is a whole
// [types.AudioClip] rather than a live audio stream.
//
// Implementations must be safe for concurrent use; clips from different
// lanes may be transcribed in parallel.
package stt

import (
	"context"
	"errors"

	"github.com/ordervox/ordervox/pkg/types"
)

// ErrEmptyClip is returned when a clip carries no audio data.
var ErrEmptyClip = errors.New("stt: empty audio clip")

// Provider is the abstraction over any STT backend.
type Provider interface {
	// Transcribe converts one complete audio clip to text. The clip's
	// Language field is a recognition hint; providers that cannot honour it
	// fall back to auto-detection.
	//
	// Returns an error when the audio cannot be decoded, the backend is
	// unreachable, or ctx is cancelled. A clip containing only silence is
	// not an error: the result carries an empty Text.
	Transcribe(ctx context.Context, clip types.AudioClip) (types.Transcript, error)
}

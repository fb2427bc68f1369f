// Package types defines the shared types used across all Ordervox packages.
//
// These types form the lingua franca between the speech providers, the
// conversation pipeline, and the voice service. They are intentionally
// minimal — each package defines its own domain types, but cross-cutting
// data structures live here to avoid circular imports.
package types

import "time"

// AudioClip is a complete recorded utterance as posted by the lane hardware.
// Unlike a streaming frame, a clip is self-contained: one customer utterance
// from open-mic to silence, in a single encoded payload.
type AudioClip struct {
	// Data is the encoded audio payload (WAV or MP3 as uploaded).
	Data []byte

	// Format is the container/codec hint ("wav", "mp3"). Providers that only
	// accept PCM must decode or reject other formats.
	Format string

	// SampleRate in Hz for raw PCM payloads. Ignored for self-describing
	// containers.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en-US").
	// Empty lets the provider auto-detect, if supported.
	Language string
}

// Transcript is a speech-to-text result for one clip.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// Confidence is the provider's overall confidence (0.0–1.0). Zero when
	// the provider does not report confidence.
	Confidence float64

	// Language is the detected or requested language tag.
	Language string

	// Duration is the length of the transcribed audio.
	Duration time.Duration
}

// VoiceProfile identifies a synthesis voice at a TTS provider.
type VoiceProfile struct {
	// ID is the provider-specific voice identifier.
	ID string

	// Name is the human-readable voice name.
	Name string

	// Provider is the TTS provider that owns this voice.
	Provider string

	// Language is the primary language tag of the voice.
	Language string
}

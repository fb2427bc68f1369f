package resilience

import (
	"context"
	"log/slog"

	"github.com/ordervox/ordervox/pkg/provider/tts"
	"github.com/ordervox/ordervox/pkg/types"
)

// TTSFallback implements [tts.Provider] with automatic failover across
// multiple synthesis backends. Each backend has its own breaker.
type TTSFallback struct {
	group *FallbackGroup[tts.Provider]
}

var _ tts.Provider = (*TTSFallback)(nil)

// NewTTSFallback creates a [TTSFallback] with primary as the preferred
// backend.
func NewTTSFallback(primary tts.Provider, primaryName string, cfg FallbackConfig, logger *slog.Logger) *TTSFallback {
	return &TTSFallback{group: NewFallbackGroup(primary, primaryName, cfg, logger)}
}

// AddFallback registers an additional TTS provider as a fallback.
func (f *TTSFallback) AddFallback(name string, provider tts.Provider) {
	f.group.AddFallback(name, provider)
}

// SynthesizeStream opens a synthesis stream against the first healthy
// provider. Only stream setup is covered by failover; mid-stream errors are
// the caller's responsibility.
func (f *TTSFallback) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) (<-chan []byte, error) {
		return p.SynthesizeStream(ctx, text, voice)
	})
}

// ListVoices returns the voices of the first healthy provider.
func (f *TTSFallback) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	return ExecuteWithResult(f.group, func(p tts.Provider) ([]types.VoiceProfile, error) {
		return p.ListVoices(ctx)
	})
}

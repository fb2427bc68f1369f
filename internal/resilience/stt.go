package resilience

import (
	"context"
	"log/slog"

	"github.com/ordervox/ordervox/pkg/provider/stt"
	"github.com/ordervox/ordervox/pkg/types"
)

// STTFallback implements [stt.Provider] with automatic failover across
// multiple transcription backends. Each backend has its own breaker.
type STTFallback struct {
	group *FallbackGroup[stt.Provider]
}

var _ stt.Provider = (*STTFallback)(nil)

// NewSTTFallback creates an [STTFallback] with primary as the preferred
// backend.
func NewSTTFallback(primary stt.Provider, primaryName string, cfg FallbackConfig, logger *slog.Logger) *STTFallback {
	return &STTFallback{group: NewFallbackGroup(primary, primaryName, cfg, logger)}
}

// AddFallback registers an additional STT provider as a fallback.
func (f *STTFallback) AddFallback(name string, provider stt.Provider) {
	f.group.AddFallback(name, provider)
}

// Transcribe sends the clip to the first healthy provider.
func (f *STTFallback) Transcribe(ctx context.Context, clip types.AudioClip) (types.Transcript, error) {
	return ExecuteWithResult(f.group, func(p stt.Provider) (types.Transcript, error) {
		return p.Transcribe(ctx, clip)
	})
}

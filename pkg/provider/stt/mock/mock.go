// Package mock provides a test double for the stt.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/ordervox/ordervox/pkg/provider/stt"
	"github.com/ordervox/ordervox/pkg/types"
)

// TranscribeCall records a single invocation of Transcribe.
type TranscribeCall struct {
	// Ctx is the context passed to Transcribe.
	Ctx context.Context
	// Clip is the audio clip passed to Transcribe.
	Clip types.AudioClip
}

// Provider is a mock implementation of stt.Provider. Zero values cause
// Transcribe to return an empty Transcript and nil error.
type Provider struct {
	mu sync.Mutex

	// Transcript is returned by Transcribe.
	Transcript types.Transcript

	// Err, if non-nil, is returned as the error from Transcribe.
	Err error

	// Calls records every invocation of Transcribe in order.
	Calls []TranscribeCall
}

// Compile-time interface check.
var _ stt.Provider = (*Provider)(nil)

// Transcribe records the call and returns Transcript, Err.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip) (types.Transcript, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls = append(p.Calls, TranscribeCall{Ctx: ctx, Clip: clip})
	if p.Err != nil {
		return types.Transcript{}, p.Err
	}
	return p.Transcript, nil
}

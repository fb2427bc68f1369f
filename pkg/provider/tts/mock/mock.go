// Package mock provides a test double for the tts.Provider interface.
package mock

import (
	"context"
	"sync"

	"github.com/ordervox/ordervox/pkg/provider/tts"
	"github.com/ordervox/ordervox/pkg/types"
)

// SynthesizeCall records a single invocation of SynthesizeStream.
type SynthesizeCall struct {
	// Voice is the profile passed to SynthesizeStream.
	Voice types.VoiceProfile
	// Text is the concatenation of all fragments read from the text channel.
	Text string
}

// Provider is a mock implementation of tts.Provider. For each text fragment
// consumed it emits AudioChunk (or the fragment's bytes when AudioChunk is
// nil), letting tests assert on deterministic synthesized payloads.
type Provider struct {
	mu sync.Mutex

	// AudioChunk is emitted once per consumed text fragment. When nil, the
	// fragment's own bytes are emitted instead.
	AudioChunk []byte

	// Err, if non-nil, is returned from SynthesizeStream instead of starting
	// a stream.
	Err error

	// Voices is returned by ListVoices.
	Voices []types.VoiceProfile

	// Calls records every completed SynthesizeStream invocation.
	Calls []SynthesizeCall
}

// Compile-time interface check.
var _ tts.Provider = (*Provider)(nil)

// SynthesizeStream consumes the text channel and emits one audio chunk per
// fragment. The call record is appended once the text channel closes.
func (p *Provider) SynthesizeStream(ctx context.Context, text <-chan string, voice types.VoiceProfile) (<-chan []byte, error) {
	p.mu.Lock()
	err := p.Err
	chunk := p.AudioChunk
	p.mu.Unlock()
	if err != nil {
		return nil, err
	}

	audioCh := make(chan []byte, 16)
	go func() {
		defer close(audioCh)
		var all string
		for {
			select {
			case fragment, ok := <-text:
				if !ok {
					p.mu.Lock()
					p.Calls = append(p.Calls, SynthesizeCall{Voice: voice, Text: all})
					p.mu.Unlock()
					return
				}
				all += fragment
				out := chunk
				if out == nil {
					out = []byte(fragment)
				}
				select {
				case audioCh <- out:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
	return audioCh, nil
}

// ListVoices returns the configured Voices.
func (p *Provider) ListVoices(ctx context.Context) ([]types.VoiceProfile, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.Voices, nil
}

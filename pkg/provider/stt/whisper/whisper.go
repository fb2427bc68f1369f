// Package whisper provides an stt.Provider backed by the whisper.cpp CGO
// bindings. The whisper.cpp static library (libwhisper.a) and headers
// (whisper.h) must be available at link time via LIBRARY_PATH and
// C_INCLUDE_PATH.
//
// The model is loaded once at startup and shared across all transcriptions;
// each Transcribe call creates its own whisper context, so clips from
// multiple lanes can be processed concurrently.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	whisperlib "github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"github.com/ordervox/ordervox/pkg/provider/stt"
	"github.com/ordervox/ordervox/pkg/types"
)

const (
	defaultLanguage   = "en"
	defaultSampleRate = 16000
)

// Provider implements stt.Provider using whisper.cpp.
type Provider struct {
	model      whisperlib.Model
	language   string
	sampleRate int
}

// Compile-time interface check.
var _ stt.Provider = (*Provider)(nil)

// Option is a functional option for configuring a Provider.
type Option func(*Provider)

// WithLanguage sets the default language code for transcription (e.g., "en",
// "es"). Per-clip Language hints take precedence. Defaults to "en".
func WithLanguage(lang string) Option {
	return func(p *Provider) { p.language = lang }
}

// WithSampleRate sets the expected PCM sample rate in Hz. This must match
// the rate of raw PCM clips delivered to Transcribe. Defaults to 16000.
func WithSampleRate(rate int) Option {
	return func(p *Provider) { p.sampleRate = rate }
}

// New creates a Provider that loads the whisper.cpp model from the given
// file path. The caller must call Close when the provider is no longer
// needed.
func New(modelPath string, opts ...Option) (*Provider, error) {
	if modelPath == "" {
		return nil, errors.New("whisper: modelPath must not be empty")
	}
	model, err := whisperlib.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("whisper: load model %q: %w", modelPath, err)
	}

	p := &Provider{
		model:      model,
		language:   defaultLanguage,
		sampleRate: defaultSampleRate,
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Close releases the whisper model.
func (p *Provider) Close() error {
	if p.model != nil {
		return p.model.Close()
	}
	return nil
}

// Transcribe implements stt.Provider. The clip must carry 16-bit signed
// little-endian mono PCM ("pcm" or "wav" with the 44-byte header stripped by
// the caller); other formats are rejected.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip) (types.Transcript, error) {
	if err := ctx.Err(); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: context already cancelled: %w", err)
	}
	if len(clip.Data) == 0 {
		return types.Transcript{}, stt.ErrEmptyClip
	}
	if clip.Format != "" && clip.Format != "pcm" && clip.Format != "wav" {
		return types.Transcript{}, fmt.Errorf("whisper: unsupported clip format %q (raw PCM required)", clip.Format)
	}

	pcm := clip.Data
	if clip.Format == "wav" {
		var err error
		pcm, err = stripWAVHeader(pcm)
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: %w", err)
		}
	}

	samples := pcmToFloat32(pcm)

	// Each whisper context is NOT thread-safe, but the model can be shared
	// across goroutines; create a fresh context per clip.
	wctx, err := p.model.NewContext()
	if err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: create context: %w", err)
	}

	lang := p.language
	if clip.Language != "" {
		lang = shortLang(clip.Language)
	}
	if err := wctx.SetLanguage(lang); err != nil {
		slog.Warn("whisper: failed to set language, using default", "language", lang, "error", err)
	}

	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return types.Transcript{}, fmt.Errorf("whisper: process audio: %w", err)
	}

	var parts []string
	for {
		segment, err := wctx.NextSegment()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return types.Transcript{}, fmt.Errorf("whisper: read segment: %w", err)
		}
		if text := strings.TrimSpace(segment.Text); text != "" {
			parts = append(parts, text)
		}
	}

	rate := p.sampleRate
	if clip.SampleRate > 0 {
		rate = clip.SampleRate
	}

	return types.Transcript{
		Text:     strings.Join(parts, " "),
		Language: lang,
		Duration: time.Duration(len(samples)) * time.Second / time.Duration(rate),
	}, nil
}

// shortLang reduces a BCP-47 tag ("en-US") to the two-letter code whisper
// expects ("en").
func shortLang(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

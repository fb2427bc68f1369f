// Package openai provides an stt.Provider backed by the OpenAI audio
// transcription API (hosted Whisper). It accepts encoded clips (wav, mp3)
// directly, making it the default choice for lane hardware that uploads
// compressed audio.
package openai

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"

	"github.com/ordervox/ordervox/pkg/provider/stt"
	"github.com/ordervox/ordervox/pkg/types"
)

const defaultModel = "whisper-1"

// Provider implements stt.Provider using the OpenAI transcription endpoint.
type Provider struct {
	client oai.Client
	model  string
}

// Compile-time interface check.
var _ stt.Provider = (*Provider)(nil)

// config holds optional configuration for the provider.
type config struct {
	model   string
	baseURL string
	timeout time.Duration
}

// Option is a functional option for Provider.
type Option func(*config)

// WithModel overrides the transcription model (default "whisper-1").
func WithModel(model string) Option {
	return func(c *config) { c.model = model }
}

// WithBaseURL overrides the default OpenAI API base URL.
func WithBaseURL(url string) Option {
	return func(c *config) { c.baseURL = url }
}

// WithTimeout sets a per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *config) { c.timeout = d }
}

// New constructs a new OpenAI STT Provider.
func New(apiKey string, opts ...Option) (*Provider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai: apiKey must not be empty")
	}

	cfg := &config{model: defaultModel}
	for _, o := range opts {
		o(cfg)
	}

	reqOpts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if cfg.baseURL != "" {
		reqOpts = append(reqOpts, option.WithBaseURL(cfg.baseURL))
	}
	if cfg.timeout > 0 {
		reqOpts = append(reqOpts, option.WithHTTPClient(&http.Client{Timeout: cfg.timeout}))
	}

	return &Provider{client: oai.NewClient(reqOpts...), model: cfg.model}, nil
}

// Transcribe implements stt.Provider.
func (p *Provider) Transcribe(ctx context.Context, clip types.AudioClip) (types.Transcript, error) {
	if len(clip.Data) == 0 {
		return types.Transcript{}, stt.ErrEmptyClip
	}

	filename, contentType := clipFileMeta(clip.Format)

	params := oai.AudioTranscriptionNewParams{
		File:  oai.File(bytes.NewReader(clip.Data), filename, contentType),
		Model: oai.AudioModel(p.model),
	}
	if clip.Language != "" {
		params.Language = param.NewOpt(shortLang(clip.Language))
	}

	resp, err := p.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return types.Transcript{}, fmt.Errorf("openai: transcribe: %w", err)
	}

	return types.Transcript{
		Text:     strings.TrimSpace(resp.Text),
		Language: clip.Language,
	}, nil
}

// clipFileMeta maps a clip format hint to the multipart filename and content
// type the API expects.
func clipFileMeta(format string) (filename, contentType string) {
	switch format {
	case "mp3":
		return "clip.mp3", "audio/mpeg"
	case "wav", "":
		return "clip.wav", "audio/wav"
	default:
		return "clip." + format, "application/octet-stream"
	}
}

// shortLang reduces a BCP-47 tag ("en-US") to the ISO-639-1 code the API
// expects ("en").
func shortLang(tag string) string {
	if i := strings.IndexByte(tag, '-'); i > 0 {
		return tag[:i]
	}
	return tag
}

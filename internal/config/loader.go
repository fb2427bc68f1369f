package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"llm": {"openai", "anyllm"},
	"stt": {"openai", "whisper"},
	"tts": {"elevenlabs"},
}

// Defaults applied by [ApplyDefaults] for values left unset in the YAML file.
const (
	DefaultMaxQuantityPerItem  = 10
	DefaultMaxItemsPerOrder    = 50
	DefaultMaxOrderTotal       = 200.0
	DefaultConfidenceThreshold = 0.8
	DefaultSafetyThreshold     = 5
	DefaultSessionTTL          = 15 * time.Minute
	DefaultTurnTimeout         = 20 * time.Second
	DefaultProviderTimeout     = 10 * time.Second
	DefaultListenAddr          = ":8080"
	DefaultLanguage            = "en-US"
)

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader].
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, fills in defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyDefaults fills in the documented default values for any zero-valued
// fields in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.ListenAddr == "" {
		cfg.Server.ListenAddr = DefaultListenAddr
	}
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Server.TurnTimeout == 0 {
		cfg.Server.TurnTimeout = DefaultTurnTimeout
	}
	for _, entry := range []*ProviderEntry{
		&cfg.Providers.LLM, &cfg.Providers.FallbackLLM,
		&cfg.Providers.STT, &cfg.Providers.FallbackSTT,
		&cfg.Providers.TTS, &cfg.Providers.FallbackTTS,
	} {
		if entry.Name != "" && entry.Timeout == 0 {
			entry.Timeout = DefaultProviderTimeout
		}
	}
	if cfg.Ordering.MaxQuantityPerItem == 0 {
		cfg.Ordering.MaxQuantityPerItem = DefaultMaxQuantityPerItem
	}
	if cfg.Ordering.MaxItemsPerOrder == 0 {
		cfg.Ordering.MaxItemsPerOrder = DefaultMaxItemsPerOrder
	}
	if cfg.Ordering.MaxOrderTotal == 0 {
		cfg.Ordering.MaxOrderTotal = DefaultMaxOrderTotal
	}
	if cfg.AI.ConfidenceThreshold == 0 {
		cfg.AI.ConfidenceThreshold = DefaultConfidenceThreshold
	}
	if cfg.Safety.Threshold == 0 {
		cfg.Safety.Threshold = DefaultSafetyThreshold
	}
	if cfg.Voice.Language == "" {
		cfg.Voice.Language = DefaultLanguage
	}
	if cfg.Session.TTL == 0 {
		cfg.Session.TTL = DefaultSessionTTL
	}
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if cfg.Server.TurnTimeout < 0 {
		errs = append(errs, fmt.Errorf("server.turn_timeout %s must not be negative", cfg.Server.TurnTimeout))
	}

	// Provider name validation — warn for unknown provider names.
	validateProviderName("llm", cfg.Providers.LLM.Name)
	validateProviderName("llm", cfg.Providers.FallbackLLM.Name)
	validateProviderName("stt", cfg.Providers.STT.Name)
	validateProviderName("stt", cfg.Providers.FallbackSTT.Name)
	validateProviderName("tts", cfg.Providers.TTS.Name)
	validateProviderName("tts", cfg.Providers.FallbackTTS.Name)

	// Required providers: the pipeline cannot run without all three stages.
	if cfg.Providers.LLM.Name == "" {
		errs = append(errs, errors.New("providers.llm.name is required"))
	}
	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	if cfg.Providers.TTS.Name == "" {
		errs = append(errs, errors.New("providers.tts.name is required"))
	}

	// Stores
	if cfg.Stores.Redis.Addr == "" {
		errs = append(errs, errors.New("stores.redis.addr is required"))
	}
	if cfg.Stores.PostgresDSN == "" {
		errs = append(errs, errors.New("stores.postgres_dsn is required"))
	}
	if cfg.Stores.ObjectStoreURL == "" {
		slog.Warn("stores.object_store_url is empty; synthesised audio will not be uploaded and responses will carry no audio URL")
	}

	// Ordering limits
	if cfg.Ordering.MaxQuantityPerItem < 1 {
		errs = append(errs, fmt.Errorf("ordering.max_quantity_per_item %d must be at least 1", cfg.Ordering.MaxQuantityPerItem))
	}
	if cfg.Ordering.MaxItemsPerOrder < 1 {
		errs = append(errs, fmt.Errorf("ordering.max_items_per_order %d must be at least 1", cfg.Ordering.MaxItemsPerOrder))
	}
	if cfg.Ordering.MaxOrderTotal <= 0 {
		errs = append(errs, fmt.Errorf("ordering.max_order_total %.2f must be positive", cfg.Ordering.MaxOrderTotal))
	}

	// AI
	if cfg.AI.ConfidenceThreshold < 0 || cfg.AI.ConfidenceThreshold > 1 {
		errs = append(errs, fmt.Errorf("ai.confidence_threshold %.2f is out of range [0, 1]", cfg.AI.ConfidenceThreshold))
	}

	// Safety
	if cfg.Safety.Threshold < 1 {
		errs = append(errs, fmt.Errorf("safety.threshold %d must be at least 1", cfg.Safety.Threshold))
	}

	// Voice
	if cfg.Voice.TTSVoice == "" {
		errs = append(errs, errors.New("voice.tts_voice is required"))
	}

	// Session
	if cfg.Session.TTL < time.Minute {
		errs = append(errs, fmt.Errorf("session.ttl %s must be at least 1m", cfg.Session.TTL))
	}

	return errors.Join(errs...)
}

// validateProviderName logs a warning if name is non-empty and not found in
// the [ValidProviderNames] list for the given kind.
func validateProviderName(kind, name string) {
	if name == "" {
		return
	}
	known, ok := ValidProviderNames[kind]
	if !ok {
		return
	}
	if slices.Contains(known, name) {
		return
	}
	slog.Warn("unknown provider name — may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

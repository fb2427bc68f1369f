// Package voice produces the spoken side of a turn: canned phrase audio for
// the fixed phrase types, and a content-addressed TTS cache for dynamic
// text. Audio objects live in an AFS-backed object store; a small Redis
// index keeps hot cache hits off the object store entirely.
package voice

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/ordervox/ordervox/pkg/provider/tts"
	"github.com/ordervox/ordervox/pkg/types"
)

// FastIndexTTL is how long a synthesized URL stays in the Redis fast index.
const FastIndexTTL = 24 * time.Hour

// index is the fast-lookup slice of Redis the cache needs.
type index interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// errIndexMiss is the sentinel an index returns for an absent key.
var errIndexMiss = fmt.Errorf("voice: index miss")

// redisIndex adapts go-redis to the index interface.
type redisIndex struct {
	rdb *redis.Client
}

func (r redisIndex) Get(ctx context.Context, key string) (string, error) {
	v, err := r.rdb.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", errIndexMiss
	}
	return v, err
}

func (r redisIndex) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.rdb.Set(ctx, key, value, ttl).Err()
}

// CacheKey derives the content address for one synthesized clip. The
// restaurant id is part of the key so tenants never share audio even when
// the text collides.
func CacheKey(text, voiceID, language string, restaurantID int) string {
	h := md5.Sum(fmt.Appendf(nil, "%s|%s|%s|%d", text, voiceID, language, restaurantID))
	return hex.EncodeToString(h[:])
}

// Cache synthesizes dynamic text at most once per content address.
type Cache struct {
	fs       afs.Service
	idx      index
	tts      tts.Provider
	voice    types.VoiceProfile
	language string

	// baseURL is the AFS root the objects are written under; publicBase is
	// what callers get back. They differ when a CDN fronts the bucket.
	baseURL    string
	publicBase string

	logger *slog.Logger
}

// NewCache builds the TTS cache. rdb may be nil, which disables the fast
// index and falls back to object-store lookups only.
func NewCache(fs afs.Service, rdb *redis.Client, provider tts.Provider, voice types.VoiceProfile, language, baseURL, publicBase string, logger *slog.Logger) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Cache{
		fs:         fs,
		tts:        provider,
		voice:      voice,
		language:   language,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		publicBase: strings.TrimSuffix(publicBase, "/"),
		logger:     logger,
	}
	if rdb != nil {
		c.idx = redisIndex{rdb: rdb}
	}
	return c
}

// URL returns the audio URL for text, synthesizing and storing it on first
// use. Lookup order: Redis fast index, object store, synthesis.
func (c *Cache) URL(ctx context.Context, restaurantID int, text string) (string, error) {
	hash := CacheKey(text, c.voice.ID, c.language, restaurantID)
	fastKey := fmt.Sprintf("voice:cache:restaurant:%d:%s", restaurantID, hash)

	if c.idx != nil {
		if u, err := c.idx.Get(ctx, fastKey); err == nil {
			return u, nil
		} else if err != errIndexMiss {
			c.logger.Warn("voice fast index read failed", "key", fastKey, "error", err)
		}
	}

	objPath := fmt.Sprintf("tts-cache/restaurant-%d/%s.mp3", restaurantID, hash)
	objURL := c.baseURL + "/" + objPath
	public := c.publicURL(objPath)

	exists, err := c.fs.Exists(ctx, objURL)
	if err != nil {
		return "", fmt.Errorf("voice: probe %s: %w", objURL, err)
	}
	if !exists {
		audio, err := tts.SynthesizeAll(ctx, c.tts, text, c.voice)
		if err != nil {
			return "", fmt.Errorf("voice: synthesize: %w", err)
		}
		if err := c.fs.Upload(ctx, objURL, file.DefaultFileOsMode, bytes.NewReader(audio)); err != nil {
			return "", fmt.Errorf("voice: store %s: %w", objURL, err)
		}
		c.logger.Info("synthesized audio cached",
			"restaurant_id", restaurantID, "hash", hash, "bytes", len(audio))
	}

	if c.idx != nil {
		if err := c.idx.Set(ctx, fastKey, public, FastIndexTTL); err != nil {
			c.logger.Warn("voice fast index write failed", "key", fastKey, "error", err)
		}
	}
	return public, nil
}

// publicURL maps an object path to the URL handed to clients.
func (c *Cache) publicURL(objPath string) string {
	if c.publicBase == "" {
		return c.baseURL + "/" + objPath
	}
	return c.publicBase + "/" + objPath
}

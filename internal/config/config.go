package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port string

	// Structure endpoint connection
	StructURL    string
	StructAPIKey string

	// Auth
	StructlayAPIKey string

	// Structure cache
	CacheMaxEntries      int
	CacheMaxAge          time.Duration
	CacheCleanupInterval time.Duration

	// Lazy loading
	FetchTimeout  time.Duration
	PrefetchRange int

	// View behavior
	ResizeWait    time.Duration
	FrameInterval time.Duration
	AnnounceDelay time.Duration
	DeepLinkParam string
	UpdateURL     bool

	// Session registry
	SessionTTL   time.Duration
	SessionSweep time.Duration
}

func Load() Config {
	cfg := Config{
		Port: envOr("PORT", "8090"),

		StructURL:    envOr("STRUCT_URL", "http://localhost:8091"),
		StructAPIKey: os.Getenv("STRUCT_API_KEY"),

		StructlayAPIKey: os.Getenv("STRUCTLAY_API_KEY"),

		CacheMaxEntries:      envInt("CACHE_MAX_ENTRIES", 20),
		CacheMaxAge:          envDuration("CACHE_MAX_AGE", 5*time.Minute),
		CacheCleanupInterval: envDuration("CACHE_CLEANUP_INTERVAL", time.Minute),

		FetchTimeout:  envDuration("FETCH_TIMEOUT", 10*time.Second),
		PrefetchRange: envInt("PREFETCH_RANGE", 1),

		ResizeWait:    envDuration("RESIZE_WAIT", 150*time.Millisecond),
		FrameInterval: envDuration("FRAME_INTERVAL", time.Second/60),
		AnnounceDelay: envDuration("ANNOUNCE_DELAY", 100*time.Millisecond),
		DeepLinkParam: envOr("DEEPLINK_PARAM", "chunk"),
		UpdateURL:     envBool("UPDATE_URL", true),

		SessionTTL:   envDuration("SESSION_TTL", 30*time.Minute),
		SessionSweep: envDuration("SESSION_SWEEP", time.Minute),
	}

	if cfg.CacheMaxEntries <= 0 {
		cfg.CacheMaxEntries = 20
	}
	if cfg.CacheMaxAge <= 0 {
		cfg.CacheMaxAge = 5 * time.Minute
	}
	if cfg.CacheCleanupInterval <= 0 {
		cfg.CacheCleanupInterval = time.Minute
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	if cfg.PrefetchRange < 0 {
		cfg.PrefetchRange = 1
	}
	if cfg.ResizeWait <= 0 {
		cfg.ResizeWait = 150 * time.Millisecond
	}
	if cfg.FrameInterval <= 0 {
		cfg.FrameInterval = time.Second / 60
	}
	if cfg.AnnounceDelay <= 0 {
		cfg.AnnounceDelay = 100 * time.Millisecond
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 30 * time.Minute
	}
	if cfg.SessionSweep <= 0 {
		cfg.SessionSweep = time.Minute
	}

	return cfg
}

func (c Config) Validate() error {
	if c.StructlayAPIKey == "" {
		return fmt.Errorf("STRUCTLAY_API_KEY is required")
	}
	if c.StructURL == "" {
		return fmt.Errorf("STRUCT_URL is required")
	}
	return nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

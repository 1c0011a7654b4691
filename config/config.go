package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Browser    BrowserConfig
	Fetch      FetchConfig
	Pipeline   PipelineConfig
	Politeness PolitenessConfig
	LLM        LLMConfig
	Log        LogConfig
}

// BrowserConfig controls the Rod browser instance used for rendered fetches.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool // default: true

	// MaxPages is the page pool capacity (max concurrent tabs).
	MaxPages int // default: 4

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string

	// SettleDelay is the fixed wait after navigation and after the
	// lazy-load scroll, giving client-side rendering time to finish.
	SettleDelay time.Duration // default: 1.5s
}

// FetchConfig controls outbound page fetching.
type FetchConfig struct {
	// Timeout is the deadline for a single page fetch, static or rendered.
	Timeout time.Duration // default: 30s

	// UserAgents overrides the built-in identity rotation profiles.
	// Comma-separated in the environment; empty keeps the defaults.
	UserAgents []string
}

// PipelineConfig controls the per-URL extraction pipeline and the batch
// orchestrator.
type PipelineConfig struct {
	// ItemLimit is the default per-URL record cap when the caller
	// doesn't supply one.
	ItemLimit int // default: 5

	// DetailLinksPerSeed caps how many product-detail links one seed
	// URL expands into.
	DetailLinksPerSeed int // default: 10

	// Workers bounds concurrent per-URL pipeline runs within a batch.
	Workers int // default: 4
}

// PolitenessConfig controls robots.txt checking and crawl-delay pacing.
type PolitenessConfig struct {
	// UserAgent is the agent token matched against robots.txt groups.
	UserAgent string // default: "harvestbot"

	// DefaultDelay is the crawl delay assumed when no policy is found.
	DefaultDelay time.Duration // default: 1s

	// Timeout is the deadline for fetching robots.txt itself.
	Timeout time.Duration // default: 10s
}

// LLMConfig controls the optional completion-backed fallback extractor.
// When APIKey is empty the fallback is disabled and a no-op completer
// is wired instead.
type LLMConfig struct {
	BaseURL string        // default: "https://api.openai.com/v1"
	APIKey  string
	Model   string        // default: "gpt-4o-mini"
	Timeout time.Duration // default: 30s
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string // default: "info"
	Format string // "json" or "text"; default: "json"
}

// Load reads configuration from environment variables with sane defaults.
func Load() *Config {
	return &Config{
		Browser: BrowserConfig{
			Headless:    envBoolOr("HARVEST_HEADLESS", true),
			MaxPages:    envIntOr("HARVEST_MAX_PAGES", 4),
			NoSandbox:   envBoolOr("HARVEST_NO_SANDBOX", false),
			BrowserBin:  os.Getenv("HARVEST_BROWSER_BIN"),
			SettleDelay: envDurationOr("HARVEST_SETTLE_DELAY", 1500*time.Millisecond),
		},
		Fetch: FetchConfig{
			Timeout:    envDurationOr("HARVEST_FETCH_TIMEOUT", 30*time.Second),
			UserAgents: envSliceOr("HARVEST_USER_AGENTS", nil),
		},
		Pipeline: PipelineConfig{
			ItemLimit:          envIntOr("HARVEST_ITEM_LIMIT", 5),
			DetailLinksPerSeed: envIntOr("HARVEST_DETAIL_LINKS", 10),
			Workers:            envIntOr("HARVEST_WORKERS", 4),
		},
		Politeness: PolitenessConfig{
			UserAgent:    envOr("HARVEST_USER_AGENT", "harvestbot"),
			DefaultDelay: envDurationOr("HARVEST_DEFAULT_DELAY", time.Second),
			Timeout:      envDurationOr("HARVEST_ROBOTS_TIMEOUT", 10*time.Second),
		},
		LLM: LLMConfig{
			BaseURL: envOr("HARVEST_LLM_BASE_URL", "https://api.openai.com/v1"),
			APIKey:  os.Getenv("HARVEST_LLM_API_KEY"),
			Model:   envOr("HARVEST_LLM_MODEL", "gpt-4o-mini"),
			Timeout: envDurationOr("HARVEST_LLM_TIMEOUT", 30*time.Second),
		},
		Log: LogConfig{
			Level:  envOr("HARVEST_LOG_LEVEL", "info"),
			Format: envOr("HARVEST_LOG_FORMAT", "json"),
		},
	}
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}

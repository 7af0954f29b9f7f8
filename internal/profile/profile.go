package profile

import (
	"os"
	"strconv"
	"time"

	"github.com/pkg/errors"
)

// Profile is the configuration to start the hearth server.
type Profile struct {
	// Mode can be "prod" or "dev"
	Mode string
	// Addr is the binding address for the MCP server (SSE transport).
	Addr string
	// Port is the binding port for the MCP server.
	Port int
	// Driver is the database driver (postgres, sqlite or memory)
	Driver string
	// DSN points to where hearth stores its data
	DSN string
	// Version is the current version of the server
	Version string

	// DefaultOwner scopes operations when the caller does not name an owner.
	DefaultOwner string

	// Embedding provider configuration
	OpenAIAPIKey   string // HEARTH_OPENAI_API_KEY
	OpenAIBaseURL  string // HEARTH_OPENAI_BASE_URL (default: https://api.openai.com/v1)
	EmbeddingModel string // HEARTH_EMBEDDING_MODEL (default: text-embedding-3-small)
	EmbeddingDim   int    // HEARTH_EMBEDDING_DIM (default: 1536)
	ExtractModel   string // HEARTH_EXTRACT_MODEL (default: gpt-4o-mini)

	// EmbedCacheCapacity bounds the query-embedding LRU cache.
	EmbedCacheCapacity int // HEARTH_EMBED_CACHE_CAPACITY (default: 256)

	// OversampleFactor multiplies the search limit for the raw candidate fetch.
	OversampleFactor int // HEARTH_OVERSAMPLE_FACTOR (default: 3)

	// DecayInterval is how often the decay sweep runs.
	DecayInterval time.Duration // HEARTH_DECAY_INTERVAL (default: 24h)

	// Heat constants. Tunable; see Heat for defaults.
	Heat HeatConfig
}

// HeatConfig carries the tunable heat constants.
type HeatConfig struct {
	InitialHeat  float64 // HEARTH_HEAT_INITIAL (default: 1.0)
	DecayRate    float64 // HEARTH_HEAT_DECAY_RATE (default: 0.97)
	AccessBoost  float64 // HEARTH_HEAT_ACCESS_BOOST (default: 0.15)
	MentionBoost float64 // HEARTH_HEAT_MENTION_BOOST (default: 0.10)
	MinHeat      float64 // HEARTH_HEAT_MIN (default: 0.05)
	MaxHeat      float64 // HEARTH_HEAT_MAX (default: 2.0)
}

// DefaultHeatConfig returns the stock heat constants.
func DefaultHeatConfig() HeatConfig {
	return HeatConfig{
		InitialHeat:  1.0,
		DecayRate:    0.97,
		AccessBoost:  0.15,
		MentionBoost: 0.10,
		MinHeat:      0.05,
		MaxHeat:      2.0,
	}
}

// Validate checks the heat constants for internal consistency.
func (h HeatConfig) Validate() error {
	if h.MinHeat <= 0 || h.MaxHeat <= h.MinHeat {
		return errors.Errorf("invalid heat bounds: min=%v max=%v", h.MinHeat, h.MaxHeat)
	}
	if h.DecayRate <= 0 || h.DecayRate >= 1 {
		return errors.Errorf("decay rate must be in (0, 1), got %v", h.DecayRate)
	}
	if h.InitialHeat < h.MinHeat || h.InitialHeat > h.MaxHeat {
		return errors.Errorf("initial heat %v outside [%v, %v]", h.InitialHeat, h.MinHeat, h.MaxHeat)
	}
	if h.AccessBoost < 0 || h.MentionBoost < 0 {
		return errors.New("boost values must be non-negative")
	}
	return nil
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// getEnvOrDefault returns the environment variable value or the default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnvOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getFloatEnvOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// FromEnv loads configuration from HEARTH_* environment variables.
func (p *Profile) FromEnv() {
	p.Mode = getEnvOrDefault("HEARTH_MODE", p.Mode)
	p.Driver = getEnvOrDefault("HEARTH_DRIVER", p.Driver)
	p.DSN = getEnvOrDefault("HEARTH_DSN", p.DSN)
	p.DefaultOwner = getEnvOrDefault("HEARTH_DEFAULT_OWNER", p.DefaultOwner)

	p.OpenAIAPIKey = getEnvOrDefault("HEARTH_OPENAI_API_KEY", p.OpenAIAPIKey)
	p.OpenAIBaseURL = getEnvOrDefault("HEARTH_OPENAI_BASE_URL", "https://api.openai.com/v1")
	p.EmbeddingModel = getEnvOrDefault("HEARTH_EMBEDDING_MODEL", "text-embedding-3-small")
	p.EmbeddingDim = getIntEnvOrDefault("HEARTH_EMBEDDING_DIM", 1536)
	p.ExtractModel = getEnvOrDefault("HEARTH_EXTRACT_MODEL", "gpt-4o-mini")

	p.EmbedCacheCapacity = getIntEnvOrDefault("HEARTH_EMBED_CACHE_CAPACITY", 256)
	p.OversampleFactor = getIntEnvOrDefault("HEARTH_OVERSAMPLE_FACTOR", 3)

	if v := os.Getenv("HEARTH_DECAY_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			p.DecayInterval = d
		}
	}

	p.Heat.InitialHeat = getFloatEnvOrDefault("HEARTH_HEAT_INITIAL", p.Heat.InitialHeat)
	p.Heat.DecayRate = getFloatEnvOrDefault("HEARTH_HEAT_DECAY_RATE", p.Heat.DecayRate)
	p.Heat.AccessBoost = getFloatEnvOrDefault("HEARTH_HEAT_ACCESS_BOOST", p.Heat.AccessBoost)
	p.Heat.MentionBoost = getFloatEnvOrDefault("HEARTH_HEAT_MENTION_BOOST", p.Heat.MentionBoost)
	p.Heat.MinHeat = getFloatEnvOrDefault("HEARTH_HEAT_MIN", p.Heat.MinHeat)
	p.Heat.MaxHeat = getFloatEnvOrDefault("HEARTH_HEAT_MAX", p.Heat.MaxHeat)
}

// Validate normalises and checks the profile.
func (p *Profile) Validate() error {
	if p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "dev"
	}
	if p.Driver == "" {
		p.Driver = "sqlite"
	}
	if p.Driver != "memory" && p.DSN == "" {
		return errors.Errorf("dsn is required for driver %q", p.Driver)
	}
	if p.DefaultOwner == "" {
		p.DefaultOwner = "default"
	}
	if p.EmbedCacheCapacity <= 0 {
		p.EmbedCacheCapacity = 256
	}
	if p.OversampleFactor <= 0 {
		p.OversampleFactor = 3
	}
	if p.DecayInterval <= 0 {
		p.DecayInterval = 24 * time.Hour
	}
	if p.Heat == (HeatConfig{}) {
		p.Heat = DefaultHeatConfig()
	}
	if err := p.Heat.Validate(); err != nil {
		return errors.Wrap(err, "invalid heat configuration")
	}
	return nil
}

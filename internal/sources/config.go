package sources

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MrSnakeDoc/jobhub/internal/breaker"
	"github.com/MrSnakeDoc/jobhub/internal/ratelimit"
)

// RateLimitConfig is the yaml shape of ratelimit.Limit.
type RateLimitConfig struct {
	MaxRequests int           `yaml:"max_requests"`
	Window      time.Duration `yaml:"window"`
}

// BreakerConfig is the yaml shape of breaker.Settings.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	ResetTimeout     time.Duration `yaml:"reset_timeout"`
	HalfOpenMax      int           `yaml:"half_open_max"`
}

// ProviderConfig is one entry under "providers:". Zero fields inherit "defaults:".
type ProviderConfig struct {
	Enabled   *bool             `yaml:"enabled"`
	BaseURL   string            `yaml:"base_url"`
	Timeout   time.Duration     `yaml:"timeout"`
	RateLimit RateLimitConfig   `yaml:"rate_limit"`
	Breaker   BreakerConfig     `yaml:"breaker"`
	Options   map[string]string `yaml:"options"`
}

// ProvidersConfig is the root of providers.yaml.
type ProvidersConfig struct {
	Defaults  ProviderConfig            `yaml:"defaults"`
	Providers map[string]ProviderConfig `yaml:"providers"`
}

// ProviderSettings is a provider entry with defaults applied.
type ProviderSettings struct {
	Name      string
	Enabled   bool
	BaseURL   string
	Timeout   time.Duration
	RateLimit ratelimit.Limit
	Breaker   breaker.Settings
	Options   map[string]string
}

// Option returns an option value or def when unset.
func (s ProviderSettings) Option(key, def string) string {
	if v, ok := s.Options[key]; ok && v != "" {
		return v
	}
	return def
}

var builtinDefaults = ProviderConfig{
	Timeout:   DefaultTimeout,
	RateLimit: RateLimitConfig{MaxRequests: 30, Window: time.Minute},
	Breaker: BreakerConfig{
		FailureThreshold: breaker.DefaultFailureThreshold,
		ResetTimeout:     breaker.DefaultResetTimeout,
		HalfOpenMax:      breaker.DefaultHalfOpenMaxRequests,
	},
}

// Loader reads providers.yaml.
type Loader struct {
	filePath string
}

func NewLoader(filePath string) *Loader {
	return &Loader{filePath: filePath}
}

// Load parses the file after expanding ${VAR} references from the
// environment. An empty path yields an empty config (all built-in defaults).
func (l *Loader) Load() (*ProvidersConfig, error) {
	if l.filePath == "" {
		return &ProvidersConfig{}, nil
	}

	data, err := os.ReadFile(l.filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	return Parse(data)
}

// Parse decodes providers.yaml content.
func Parse(data []byte) (*ProvidersConfig, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg ProvidersConfig
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse providers yaml: %w", err)
	}
	return &cfg, nil
}

// For resolves the settings of one provider: entry, then file defaults,
// then built-in defaults. Providers are enabled unless told otherwise.
func (c *ProvidersConfig) For(name string) ProviderSettings {
	var entry ProviderConfig
	if c != nil {
		entry = merge(c.Providers[name], c.Defaults)
	}
	entry = merge(entry, builtinDefaults)

	enabled := true
	if entry.Enabled != nil {
		enabled = *entry.Enabled
	}

	return ProviderSettings{
		Name:    name,
		Enabled: enabled,
		BaseURL: entry.BaseURL,
		Timeout: entry.Timeout,
		RateLimit: ratelimit.Limit{
			MaxRequests: entry.RateLimit.MaxRequests,
			Window:      entry.RateLimit.Window,
		},
		Breaker: breaker.Settings{
			FailureThreshold:    entry.Breaker.FailureThreshold,
			ResetTimeout:        entry.Breaker.ResetTimeout,
			HalfOpenMaxRequests: entry.Breaker.HalfOpenMax,
		},
		Options: entry.Options,
	}
}

func merge(p, def ProviderConfig) ProviderConfig {
	if p.Enabled == nil {
		p.Enabled = def.Enabled
	}
	if p.BaseURL == "" {
		p.BaseURL = def.BaseURL
	}
	if p.Timeout <= 0 {
		p.Timeout = def.Timeout
	}
	if p.RateLimit.MaxRequests <= 0 {
		p.RateLimit.MaxRequests = def.RateLimit.MaxRequests
	}
	if p.RateLimit.Window <= 0 {
		p.RateLimit.Window = def.RateLimit.Window
	}
	if p.Breaker.FailureThreshold <= 0 {
		p.Breaker.FailureThreshold = def.Breaker.FailureThreshold
	}
	if p.Breaker.ResetTimeout <= 0 {
		p.Breaker.ResetTimeout = def.Breaker.ResetTimeout
	}
	if p.Breaker.HalfOpenMax <= 0 {
		p.Breaker.HalfOpenMax = def.Breaker.HalfOpenMax
	}
	if len(def.Options) > 0 {
		opts := make(map[string]string, len(def.Options)+len(p.Options))
		for k, v := range def.Options {
			opts[k] = v
		}
		for k, v := range p.Options {
			opts[k] = v
		}
		p.Options = opts
	}
	return p
}

package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/park285/triarii/internal/triarii"
)

type AppConfig struct {
	HTTPAddr       string `mapstructure:"HTTP_ADDR"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`

	RedisURL    string `mapstructure:"REDIS_URL"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`

	GameTTLHours       int `mapstructure:"GAME_TTL_HOURS"`
	CommitRetries      int `mapstructure:"COMMIT_RETRIES"`
	ShutdownTimeoutSec int `mapstructure:"SHUTDOWN_TIMEOUT_SEC"`
	ResultsPageLimit   int `mapstructure:"RESULTS_PAGE_LIMIT"`

	MessagesDir string `mapstructure:"MESSAGES_DIR"`

	RulesFofSeed           string `mapstructure:"RULES_FOF_SEED"`
	RulesFofThreshold      int    `mapstructure:"RULES_FOF_THRESHOLD"`
	RulesPinRatio          int    `mapstructure:"RULES_PIN_RATIO"`
	RulesOversizeThreshold int    `mapstructure:"RULES_OVERSIZE_THRESHOLD"`
	RulesEndzoneTarget     int    `mapstructure:"RULES_ENDZONE_TARGET"`
}

var defaults = map[string]any{
	"HTTP_ADDR":                ":8080",
	"ALLOWED_ORIGINS":          "",
	"REDIS_URL":                "",
	"DATABASE_URL":             "",
	"GAME_TTL_HOURS":           24,
	"COMMIT_RETRIES":           5,
	"SHUTDOWN_TIMEOUT_SEC":     10,
	"RESULTS_PAGE_LIMIT":       20,
	"MESSAGES_DIR":             "",
	"RULES_FOF_SEED":           string(triarii.SeedCorner),
	"RULES_FOF_THRESHOLD":      4,
	"RULES_PIN_RATIO":          2,
	"RULES_OVERSIZE_THRESHOLD": 8,
	"RULES_ENDZONE_TARGET":     6,
}

// Load reads configuration from the optional file at path and then from the
// environment, which wins.
func Load(path string) (*AppConfig, error) {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()

	if strings.TrimSpace(path) != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.trim()

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.GameTTLHours <= 0 {
		cfg.GameTTLHours = 24
	}
	if cfg.CommitRetries <= 0 {
		cfg.CommitRetries = 5
	}
	if cfg.ShutdownTimeoutSec <= 0 {
		cfg.ShutdownTimeoutSec = 10
	}
	if cfg.ResultsPageLimit <= 0 {
		cfg.ResultsPageLimit = 20
	}
	if _, err := cfg.Policy(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) trim() {
	c.HTTPAddr = strings.TrimSpace(c.HTTPAddr)
	c.AllowedOrigins = strings.TrimSpace(c.AllowedOrigins)
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
}

// Origins splits ALLOWED_ORIGINS. An empty list allows any origin.
func (c *AppConfig) Origins() []string {
	var out []string
	for _, p := range strings.Split(c.AllowedOrigins, ",") {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// GameTTL is how long an idle game stays in Redis.
func (c *AppConfig) GameTTL() time.Duration { return time.Duration(c.GameTTLHours) * time.Hour }

// ShutdownTimeout bounds graceful HTTP shutdown.
func (c *AppConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSec) * time.Second
}

// Policy returns the rule policy described by the RULES_* keys.
func (c *AppConfig) Policy() (triarii.Policy, error) {
	seed, err := triarii.ParseSeedMode(c.RulesFofSeed)
	if err != nil {
		return triarii.Policy{}, err
	}
	p := triarii.Policy{
		PinRatio:          c.RulesPinRatio,
		OversizeThreshold: c.RulesOversizeThreshold,
		SmallStack:        c.RulesFofThreshold,
		EndzoneTarget:     c.RulesEndzoneTarget,
		Seed:              seed,
	}
	if err := p.Validate(); err != nil {
		return triarii.Policy{}, fmt.Errorf("rules: %w", err)
	}
	return p, nil
}

package config

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Config holds all the configuration for the gateway.
// The structure tags (mapstructure) tell Viper which YAML field maps to which Go struct field.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Explain   ExplainConfig   `mapstructure:"explain"`
	Cache     CacheConfig     `mapstructure:"cache"`
	RateLimit RateLimitConfig `mapstructure:"ratelimit"`
	Security  SecurityConfig  `mapstructure:"security"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Admin     AdminConfig     `mapstructure:"admin"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	// GlobalRPS throttles the whole process in front of the per-identity
	// windows. Zero disables the throttle.
	GlobalRPS   float64 `mapstructure:"global_rps"`
	GlobalBurst int     `mapstructure:"global_burst"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Enabled  bool   `mapstructure:"enabled"`
}

// ExplainConfig covers selection validation and prompt construction.
type ExplainConfig struct {
	Provider string `mapstructure:"provider"`
	Model    string `mapstructure:"model"`

	MinSelectionLength int `mapstructure:"min_selection_length"`
	MaxSelectionLength int `mapstructure:"max_selection_length"`
	MinWords           int `mapstructure:"min_words"`
	MaxWords           int `mapstructure:"max_words"`

	PromptTemplate    string  `mapstructure:"prompt_template"`
	LanguageDirective string  `mapstructure:"language_directive"`
	MaxTokens         int     `mapstructure:"max_tokens"`
	Temperature       float64 `mapstructure:"temperature"`
	TimeoutSeconds    int     `mapstructure:"timeout_seconds"`

	BlockedWords              []string `mapstructure:"blocked_words"`
	BlockedWordsCaseSensitive bool     `mapstructure:"blocked_words_case_sensitive"`
	BlockedWordsWholeWordOnly bool     `mapstructure:"blocked_words_whole_word_only"`
}

type CacheConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	DurationHours int  `mapstructure:"duration_hours"`
}

// RateLimitConfig carries the fixed-window ceilings per identity kind.
type RateLimitConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	PerMinuteAuth int  `mapstructure:"per_minute_authenticated"`
	PerMinuteAnon int  `mapstructure:"per_minute_anonymous"`
	PerHourAuth   int  `mapstructure:"per_hour_authenticated"`
	PerHourAnon   int  `mapstructure:"per_hour_anonymous"`
	PerDayAuth    int  `mapstructure:"per_day_authenticated"`
	PerDayAnon    int  `mapstructure:"per_day_anonymous"`
}

type SecurityConfig struct {
	// VaultSecret salts the credential integrity tag. Required for any
	// encrypt/decrypt operation to succeed.
	VaultSecret string `mapstructure:"vault_secret"`
	// AllowedOrigins is matched against the request Origin header when set.
	AllowedOrigins []string `mapstructure:"allowed_origins"`
	// MaxTimestampSkewSeconds bounds the client timestamp replay window.
	MaxTimestampSkewSeconds int `mapstructure:"max_timestamp_skew_seconds"`
}

type LoggingConfig struct {
	Enabled       bool `mapstructure:"enabled"`
	RetentionDays int  `mapstructure:"retention_days"`
}

type AdminConfig struct {
	Key string `mapstructure:"key"`
}

// Store wraps configuration with thread-safe access and hot-reload updates.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

func (s *Store) Get() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cfg == nil {
		return nil
	}
	cpy := *s.cfg
	return &cpy
}

func (s *Store) set(cfg *Config) {
	s.mu.Lock()
	s.cfg = cfg
	s.mu.Unlock()
}

// NewStatic wraps a fixed config without any file watching. Used by tests
// and callers that assemble config programmatically.
func NewStatic(cfg *Config) *Store {
	applyDefaults(cfg)
	return &Store{cfg: cfg}
}

// LoadAndWatch loads the config and watches for on-disk changes.
func LoadAndWatch() (*Store, error) {
	v := viper.NewWithOptions(viper.KeyDelimiter("::"))
	v.AddConfigPath("./configs")
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.SetEnvPrefix("GLOSSA")
	v.SetEnvKeyReplacer(strings.NewReplacer("::", "_", ".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, err
	}

	store := &Store{}
	if err := refresh(v, store); err != nil {
		return nil, err
	}

	v.WatchConfig()
	v.OnConfigChange(func(e fsnotify.Event) {
		if err := refresh(v, store); err != nil {
			log.Printf("[CONFIG] reload failed: %v", err)
		} else {
			log.Printf("[CONFIG] reloaded from %s", e.Name)
		}
	})

	return store, nil
}

// Load preserves the single-shot API: it loads once and does not watch.
func Load() (*Config, error) {
	store, err := LoadAndWatch()
	if err != nil {
		return nil, err
	}
	return store.Get(), nil
}

func refresh(v *viper.Viper, store *Store) error {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return err
	}
	applyDefaults(&cfg)
	if err := Validate(&cfg); err != nil {
		return err
	}
	store.set(&cfg)
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.Explain.Provider == "" {
		cfg.Explain.Provider = "openai"
	}
	if cfg.Explain.MinSelectionLength == 0 {
		cfg.Explain.MinSelectionLength = 3
	}
	if cfg.Explain.MaxSelectionLength == 0 {
		cfg.Explain.MaxSelectionLength = 1000
	}
	if cfg.Explain.MinWords == 0 {
		cfg.Explain.MinWords = 1
	}
	if cfg.Explain.MaxWords == 0 {
		cfg.Explain.MaxWords = 200
	}
	if cfg.Explain.MaxTokens == 0 {
		cfg.Explain.MaxTokens = 500
	}
	if cfg.Explain.Temperature == 0 {
		cfg.Explain.Temperature = 0.3
	}
	if cfg.Explain.TimeoutSeconds == 0 {
		cfg.Explain.TimeoutSeconds = 8
	}
	if cfg.Cache.DurationHours == 0 {
		cfg.Cache.DurationHours = 24
	}
	if cfg.RateLimit.PerMinuteAuth == 0 {
		cfg.RateLimit.PerMinuteAuth = 10
	}
	if cfg.RateLimit.PerMinuteAnon == 0 {
		cfg.RateLimit.PerMinuteAnon = 5
	}
	if cfg.RateLimit.PerHourAuth == 0 {
		cfg.RateLimit.PerHourAuth = 150
	}
	if cfg.RateLimit.PerHourAnon == 0 {
		cfg.RateLimit.PerHourAnon = 50
	}
	if cfg.RateLimit.PerDayAuth == 0 {
		cfg.RateLimit.PerDayAuth = 1000
	}
	if cfg.RateLimit.PerDayAnon == 0 {
		cfg.RateLimit.PerDayAnon = 200
	}
	if cfg.Security.MaxTimestampSkewSeconds == 0 {
		cfg.Security.MaxTimestampSkewSeconds = 300
	}
	if cfg.Logging.RetentionDays == 0 {
		cfg.Logging.RetentionDays = 30
	}
}

// Validate rejects configurations that would misbehave at request time.
// Runs once per load/reload, never at read sites.
func Validate(cfg *Config) error {
	if cfg.Explain.MinSelectionLength > cfg.Explain.MaxSelectionLength {
		return fmt.Errorf("min_selection_length %d exceeds max_selection_length %d",
			cfg.Explain.MinSelectionLength, cfg.Explain.MaxSelectionLength)
	}
	if cfg.Explain.MinWords > cfg.Explain.MaxWords {
		return fmt.Errorf("min_words %d exceeds max_words %d",
			cfg.Explain.MinWords, cfg.Explain.MaxWords)
	}
	if cfg.Explain.Temperature < 0 || cfg.Explain.Temperature > 2 {
		return fmt.Errorf("temperature %.2f out of range [0,2]", cfg.Explain.Temperature)
	}
	return nil
}

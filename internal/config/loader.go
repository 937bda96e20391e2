package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Defaults applied by [ApplyDefaults].
const (
	DefaultFrameSize    = 4096
	DefaultCaptureRate  = 16000
	DefaultPlaybackRate = 24000
	DefaultStopCooldown = 500 * time.Millisecond
	DefaultLiveVoice    = "Zephyr"
	DefaultCoachVoice   = "Kore"
	DefaultStorageDir   = "./data"

	// APIKeyEnv is consulted when a provider entry carries no API key.
	APIKeyEnv = "GEMINI_API_KEY"
)

// ValidProviderNames lists known provider names per provider kind.
// Used by [Validate] to warn about unrecognised provider names.
var ValidProviderNames = map[string][]string{
	"chat":  {"gemini", "openai", "anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"},
	"media": {"gemini"},
	"live":  {"gemini-live"},
}

// Load reads the YAML configuration file at path and returns a validated [Config].
// It is a convenience wrapper around [LoadFromReader] and [Validate].
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

// LoadFromReader decodes a YAML config from r, resolves environment
// references, applies defaults and validates the result.
// Useful in tests where configs are constructed from string literals.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	ResolveEnv(cfg)
	ApplyDefaults(cfg)
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ResolveEnv expands ${VAR} references in provider API keys and the
// Postgres DSN. A provider with no key falls back to $GEMINI_API_KEY.
func ResolveEnv(cfg *Config) {
	entries := []*ProviderEntry{&cfg.Providers.Chat, &cfg.Providers.Suggest, &cfg.Providers.Media, &cfg.Providers.Live}
	for i := range cfg.Providers.ChatFallbacks {
		entries = append(entries, &cfg.Providers.ChatFallbacks[i])
	}
	for _, e := range entries {
		if e.Name == "" {
			continue
		}
		e.APIKey = expandEnv(e.APIKey)
		if e.APIKey == "" {
			e.APIKey = os.Getenv(APIKeyEnv)
		}
	}
	cfg.Storage.PostgresDSN = expandEnv(cfg.Storage.PostgresDSN)
}

// expandEnv resolves a whole-value ${VAR} reference. Other values are
// returned unchanged so keys containing '$' survive.
func expandEnv(v string) string {
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return os.Getenv(v[2 : len(v)-1])
	}
	return v
}

// ApplyDefaults fills zero values with their defaults.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.LogLevel == "" {
		cfg.Server.LogLevel = LogInfo
	}
	if cfg.Live.FrameSize == 0 {
		cfg.Live.FrameSize = DefaultFrameSize
	}
	if cfg.Live.CaptureRate == 0 {
		cfg.Live.CaptureRate = DefaultCaptureRate
	}
	if cfg.Live.PlaybackRate == 0 {
		cfg.Live.PlaybackRate = DefaultPlaybackRate
	}
	if cfg.Live.StopCooldown == 0 {
		cfg.Live.StopCooldown = DefaultStopCooldown
	}
	if cfg.Live.Voice == "" {
		cfg.Live.Voice = DefaultLiveVoice
	}
	if cfg.Coach.Voice == "" {
		cfg.Coach.Voice = DefaultCoachVoice
	}
	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = StorageFile
	}
	if cfg.Storage.Backend == StorageFile && cfg.Storage.Dir == "" {
		cfg.Storage.Dir = DefaultStorageDir
	}
}

// Enabled reports whether a voice processing toggle is on. Unset means on.
func Enabled(b *bool) bool {
	return b == nil || *b
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	// Server
	if cfg.Server.LogLevel != "" && !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}
	if tls := cfg.Server.TLS; tls != nil && (tls.CertFile == "" || tls.KeyFile == "") {
		errs = append(errs, errors.New("server.tls requires both cert_file and key_file"))
	}

	// Providers
	if cfg.Providers.Chat.Name == "" {
		errs = append(errs, errors.New("providers.chat.name is required"))
	}
	validateProviderName("chat", cfg.Providers.Chat.Name)
	validateProviderName("chat", cfg.Providers.Suggest.Name)
	for i, fb := range cfg.Providers.ChatFallbacks {
		if fb.Name == "" {
			errs = append(errs, fmt.Errorf("providers.chat_fallbacks[%d].name is required", i))
		}
		validateProviderName("chat", fb.Name)
	}
	validateProviderName("media", cfg.Providers.Media.Name)
	validateProviderName("live", cfg.Providers.Live.Name)

	if cfg.Providers.Media.Name == "" {
		slog.Warn("providers.media is not configured; image generation, image editing and speech are unavailable")
	}
	if cfg.Providers.Live.Name == "" {
		slog.Warn("providers.live is not configured; live conversations are unavailable")
	}

	// Live
	if cfg.Live.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("live.frame_size %d must be positive", cfg.Live.FrameSize))
	}
	if cfg.Live.CaptureRate < 0 {
		errs = append(errs, fmt.Errorf("live.capture_rate %d must be positive", cfg.Live.CaptureRate))
	}
	if cfg.Live.PlaybackRate < 0 {
		errs = append(errs, fmt.Errorf("live.playback_rate %d must be positive", cfg.Live.PlaybackRate))
	}
	if cfg.Live.StopCooldown < 0 {
		errs = append(errs, fmt.Errorf("live.stop_cooldown %s must not be negative", cfg.Live.StopCooldown))
	}

	// Coach
	if loc := cfg.Coach.Location; loc != nil {
		if loc.Latitude < -90 || loc.Latitude > 90 {
			errs = append(errs, fmt.Errorf("coach.location.latitude %.4f is out of range [-90, 90]", loc.Latitude))
		}
		if loc.Longitude < -180 || loc.Longitude > 180 {
			errs = append(errs, fmt.Errorf("coach.location.longitude %.4f is out of range [-180, 180]", loc.Longitude))
		}
	}

	// Storage
	if cfg.Storage.Backend != "" && !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
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
	slog.Warn("unknown provider name, may be a typo or third-party provider",
		"kind", kind,
		"name", name,
		"known", known,
	)
}

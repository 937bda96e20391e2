// Package config provides the configuration schema, loader, and provider registry
// for the Dr. Arvin coaching client.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects where chat sessions and the profile are persisted.
type StorageBackend string

const (
	// StorageFile keeps one JSON document per key in a directory.
	StorageFile StorageBackend = "file"

	// StoragePostgres keeps documents in the kv_blobs table.
	StoragePostgres StorageBackend = "postgres"
)

// IsValid reports whether b is a recognised storage backend.
func (b StorageBackend) IsValid() bool {
	return b == StorageFile || b == StoragePostgres
}

// Config is the root configuration structure.
// It is typically loaded from a YAML file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Providers ProvidersConfig `yaml:"providers"`
	Live      LiveConfig      `yaml:"live"`
	Coach     CoachConfig     `yaml:"coach"`
	Storage   StorageConfig   `yaml:"storage"`

	// OutputDir receives generated images. Empty keeps images inline in the
	// chat history as data URLs.
	OutputDir string `yaml:"output_dir"`

	// Profile seeds empty fields of the stored user profile at startup.
	Profile ProfileSeed `yaml:"profile"`
}

// ServerConfig holds the health/metrics listener and logging settings.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics
	// (e.g., ":9090"). Empty disables the listener.
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`

	// TLS configures TLS for the listener. When nil, it serves plain HTTP.
	TLS *TLSConfig `yaml:"tls"`
}

// TLSConfig holds TLS certificate paths for enabling HTTPS.
type TLSConfig struct {
	// CertFile is the path to the PEM-encoded TLS certificate.
	CertFile string `yaml:"cert_file"`

	// KeyFile is the path to the PEM-encoded TLS private key.
	KeyFile string `yaml:"key_file"`
}

// ProvidersConfig declares which provider implementation backs each concern.
// Each entry selects a named provider registered in the [Registry].
type ProvidersConfig struct {
	// Chat generates text replies.
	Chat ProviderEntry `yaml:"chat"`

	// ChatFallbacks are tried in order when Chat fails or its circuit is open.
	ChatFallbacks []ProviderEntry `yaml:"chat_fallbacks"`

	// Suggest answers mode suggestions and image prompt refinement. Empty
	// reuses Chat.
	Suggest ProviderEntry `yaml:"suggest"`

	// Media generates and edits images and synthesises speech.
	Media ProviderEntry `yaml:"media"`

	// Live runs duplex audio conversations.
	Live ProviderEntry `yaml:"live"`
}

// ProviderEntry is the common configuration block shared by all provider types.
// The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation (e.g., "gemini", "openai").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any. A value
	// of the form ${VAR} is read from the environment.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint.
	// Leave empty to use the provider's built-in default.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider.
	Model string `yaml:"model"`

	// Options holds provider-specific configuration values not covered by the
	// standard fields above. Values may be strings, numbers, booleans, or nested maps.
	Options map[string]any `yaml:"options"`
}

// LiveConfig tunes the live audio conversation.
type LiveConfig struct {
	// Voice is the prebuilt voice of the remote model.
	Voice string `yaml:"voice"`

	// FrameSize is the number of samples per captured frame. Default: 4096.
	FrameSize int `yaml:"frame_size"`

	// CaptureRate is the microphone sample rate in Hz. Default: 16000.
	CaptureRate int `yaml:"capture_rate"`

	// PlaybackRate is the output sample rate in Hz. Default: 24000.
	PlaybackRate int `yaml:"playback_rate"`

	// StopCooldown is the time after a stop during which Start is refused.
	// Default: 500ms.
	StopCooldown time.Duration `yaml:"stop_cooldown"`

	// Voice processing toggles. Unset means enabled.
	EchoCancellation *bool `yaml:"echo_cancellation"`
	NoiseSuppression *bool `yaml:"noise_suppression"`
	AutoGainControl  *bool `yaml:"auto_gain_control"`

	// InputDevice selects a platform-specific capture device.
	InputDevice string `yaml:"input_device"`

	// FFmpegPath and FFplayPath locate the audio tools. Empty resolves them
	// via PATH.
	FFmpegPath string `yaml:"ffmpeg_path"`
	FFplayPath string `yaml:"ffplay_path"`
}

// CoachConfig tunes text, image and speech exchanges.
type CoachConfig struct {
	// Voice is the prebuilt text-to-speech voice. Default: "Kore".
	Voice string `yaml:"voice"`

	// AutoSuggest requests a mode suggestion after long replies.
	AutoSuggest bool `yaml:"auto_suggest"`

	// Location biases maps grounding. Nil disables it.
	Location *Location `yaml:"location"`
}

// Location is a position in degrees.
type Location struct {
	Latitude  float64 `yaml:"latitude"`
	Longitude float64 `yaml:"longitude"`
}

// StorageConfig selects and configures the persistence backend.
type StorageConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend StorageBackend `yaml:"backend"`

	// Dir is the file backend's directory. Default: "./data".
	Dir string `yaml:"dir"`

	// PostgresDSN is the PostgreSQL connection string for the postgres backend.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ProfileSeed pre-fills the user profile on first run.
type ProfileSeed struct {
	Name          string `yaml:"name"`
	City          string `yaml:"city"`
	Province      string `yaml:"province"`
	BusinessName  string `yaml:"business_name"`
	BusinessType  string `yaml:"business_type"`
	BusinessStage string `yaml:"business_stage"`
}

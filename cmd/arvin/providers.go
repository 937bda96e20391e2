package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	anyllmlib "github.com/mozilla-ai/any-llm-go"

	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/app"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/config"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/health"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/observe"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/internal/resilience"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live"
	livegemini "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/live/gemini"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm/anyllm"
	geminillm "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm/gemini"
	oaillm "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/llm/openai"
	"github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media"
	mediagemini "github.com/xgamer1399-cpu/Dr.arvin-AI-pro/pkg/provider/media/gemini"
)

// ── Provider wiring ───────────────────────────────────────────────────────────

// anyLLMProviders share one factory: optional APIKey + optional BaseURL.
var anyLLMProviders = []string{"anthropic", "ollama", "deepseek", "mistral", "groq", "llamacpp", "llamafile"}

// registerBuiltinProviders wires all built-in provider factories into reg.
func registerBuiltinProviders(reg *config.Registry) {
	// ── Chat ──────────────────────────────────────────────────────────────────

	reg.RegisterLLM("gemini", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []geminillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, geminillm.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, geminillm.WithTimeout(d))
		}
		return geminillm.New(context.Background(), entry.APIKey, entry.Model, opts...)
	})

	reg.RegisterLLM("openai", func(entry config.ProviderEntry) (llm.Provider, error) {
		var opts []oaillm.Option
		if entry.BaseURL != "" {
			opts = append(opts, oaillm.WithBaseURL(entry.BaseURL))
		}
		if org := optString(entry.Options, "organization"); org != "" {
			opts = append(opts, oaillm.WithOrganization(org))
		}
		if d := optDuration(entry.Options, "timeout"); d > 0 {
			opts = append(opts, oaillm.WithTimeout(d))
		}
		return oaillm.New(entry.APIKey, entry.Model, opts...)
	})

	for _, providerName := range anyLLMProviders {
		reg.RegisterLLM(providerName, func(entry config.ProviderEntry) (llm.Provider, error) {
			var opts []anyllmlib.Option
			// ollama is a local server; it uses BaseURL for the address, not an API key.
			if entry.APIKey != "" && providerName != "ollama" {
				opts = append(opts, anyllmlib.WithAPIKey(entry.APIKey))
			}
			if entry.BaseURL != "" {
				opts = append(opts, anyllmlib.WithBaseURL(entry.BaseURL))
			}
			return anyllm.New(providerName, entry.Model, opts...)
		})
	}

	// ── Media ─────────────────────────────────────────────────────────────────

	reg.RegisterMedia("gemini", func(entry config.ProviderEntry) (media.Provider, error) {
		var copts []geminillm.Option
		if entry.BaseURL != "" {
			copts = append(copts, geminillm.WithBaseURL(entry.BaseURL))
		}
		client, err := geminillm.NewClient(context.Background(), entry.APIKey, copts...)
		if err != nil {
			return nil, err
		}
		var opts []mediagemini.Option
		image := entry.Model
		if image == "" {
			image = optString(entry.Options, "image_model")
		}
		if image != "" {
			opts = append(opts, mediagemini.WithImageModel(image))
		}
		if speech := optString(entry.Options, "speech_model"); speech != "" {
			opts = append(opts, mediagemini.WithSpeechModel(speech))
		}
		return mediagemini.New(client, opts...)
	})

	// ── Live ──────────────────────────────────────────────────────────────────

	reg.RegisterLive("gemini-live", func(entry config.ProviderEntry) (live.Provider, error) {
		opts := []livegemini.Option{livegemini.WithLogger(slog.Default())}
		if entry.Model != "" {
			opts = append(opts, livegemini.WithModel(entry.Model))
		}
		if entry.BaseURL != "" {
			opts = append(opts, livegemini.WithBaseURL(entry.BaseURL))
		}
		if d := optDuration(entry.Options, "keepalive"); d > 0 {
			opts = append(opts, livegemini.WithKeepalive(d))
		}
		return livegemini.New(entry.APIKey, opts...), nil
	})
}

// buildProviders instantiates all providers named in cfg using the registry
// and returns them in an [app.Providers] struct for the application to consume.
// Chat and media are wrapped in circuit-breaking fallback groups whose health
// is reported on /readyz.
func buildProviders(cfg *config.Config, reg *config.Registry, metrics *observe.Metrics) (*app.Providers, error) {
	fbCfg := func(kind string) resilience.FallbackConfig {
		return resilience.FallbackConfig{
			Logger: slog.Default().With("kind", kind),
			OnFailover: func(name string, err error) {
				metrics.RecordProviderError(context.Background(), name, kind)
			},
		}
	}

	primary, err := reg.CreateLLM(cfg.Providers.Chat)
	if err != nil {
		return nil, fmt.Errorf("create chat provider %q: %w", cfg.Providers.Chat.Name, err)
	}
	chat := resilience.NewLLMFallback(primary, cfg.Providers.Chat.Name, fbCfg("chat"))
	slog.Info("provider created", "kind", "chat", "name", cfg.Providers.Chat.Name)
	for i, entry := range cfg.Providers.ChatFallbacks {
		p, err := reg.CreateLLM(entry)
		if err != nil {
			return nil, fmt.Errorf("create chat fallback %d %q: %w", i, entry.Name, err)
		}
		chat.AddFallback(entry.Name, p)
		slog.Info("provider created", "kind", "chat_fallback", "name", entry.Name)
	}

	ps := &app.Providers{
		Chat:     chat,
		ChatName: cfg.Providers.Chat.Name,
		Checks:   []health.Checker{{Name: "chat", Check: chat.Healthy}},
	}

	if name := cfg.Providers.Suggest.Name; name != "" {
		p, err := reg.CreateLLM(cfg.Providers.Suggest)
		if err != nil {
			return nil, fmt.Errorf("create suggest provider %q: %w", name, err)
		}
		ps.Suggest = p
		slog.Info("provider created", "kind", "suggest", "name", name)
	}

	if name := cfg.Providers.Media.Name; name != "" {
		p, err := reg.CreateMedia(cfg.Providers.Media)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("media provider not available, image and speech features disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create media provider %q: %w", name, err)
		} else {
			mf := resilience.NewMediaFallback(p, name, fbCfg("media"))
			ps.Media = mf
			ps.Checks = append(ps.Checks, health.Checker{Name: "media", Check: mf.Healthy, Optional: true})
			slog.Info("provider created", "kind", "media", "name", name)
		}
	}

	if name := cfg.Providers.Live.Name; name != "" {
		p, err := reg.CreateLive(cfg.Providers.Live)
		if errors.Is(err, config.ErrProviderNotRegistered) {
			slog.Warn("live provider not available, voice conversations disabled", "name", name)
		} else if err != nil {
			return nil, fmt.Errorf("create live provider %q: %w", name, err)
		} else {
			ps.Live = p
			slog.Info("provider created", "kind", "live", "name", name)
		}
	}

	return ps, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

// optString extracts a string value from a provider Options map[string]any.
// Returns "" if the map is nil, the key is absent, or the value is not a string.
func optString(opts map[string]any, key string) string {
	if opts == nil {
		return ""
	}
	s, _ := opts[key].(string)
	return s
}

// optDuration reads a duration option given either as a string ("30s") or as
// a number of seconds. Invalid values yield 0.
func optDuration(opts map[string]any, key string) time.Duration {
	switch v := opts[key].(type) {
	case string:
		d, err := time.ParseDuration(v)
		if err != nil {
			slog.Warn("ignoring invalid duration option", "key", key, "value", v, "err", err)
			return 0
		}
		return d
	case int:
		return time.Duration(v) * time.Second
	case float64:
		return time.Duration(v * float64(time.Second))
	}
	return 0
}

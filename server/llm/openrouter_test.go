package llm

import (
	"errors"
	"testing"
)

func clearProviderEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{
		"OPENROUTER_API_KEY", "OPENAI_API_KEY", "LLM_PROVIDER",
		"OPENROUTER_API_BASE", "OPENROUTER_BASE_URL", "OPENAI_API_BASE", "OPENAI_BASE_URL",
		"OPENROUTER_SITE_URL", "PUBLIC_ORIGIN", "OPENROUTER_TITLE", "OPENROUTER_APP_TITLE",
		"OPENROUTER_API_KEY_HEADER", "OPENAI_API_KEY_HEADER", "OPENROUTER_API_KEY_PREFIX", "OPENAI_API_KEY_PREFIX",
		"OPENAI_ORG",
	} {
		t.Setenv(k, "")
	}
}

func TestResolveAPIConfigOpenRouterDefaults(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	cfg, err := resolveAPIConfig()
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerOpenRouter {
		t.Fatalf("expected providerOpenRouter, got %v", cfg.Kind)
	}
	if cfg.BaseURL != defaultOpenRouterBase {
		t.Fatalf("unexpected base: %q", cfg.BaseURL)
	}
	if cfg.HeaderName != "Authorization" || cfg.HeaderPrefix != "Bearer " {
		t.Fatalf("unexpected auth header: %q %q", cfg.HeaderName, cfg.HeaderPrefix)
	}
	if got := cfg.ExtraHeaders["HTTP-Referer"]; got != "http://localhost:5173" {
		t.Fatalf("unexpected HTTP-Referer: %q", got)
	}
	if got := cfg.ExtraHeaders["X-Title"]; got != "Graphicarena Dev" {
		t.Fatalf("unexpected X-Title: %q", got)
	}
}

func TestResolveAPIConfigOpenRouterOverrides(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENROUTER_API_KEY", "test-key")
	t.Setenv("OPENROUTER_API_BASE", "https://openrouter.example/api/v1/")
	t.Setenv("PUBLIC_ORIGIN", "https://example.com/app")
	t.Setenv("OPENROUTER_TITLE", "Custom Title")
	cfg, err := resolveAPIConfig()
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.BaseURL != "https://openrouter.example/api/v1" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.BaseURL)
	}
	if got := cfg.ExtraHeaders["Referer"]; got != "https://example.com/app" {
		t.Fatalf("unexpected Referer: %q", got)
	}
	if got := cfg.ExtraHeaders["X-Title"]; got != "Custom Title" {
		t.Fatalf("unexpected X-Title: %q", got)
	}
}

func TestResolveAPIConfigOpenAIOnly(t *testing.T) {
	clearProviderEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-test")
	cfg, err := resolveAPIConfig()
	if err != nil {
		t.Fatalf("resolveAPIConfig returned error: %v", err)
	}
	if cfg.Kind != providerOpenAI {
		t.Fatalf("expected providerOpenAI, got %v", cfg.Kind)
	}
	if cfg.BaseURL != defaultOpenAIBase {
		t.Fatalf("unexpected base: %q", cfg.BaseURL)
	}
	if len(cfg.ExtraHeaders) != 0 {
		t.Fatalf("expected no OpenRouter headers, got %+v", cfg.ExtraHeaders)
	}
}

func TestResolveAPIConfigMissingKey(t *testing.T) {
	clearProviderEnv(t)
	if _, err := resolveAPIConfig(); !errors.Is(err, ErrMissingAPIKey) {
		t.Fatalf("expected ErrMissingAPIKey, got %v", err)
	}
}

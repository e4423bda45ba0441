package llm

import (
	"errors"
	"os"
	"strings"
)

type providerKind int

const (
	providerOpenRouter providerKind = iota
	providerOpenAI
)

const (
	defaultOpenRouterBase = "https://openrouter.ai/api/v1"
	defaultOpenAIBase     = "https://api.openai.com/v1"
	defaultSiteURL        = "http://localhost:5173"
	defaultTitle          = "Graphicarena Dev"
)

// ErrMissingAPIKey is returned when no provider key is configured.
var ErrMissingAPIKey = errors.New("API key missing: set OPENROUTER_API_KEY or OPENAI_API_KEY")

type apiConfig struct {
	Kind         providerKind
	APIKey       string
	BaseURL      string
	HeaderName   string
	HeaderPrefix string
	Organization string
	ExtraHeaders map[string]string
}

func resolveAPIConfig() (apiConfig, error) {
	cfg := apiConfig{ExtraHeaders: map[string]string{}}

	openRouterKey := strings.TrimSpace(os.Getenv("OPENROUTER_API_KEY"))
	openAIKey := strings.TrimSpace(os.Getenv("OPENAI_API_KEY"))

	cfg.Kind = providerOpenRouter
	if openRouterKey == "" && openAIKey != "" {
		cfg.Kind = providerOpenAI
	}
	if override := strings.ToLower(strings.TrimSpace(os.Getenv("LLM_PROVIDER"))); override != "" {
		switch override {
		case "openrouter":
			cfg.Kind = providerOpenRouter
		case "openai":
			cfg.Kind = providerOpenAI
		}
	}

	base := firstNonEmpty(
		os.Getenv("OPENROUTER_API_BASE"),
		os.Getenv("OPENROUTER_BASE_URL"),
		os.Getenv("OPENAI_API_BASE"),
		os.Getenv("OPENAI_BASE_URL"),
	)
	if base == "" {
		if cfg.Kind == providerOpenRouter {
			base = defaultOpenRouterBase
		} else {
			base = defaultOpenAIBase
		}
	}
	cfg.BaseURL = strings.TrimRight(base, "/")
	if strings.Contains(strings.ToLower(cfg.BaseURL), "openrouter") {
		cfg.Kind = providerOpenRouter
	}

	switch cfg.Kind {
	case providerOpenRouter:
		cfg.APIKey = firstNonEmpty(openRouterKey, openAIKey)
	default:
		cfg.APIKey = firstNonEmpty(openAIKey, openRouterKey)
	}
	if cfg.APIKey == "" {
		return apiConfig{}, ErrMissingAPIKey
	}

	headerName := firstNonEmpty(os.Getenv("OPENROUTER_API_KEY_HEADER"), os.Getenv("OPENAI_API_KEY_HEADER"))
	if headerName == "" {
		headerName = "Authorization"
	}
	prefix := os.Getenv("OPENROUTER_API_KEY_PREFIX")
	if prefix == "" {
		prefix = os.Getenv("OPENAI_API_KEY_PREFIX")
	}
	if headerName == "Authorization" && strings.TrimSpace(prefix) == "" {
		prefix = "Bearer "
	}
	cfg.HeaderName = headerName
	cfg.HeaderPrefix = prefix
	cfg.Organization = strings.TrimSpace(os.Getenv("OPENAI_ORG"))

	if cfg.Kind == providerOpenRouter {
		site := firstNonEmpty(os.Getenv("OPENROUTER_SITE_URL"), os.Getenv("PUBLIC_ORIGIN"))
		if site == "" {
			site = defaultSiteURL
		}
		title := firstNonEmpty(os.Getenv("OPENROUTER_TITLE"), os.Getenv("OPENROUTER_APP_TITLE"))
		if title == "" {
			title = defaultTitle
		}
		cfg.ExtraHeaders["HTTP-Referer"] = site
		cfg.ExtraHeaders["Referer"] = site
		cfg.ExtraHeaders["X-Title"] = title
	}

	return cfg, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

package main

import (
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"graphicarena/server/arena"
	"graphicarena/server/rating"
)

const defaultAllowedOrigins = "http://localhost:5173,http://127.0.0.1:5173"

// Config is everything main needs, read once from the environment.
type Config struct {
	Port           string
	DatabaseURL    string
	AutoMigrate    bool
	RedisURL       string
	AllowedOrigins []string
	Seed           uint64
	EloK           float64
	EloStart       int
	Arena          arena.Config
}

func loadConfig() Config {
	cfg := Config{
		Port:           getenv("PORT", "8787"),
		DatabaseURL:    strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AutoMigrate:    asBool(os.Getenv("AUTO_MIGRATE")),
		RedisURL:       strings.TrimSpace(os.Getenv("REDIS_URL")),
		AllowedOrigins: splitList(getenv("ALLOWED_ORIGINS", defaultAllowedOrigins)),
		EloK:           rating.DefaultK,
		EloStart:       atoiDef(os.Getenv("ARENA_ELO_START"), int(rating.DefaultRating)),
		Arena: arena.Config{
			PromptLimit:       atoiDef(os.Getenv("SESSION_PROMPT_LIMIT"), arena.DefaultPromptLimit),
			MaxPerMTok:        floatPtr(os.Getenv("OPENROUTER_MAX_USD_PER_MTOKEN")),
			AllowRevote:       asBool(os.Getenv("ARENA_ALLOW_REVOTE")),
			GenerationTimeout: time.Duration(atoiDef(os.Getenv("GENERATION_TIMEOUT_SECONDS"), 90)) * time.Second,
			PersistTimeout:    time.Duration(atoiDef(os.Getenv("PERSIST_TIMEOUT_SECONDS"), 5)) * time.Second,
		},
	}
	if v := strings.TrimSpace(os.Getenv("ARENA_SEED")); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = n
		}
	}
	if k := floatPtr(os.Getenv("ARENA_ELO_K")); k != nil {
		cfg.EloK = *k
	}
	return cfg
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
func atoiDef(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
func asBool(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "y", "on":
		return true
	default:
		return false
	}
}

// floatPtr returns nil for empty or non-finite input.
func floatPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return &f
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

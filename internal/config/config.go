package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port            int
	NatsURL         string
	NatsToken       string
	DatabaseURL     string
	LogLevel        string
	AnthropicAPIKey string
	AnthropicModel  string
	OutputDir       string
	TokenBudget     int
	OverlapBudget   int
	MaxAttempts     int
}

func Load() Config {
	return Config{
		Port:            envInt("VOIGHT_PORT", 8760),
		NatsURL:         envStr("NATS_URL", "nats://hermes:4222"),
		NatsToken:       envStr("NATS_TOKEN", ""),
		DatabaseURL:     envStr("DATABASE_URL", ""),
		LogLevel:        envStr("LOG_LEVEL", "info"),
		AnthropicAPIKey: envStr("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  envStr("VOIGHT_MODEL", "claude-sonnet-4-20250514"),
		OutputDir:       envStr("VOIGHT_OUTPUT_DIR", "analysis_results"),
		TokenBudget:     envInt("VOIGHT_TOKEN_BUDGET", 450),
		OverlapBudget:   envInt("VOIGHT_OVERLAP_BUDGET", 45),
		MaxAttempts:     envInt("VOIGHT_MAX_ATTEMPTS", 5),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

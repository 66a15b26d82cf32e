package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("expected default log level info, got %s", cfg.LogLevel)
	}
	if cfg.LLMProvider != "bedrock" {
		t.Errorf("expected default llm provider bedrock, got %s", cfg.LLMProvider)
	}
	if cfg.RemoteTimeout != 10*time.Second {
		t.Errorf("expected default remote timeout 10s, got %s", cfg.RemoteTimeout)
	}
	if cfg.StreamTimeout != 2*time.Minute {
		t.Errorf("expected default stream timeout 2m, got %s", cfg.StreamTimeout)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("LLM_PROVIDER", " Gemini ")
	t.Setenv("REDIS_TLS", "true")
	t.Setenv("REMOTE_TIMEOUT", "3s")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Port)
	}
	if cfg.LLMProvider != "gemini" {
		t.Errorf("expected normalized provider gemini, got %s", cfg.LLMProvider)
	}
	if !cfg.RedisTLS {
		t.Error("expected redis TLS enabled")
	}
	if cfg.RemoteTimeout != 3*time.Second {
		t.Errorf("expected remote timeout 3s, got %s", cfg.RemoteTimeout)
	}
	if len(cfg.CORSAllowedOrigins) != 2 || cfg.CORSAllowedOrigins[0] != "https://a.example" {
		t.Errorf("unexpected CORS origins: %v", cfg.CORSAllowedOrigins)
	}
}

func TestLoad_InvalidValuesFallBack(t *testing.T) {
	t.Setenv("REDIS_TLS", "not-a-bool")
	t.Setenv("STREAM_TIMEOUT", "-5s")

	cfg := Load()

	if cfg.RedisTLS {
		t.Error("invalid bool should fall back to false")
	}
	if cfg.StreamTimeout != 2*time.Minute {
		t.Errorf("non-positive duration should fall back, got %s", cfg.StreamTimeout)
	}
}

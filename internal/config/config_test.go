package config

import (
	"context"
	"log/slog"
	"testing"
)

func validConfig() Config {
	cfg := Config{
		Auth: AuthConfig{
			ClientID:     "id",
			ClientSecret: "secret",
			RefreshToken: "rt",
			APIKey:       "key",
			TokenURL:     "https://example.com/oauth/token",
		},
		API: APIConfig{BaseURL: "https://example.com"},
	}
	cfg.applyDefaults()
	return cfg
}

func TestValidateAcceptsCompleteConfig(t *testing.T) {
	cfg := validConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected a fully-populated config to validate, got %v", err)
	}
}

func TestValidateNamesTheMissingEnvVar(t *testing.T) {
	cfg := validConfig()
	cfg.Auth.ClientSecret = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected an error for missing client secret")
	}
	if got := err.Error(); got != "Config.Auth.ClientSecret is required (set STOCKX_CLIENT_SECRET)" {
		t.Errorf("unexpected message: %q", got)
	}
}

func TestValidateRejectsOutOfRangeBatchSize(t *testing.T) {
	cfg := validConfig()
	cfg.Batch.MaxItemsPerBatch = 1000

	if err := cfg.Validate(); err == nil {
		t.Error("expected an error for a batch size above the marketplace's cap")
	}
}

func TestNewLoggerSelectsHandlerByFormat(t *testing.T) {
	jsonLogger := LoggingConfig{Format: "json", Level: "debug"}.NewLogger()
	if _, ok := jsonLogger.Handler().(*slog.JSONHandler); !ok {
		t.Errorf("expected a JSON handler for format json, got %T", jsonLogger.Handler())
	}
	if !jsonLogger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected debug level to be enabled")
	}

	textLogger := LoggingConfig{Format: "text"}.NewLogger()
	if _, ok := textLogger.Handler().(*slog.TextHandler); !ok {
		t.Errorf("expected a text handler for format text, got %T", textLogger.Handler())
	}
	if textLogger.Enabled(context.Background(), slog.LevelDebug) {
		t.Error("expected default level (info) to exclude debug")
	}
}

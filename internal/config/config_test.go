package config

import "testing"

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "test-token")
	t.Setenv("DATABASE_PATH", "")
	t.Setenv("WATCH_INTERVAL_SECONDS", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.DiscordToken != "test-token" {
		t.Errorf("token = %q", cfg.DiscordToken)
	}
	if cfg.DatabasePath != "./data/bot.db" {
		t.Errorf("database path = %q", cfg.DatabasePath)
	}
	if cfg.WatchIntervalSeconds != 120 {
		t.Errorf("watch interval = %d, want 120", cfg.WatchIntervalSeconds)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("log level = %q", cfg.LogLevel)
	}
}

func TestLoadMissingToken(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error without DISCORD_BOT_TOKEN")
	}
}

func TestLoadInvalidInterval(t *testing.T) {
	t.Setenv("DISCORD_BOT_TOKEN", "test-token")
	t.Setenv("WATCH_INTERVAL_SECONDS", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("expected an error for a non-numeric interval")
	}
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/joebot/greetbot/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := config.LoadFrom(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Platform != "bluesky" {
		t.Errorf("platform = %q, want bluesky", cfg.Platform)
	}
	if cfg.Scheduler.IntervalSeconds != 60 || cfg.Scheduler.PageSize != 50 {
		t.Errorf("scheduler defaults wrong: %+v", cfg.Scheduler)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Redis.Addr == "" {
		t.Errorf("store defaults wrong: %+v", cfg.Store)
	}
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `{
		"platform": "bluesky",
		"bluesky": {"identifier": "bot.bsky.social", "appPassword": "xxxx-xxxx"},
		"scheduler": {"intervalSeconds": 120, "pageSize": 25}
	}`)

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bluesky.Identifier != "bot.bsky.social" {
		t.Errorf("identifier = %q", cfg.Bluesky.Identifier)
	}
	if cfg.Scheduler.IntervalSeconds != 120 || cfg.Scheduler.PageSize != 25 {
		t.Errorf("scheduler = %+v", cfg.Scheduler)
	}
	if cfg.Bluesky.Service != "https://bsky.social" {
		t.Errorf("service default missing: %q", cfg.Bluesky.Service)
	}
}

func TestValidateRejectsInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"missing credentials", `{"platform": "bluesky"}`},
		{"bad platform", `{"platform": "carrier-pigeon"}`},
		{"discord without token", `{"platform": "discord"}`},
		{"bad page size", `{
			"platform": "bluesky",
			"bluesky": {"identifier": "a", "appPassword": "b"},
			"scheduler": {"pageSize": 500}
		}`},
		{"unknown field", `{
			"platform": "bluesky",
			"bluesky": {"identifier": "a", "appPassword": "b"},
			"unknownField": true
		}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			if _, err := config.LoadFrom(path); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	path := writeConfig(t, `{
		"platform": "bluesky",
		"bluesky": {"identifier": "bot.bsky.social"}
	}`)

	t.Setenv("GREETBOT_BLUESKY_APP_PASSWORD", "from-env")
	t.Setenv("GREETBOT_SESSION_SECRET", "env-secret")

	cfg, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Bluesky.AppPassword != "from-env" {
		t.Errorf("appPassword = %q, want env override", cfg.Bluesky.AppPassword)
	}
	if cfg.Admin.SessionSecret != "env-secret" {
		t.Errorf("sessionSecret = %q, want env override", cfg.Admin.SessionSecret)
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Platform = "discord"
	cfg.Discord.Token = "token-123"
	cfg.Admin.SessionSecret = "secret"

	path := filepath.Join(t.TempDir(), "config.json")
	if err := config.SaveTo(cfg, path); err != nil {
		t.Fatal(err)
	}

	loaded, err := config.LoadFrom(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Platform != "discord" || loaded.Discord.Token != "token-123" {
		t.Errorf("round trip lost values: %+v", loaded)
	}
}

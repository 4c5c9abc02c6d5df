package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Bot.RootMenuID != "menu-main" {
		t.Fatalf("unexpected root menu id: %q", cfg.Bot.RootMenuID)
	}
	if cfg.SessionMaxAge() != 10*time.Hour {
		t.Fatalf("unexpected session max age: %s", cfg.SessionMaxAge())
	}
	if cfg.EscalationGrace() != 10*time.Second {
		t.Fatalf("unexpected escalation grace: %s", cfg.EscalationGrace())
	}
	if cfg.Humanizer.StepDelayMinMS != 1000 || cfg.Humanizer.StepDelayMaxMS != 2000 {
		t.Fatalf("unexpected step delays: %+v", cfg.Humanizer)
	}
	if cfg.Humanizer.IdleDelayMinMS != 10000 || cfg.Humanizer.IdleDelayMaxMS != 15000 {
		t.Fatalf("unexpected idle delays: %+v", cfg.Humanizer)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Bot.TriggerCode != "214598" {
		t.Fatalf("unexpected trigger code: %q", cfg.Bot.TriggerCode)
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"bot": {"root_menu_id": "menu-custom", "session_max_hours": 2}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Bot.RootMenuID != "menu-custom" {
		t.Fatalf("file value not applied: %q", cfg.Bot.RootMenuID)
	}
	if cfg.SessionMaxAge() != 2*time.Hour {
		t.Fatalf("file value not applied: %s", cfg.SessionMaxAge())
	}
	// Untouched keys keep their defaults.
	if cfg.Bot.WelcomeMessage != "Olá! Seja bem-vindo!" {
		t.Fatalf("default lost: %q", cfg.Bot.WelcomeMessage)
	}
}

func TestLoadConfigRejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"bot": {"root_menu_id": "x"}, "surprise": true}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	if _, err := LoadConfig(path); err == nil {
		t.Fatalf("unknown field should be rejected")
	}
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	data := `{"bot": {"trigger_code": "111111"}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("ZAPMENU_BOT_TRIGGER_CODE", "999999")
	t.Setenv("ZAPMENU_GATEWAY_PORT", "9000")

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.Bot.TriggerCode != "999999" {
		t.Fatalf("env should win over file: %q", cfg.Bot.TriggerCode)
	}
	if cfg.Gateway.Port != 9000 {
		t.Fatalf("env override not applied: %d", cfg.Gateway.Port)
	}
}

func TestSaveAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.json")

	cfg := DefaultConfig()
	cfg.Bot.RootMenuID = "menu-round-trip"
	if err := SaveConfig(path, cfg); err != nil {
		t.Fatalf("save config: %v", err)
	}

	loaded, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("reload config: %v", err)
	}
	if loaded.Bot.RootMenuID != "menu-round-trip" {
		t.Fatalf("round trip lost value: %q", loaded.Bot.RootMenuID)
	}
}

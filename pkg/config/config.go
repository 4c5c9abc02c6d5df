package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
)

type Config struct {
	Bot       BotConfig       `json:"bot"`
	Humanizer HumanizerConfig `json:"humanizer"`
	Store     StoreConfig     `json:"store"`
	WhatsApp  WhatsAppConfig  `json:"whatsapp"`
	Gateway   GatewayConfig   `json:"gateway"`
	Janitor   JanitorConfig   `json:"janitor"`
	Logging   LoggingConfig   `json:"logging"`
}

type BotConfig struct {
	RootMenuID          string `json:"root_menu_id" env:"ZAPMENU_BOT_ROOT_MENU_ID"`
	WelcomeMessage      string `json:"welcome_message" env:"ZAPMENU_BOT_WELCOME_MESSAGE"`
	TriggerCode         string `json:"trigger_code" env:"ZAPMENU_BOT_TRIGGER_CODE"`
	HandoffNotice       string `json:"handoff_notice" env:"ZAPMENU_BOT_HANDOFF_NOTICE"`
	InvalidOptionReply  string `json:"invalid_option_reply" env:"ZAPMENU_BOT_INVALID_OPTION_REPLY"`
	FallbackReply       string `json:"fallback_reply" env:"ZAPMENU_BOT_FALLBACK_REPLY"`
	SessionMaxHours     int    `json:"session_max_hours" env:"ZAPMENU_BOT_SESSION_MAX_HOURS"`
	EscalationGraceSec  int    `json:"escalation_grace_sec" env:"ZAPMENU_BOT_ESCALATION_GRACE_SEC"`
}

type HumanizerConfig struct {
	StepDelayMinMS int `json:"step_delay_min_ms" env:"ZAPMENU_HUMANIZER_STEP_DELAY_MIN_MS"`
	StepDelayMaxMS int `json:"step_delay_max_ms" env:"ZAPMENU_HUMANIZER_STEP_DELAY_MAX_MS"`
	IdleDelayMinMS int `json:"idle_delay_min_ms" env:"ZAPMENU_HUMANIZER_IDLE_DELAY_MIN_MS"`
	IdleDelayMaxMS int `json:"idle_delay_max_ms" env:"ZAPMENU_HUMANIZER_IDLE_DELAY_MAX_MS"`
}

type StoreConfig struct {
	DBPath string `json:"db_path" env:"ZAPMENU_STORE_DB_PATH"`
}

type WhatsAppConfig struct {
	SessionDBPath  string  `json:"session_db_path" env:"ZAPMENU_WHATSAPP_SESSION_DB_PATH"`
	SendRatePerSec float64 `json:"send_rate_per_sec" env:"ZAPMENU_WHATSAPP_SEND_RATE_PER_SEC"`
	SendBurst      int     `json:"send_burst" env:"ZAPMENU_WHATSAPP_SEND_BURST"`
}

type GatewayConfig struct {
	Host string `json:"host" env:"ZAPMENU_GATEWAY_HOST"`
	Port int    `json:"port" env:"ZAPMENU_GATEWAY_PORT"`
}

type JanitorConfig struct {
	SweepEverySec int `json:"sweep_every_sec" env:"ZAPMENU_JANITOR_SWEEP_EVERY_SEC"`
}

type LoggingConfig struct {
	Enabled       bool   `json:"enabled" env:"ZAPMENU_LOGGING_ENABLED"`
	Dir           string `json:"dir" env:"ZAPMENU_LOGGING_DIR"`
	Filename      string `json:"filename" env:"ZAPMENU_LOGGING_FILENAME"`
	MaxSizeMB     int    `json:"max_size_mb" env:"ZAPMENU_LOGGING_MAX_SIZE_MB"`
	RetentionDays int    `json:"retention_days" env:"ZAPMENU_LOGGING_RETENTION_DAYS"`
}

func DataDir() string {
	if dir := os.Getenv("ZAPMENU_DATA_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".zapmenu")
}

func DefaultConfig() *Config {
	dataDir := DataDir()
	return &Config{
		Bot: BotConfig{
			RootMenuID:         "menu-main",
			WelcomeMessage:     "Olá! Seja bem-vindo!",
			TriggerCode:        "214598",
			HandoffNotice:      "Transferir para o especialista",
			InvalidOptionReply: "Opção inválida ou menu não encontrado.",
			FallbackReply:      `Por favor, responda apenas com o número da opção desejada ou envie "menu".`,
			SessionMaxHours:    10,
			EscalationGraceSec: 10,
		},
		Humanizer: HumanizerConfig{
			StepDelayMinMS: 1000,
			StepDelayMaxMS: 2000,
			IdleDelayMinMS: 10000,
			IdleDelayMaxMS: 15000,
		},
		Store: StoreConfig{
			DBPath: filepath.Join(dataDir, "zapmenu.db"),
		},
		WhatsApp: WhatsAppConfig{
			SessionDBPath:  filepath.Join(dataDir, "wa-session.db"),
			SendRatePerSec: 1,
			SendBurst:      3,
		},
		Gateway: GatewayConfig{
			Host: "0.0.0.0",
			Port: 18891,
		},
		Janitor: JanitorConfig{
			SweepEverySec: 300,
		},
		Logging: LoggingConfig{
			Enabled:       true,
			Dir:           filepath.Join(dataDir, "logs"),
			Filename:      "zapmenu.log",
			MaxSizeMB:     20,
			RetentionDays: 3,
		},
	}
}

// LoadConfig reads an optional JSON config file and applies ZAPMENU_*
// environment overrides on top of the defaults. A missing file is not an
// error; a malformed one is.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			if err := env.Parse(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, err
	}

	if err := unmarshalConfigStrict(data, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func unmarshalConfigStrict(data []byte, cfg *Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		if err == nil {
			return fmt.Errorf("invalid config: trailing JSON content")
		}
		return err
	}
	return nil
}

func SaveConfig(path string, cfg *Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) SessionMaxAge() time.Duration {
	return time.Duration(c.Bot.SessionMaxHours) * time.Hour
}

func (c *Config) EscalationGrace() time.Duration {
	return time.Duration(c.Bot.EscalationGraceSec) * time.Second
}

func (c *Config) LogFilePath() string {
	filename := c.Logging.Filename
	if filename == "" {
		filename = "zapmenu.log"
	}
	return filepath.Join(c.Logging.Dir, filename)
}

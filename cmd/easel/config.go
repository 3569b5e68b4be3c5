package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/easelkit/easel/internal/scheduler"
)

// Config holds all easel server configuration.
// Priority: env vars > settings.json > defaults. A .env file in the
// working directory is loaded into the environment first.
type Config struct {
	ListenAddr       string `json:"listen_addr"`
	DBPath           string `json:"db_path"`
	LogLevel         string `json:"log_level"`
	Panel            bool   `json:"panel"`
	MCP              bool   `json:"mcp"`
	AutosaveSchedule string `json:"autosave_schedule"`
	AutosaveRetain   int    `json:"autosave_retain"`
	ClipboardBackend string `json:"clipboard_backend"`
	ClipboardPath    string `json:"clipboard_path"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:       ":4600",
		DBPath:           filepath.Join(easelDir(), "easel.db"),
		LogLevel:         "info",
		Panel:            true,
		AutosaveSchedule: scheduler.DefaultSchedule,
		AutosaveRetain:   scheduler.DefaultRetain,
		ClipboardBackend: "memory",
	}
}

func easelDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".easel"
	}
	return filepath.Join(home, ".easel")
}

func settingsPath() string {
	return filepath.Join(easelDir(), "settings.json")
}

func pidPath() string {
	return filepath.Join(easelDir(), "easel.pid")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override. .env feeds the environment but never
	// overwrites variables the caller already exported.
	_ = godotenv.Load()
	if v := os.Getenv("EASEL_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("EASEL_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("EASEL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("EASEL_PANEL"); v != "" {
		cfg.Panel = v == "true" || v == "1"
	}
	if v := os.Getenv("EASEL_MCP"); v != "" {
		cfg.MCP = v == "true" || v == "1"
	}
	if v := os.Getenv("EASEL_AUTOSAVE_SCHEDULE"); v != "" {
		cfg.AutosaveSchedule = v
	}
	if v := os.Getenv("EASEL_AUTOSAVE_RETAIN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AutosaveRetain = n
		}
	}
	if v := os.Getenv("EASEL_CLIPBOARD"); v != "" {
		cfg.ClipboardBackend = v
	}
	if v := os.Getenv("EASEL_CLIPBOARD_PATH"); v != "" {
		cfg.ClipboardPath = v
	}

	if cfg.ClipboardPath == "" {
		cfg.ClipboardPath = filepath.Join(easelDir(), "clipboard.json")
	}

	return cfg
}

// configDiff describes what changed between two configurations.
type configDiff struct {
	PanelChanged    bool
	LogLevelChanged bool
	RestartNeeded   []string // fields that require a server restart
}

func diffConfigs(old, new Config) configDiff {
	var d configDiff
	if old.Panel != new.Panel {
		d.PanelChanged = true
	}
	if old.LogLevel != new.LogLevel {
		d.LogLevelChanged = true
	}
	if old.ListenAddr != new.ListenAddr {
		d.RestartNeeded = append(d.RestartNeeded, "listen_addr")
	}
	if old.DBPath != new.DBPath {
		d.RestartNeeded = append(d.RestartNeeded, "db_path")
	}
	if old.MCP != new.MCP {
		d.RestartNeeded = append(d.RestartNeeded, "mcp")
	}
	if old.AutosaveSchedule != new.AutosaveSchedule {
		d.RestartNeeded = append(d.RestartNeeded, "autosave_schedule")
	}
	if old.AutosaveRetain != new.AutosaveRetain {
		d.RestartNeeded = append(d.RestartNeeded, "autosave_retain")
	}
	if old.ClipboardBackend != new.ClipboardBackend || old.ClipboardPath != new.ClipboardPath {
		d.RestartNeeded = append(d.RestartNeeded, "clipboard")
	}
	return d
}

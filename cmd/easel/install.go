package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// runInstall writes settings.json from flags and nudges a running server
// to pick the new configuration up. With --start it launches the server
// in the foreground when none is running.
func runInstall(args []string) {
	def := defaultConfig()

	fs := flag.NewFlagSet("install", flag.ExitOnError)
	listenAddr := fs.String("listen-addr", def.ListenAddr, "TCP listen address")
	dbPath := fs.String("db-path", def.DBPath, "libSQL database path")
	logLevel := fs.String("log-level", def.LogLevel, "log level: debug, info, warn, error")
	panelOn := fs.Bool("panel", def.Panel, "serve the HTTP editing panel")
	mcpOn := fs.Bool("mcp", def.MCP, "serve MCP tools over stdin/stdout")
	schedule := fs.String("autosave-schedule", def.AutosaveSchedule, "cron schedule for autosave sweeps")
	retain := fs.Int("autosave-retain", def.AutosaveRetain, "autosave versions kept per draft")
	clipboard := fs.String("clipboard", def.ClipboardBackend, "clipboard backend: memory or file")
	clipboardPath := fs.String("clipboard-path", def.ClipboardPath, "clipboard file path (file backend)")
	start := fs.Bool("start", false, "start the server after writing the configuration")
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	cfg := Config{
		ListenAddr:       *listenAddr,
		DBPath:           *dbPath,
		LogLevel:         *logLevel,
		Panel:            *panelOn,
		MCP:              *mcpOn,
		AutosaveSchedule: *schedule,
		AutosaveRetain:   *retain,
		ClipboardBackend: *clipboard,
		ClipboardPath:    *clipboardPath,
	}
	if err := saveConfig(cfg); err != nil {
		fatalf("write settings: %v", err)
	}
	fmt.Printf("Wrote %s\n", settingsPath())

	if signalRunningServer() {
		fmt.Println("Signaled the running server to reload its configuration")
		return
	}
	if *start {
		runServe(nil)
	} else {
		fmt.Println("Run 'easel serve' to start the server")
	}
}

func saveConfig(cfg Config) error {
	if err := os.MkdirAll(easelDir(), 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(settingsPath(), data, 0o644)
}

// signalRunningServer sends SIGHUP to the pid recorded by a live server.
// Returns false when no server is running or the pidfile is stale.
func signalRunningServer() bool {
	data, err := os.ReadFile(pidPath())
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.SIGHUP) == nil
}

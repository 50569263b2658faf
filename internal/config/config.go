package config

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/rs/zerolog"
)

// Config is BrewSignal's boot configuration: flag-provided process
// parameters layered with a JSON operational file, mirroring how the
// teacher splits wiring details (flags) from tunables (JSON).
type Config struct {
	DBPath     string
	HTTPAddr   string
	ConfigFile string
	LogLevel   zerolog.Level

	ScannerMode      string `json:"scanner_mode"`
	ScannerFilesPath string `json:"scanner_files_path"`
	ScannerRelayHost string `json:"scanner_relay_host"`

	SwitchServiceURL   string `json:"switch_service_url"`
	SwitchServiceToken string `json:"switch_service_token"`

	DDAgentAddr   string   `json:"dd_agent_addr"`
	DDNamespace   string   `json:"dd_namespace"`
	DDTags        []string `json:"dd_tags"`
	EnableDatadog bool     `json:"enable_datadog"`

	NtfyTopic string `json:"ntfy_topic"`

	CleanupRetentionDays int `json:"cleanup_retention_days"`
}

func Load() Config {
	var cfg Config
	var logLevel string

	flag.StringVar(&cfg.DBPath, "db-path", "data/brewsignal.db", "Path to the SQLite database file")
	flag.StringVar(&cfg.HTTPAddr, "http-addr", ":8080", "Address for the HTTP/WebSocket server to listen on")
	flag.StringVar(&cfg.ConfigFile, "config-file", "config.json", "Path to operational config file")
	flag.StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	flag.Parse()

	cfg.LogLevel = parseLogLevel(logLevel)

	file, err := os.Open(cfg.ConfigFile)
	if err != nil {
		panic("Failed to load config file: " + err.Error())
	}
	defer file.Close()

	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		panic("Failed to parse config file: " + err.Error())
	}

	applyScannerEnvOverrides(&cfg)

	if cfg.ScannerMode == "" {
		cfg.ScannerMode = "ble"
	}
	if cfg.CleanupRetentionDays == 0 {
		cfg.CleanupRetentionDays = 90
	}

	cfg.validate()
	return cfg
}

// applyScannerEnvOverrides lets SCANNER_MOCK, SCANNER_FILES_PATH, and
// SCANNER_RELAY_HOST mirror their config-file counterparts but take
// precedence on startup.
func applyScannerEnvOverrides(cfg *Config) {
	if mock, err := strconv.ParseBool(os.Getenv("SCANNER_MOCK")); err == nil && mock {
		cfg.ScannerMode = "mock"
	}
	if v := os.Getenv("SCANNER_FILES_PATH"); v != "" {
		cfg.ScannerFilesPath = v
	}
	if v := os.Getenv("SCANNER_RELAY_HOST"); v != "" {
		cfg.ScannerRelayHost = v
	}
}

func parseLogLevel(level string) zerolog.Level {
	switch level {
	case "debug":
		return zerolog.DebugLevel
	case "warn":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

func (cfg *Config) validate() {
	switch cfg.ScannerMode {
	case "ble", "mock", "file", "relay":
	default:
		panic(fmt.Sprintf("Unknown scanner_mode: %s", cfg.ScannerMode))
	}
	if cfg.ScannerMode == "file" && cfg.ScannerFilesPath == "" {
		panic("scanner_mode=file requires scanner_files_path")
	}
	if cfg.ScannerMode == "relay" && cfg.ScannerRelayHost == "" {
		panic("scanner_mode=relay requires scanner_relay_host")
	}
	if cfg.CleanupRetentionDays < 0 {
		panic("cleanup_retention_days must not be negative")
	}
}

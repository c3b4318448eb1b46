package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/rendis/flowcode/internal/devserver"
	"github.com/rendis/flowcode/internal/transform"
)

// Config holds the flowcode tool configuration.
// Priority: env vars > .env in the project dir > settings.json > defaults.
type Config struct {
	ListenAddr    string `json:"listen_addr"`
	DBPath        string `json:"db_path"`
	LogLevel      string `json:"log_level"`
	ModuleBaseURL string `json:"module_base_url"`
	CacheSize     int    `json:"cache_size"`
	FlushDelayMS  int    `json:"flush_delay_ms"`
	PruneSchedule string `json:"prune_schedule"`
	KeepSnapshots int    `json:"keep_snapshots"`
}

func defaultConfig() Config {
	return Config{
		ListenAddr:    ":3500",
		DBPath:        filepath.Join(flowcodeDir(), "flowcode.db"),
		LogLevel:      "info",
		ModuleBaseURL: transform.DefaultModuleBaseURL,
		CacheSize:     devserver.DefaultCacheSize,
		FlushDelayMS:  int(devserver.DefaultFlushDelay / time.Millisecond),
		PruneSchedule: devserver.DefaultPruneSchedule,
		KeepSnapshots: devserver.DefaultKeepSnapshots,
	}
}

func flowcodeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".flowcode"
	}
	return filepath.Join(home, ".flowcode")
}

func settingsPath() string {
	return filepath.Join(flowcodeDir(), "settings.json")
}

// loadConfig layers the configuration sources. projectDir is where .env is
// looked up; variables already set in the environment win over it.
func loadConfig(projectDir string) Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: .env, which never overrides variables already set.
	_ = godotenv.Load(filepath.Join(projectDir, ".env"))

	// Layer 4: env vars override.
	if v := os.Getenv("FLOWCODE_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("FLOWCODE_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("FLOWCODE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("FLOWCODE_MODULE_BASE_URL"); v != "" {
		cfg.ModuleBaseURL = v
	}
	if v := os.Getenv("FLOWCODE_CACHE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.CacheSize = n
		}
	}
	if v := os.Getenv("FLOWCODE_FLUSH_DELAY_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.FlushDelayMS = n
		}
	}
	if v, ok := os.LookupEnv("FLOWCODE_PRUNE_SCHEDULE"); ok {
		cfg.PruneSchedule = v // empty disables pruning
	}
	if v := os.Getenv("FLOWCODE_KEEP_SNAPSHOTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.KeepSnapshots = n
		}
	}
	return cfg
}

// dsn returns the libSQL connection string for DBPath.
func (c Config) dsn() string {
	return "file:" + c.DBPath
}

func (c Config) flushDelay() time.Duration {
	return time.Duration(c.FlushDelayMS) * time.Millisecond
}

// Package config handles nornicexec configuration via YAML or TOML files and
// environment variables.
//
// Configuration Precedence (highest to lowest):
//  1. Command-line flags (--engine, --data-dir, etc.)
//  2. Environment variables (NORNICEXEC_*)
//  3. Config file (nornicexec.yaml or nornicexec.toml)
//  4. Built-in defaults
//
// Example Usage:
//
//	cfg, err := config.LoadFromFile(config.FindConfigFile())
//	if err != nil {
//		log.Fatalf("Invalid config: %v", err)
//	}
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("Configuration error: %v", err)
//	}
//
// Environment Variables (all use NORNICEXEC_ prefix):
//
// Storage:
//   - NORNICEXEC_STORAGE_ENGINE="memory" or "badger"
//   - NORNICEXEC_DATA_DIR="./data"
//   - NORNICEXEC_IN_MEMORY=false
//   - NORNICEXEC_SYNC_WRITES=false
//   - NORNICEXEC_NODE_CACHE_SIZE=10000
//
// Execution:
//   - NORNICEXEC_PARALLEL_WORKERS=4
//   - NORNICEXEC_RESULTSET_SIZE=0 (unlimited)
//   - NORNICEXEC_QUERY_TIMEOUT=30s
//   - NORNICEXEC_QUERY_HISTORY=64
//
// Logging:
//   - NORNICEXEC_LOG_LEVEL="INFO"
//   - NORNICEXEC_QUERY_LOG=false
//   - NORNICEXEC_SLOW_QUERY_THRESHOLD=1s
//
// Memory:
//   - NORNICEXEC_MEMORY_LIMIT="2GB"
//   - NORNICEXEC_GC_PERCENT=100
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Storage engine names.
const (
	EngineMemory = "memory"
	EngineBadger = "badger"
)

// Config holds all nornicexec configuration.
//
// Configuration is organized into logical sections:
//   - Storage: which graph engine backs query execution
//   - Execution: operator engine limits
//   - Logging: query logging
//   - Memory: Go runtime tuning
type Config struct {
	Storage   StorageConfig
	Execution ExecutionConfig
	Logging   LoggingConfig
	Memory    MemoryConfig
}

// StorageConfig selects and tunes the storage engine.
type StorageConfig struct {
	// Engine is "memory" or "badger".
	// Env: NORNICEXEC_STORAGE_ENGINE
	Engine string

	// DataDir is the badger data directory.
	// Env: NORNICEXEC_DATA_DIR
	DataDir string

	// InMemory runs badger without touching disk.
	// Env: NORNICEXEC_IN_MEMORY
	InMemory bool

	// SyncWrites fsyncs every badger write.
	// Env: NORNICEXEC_SYNC_WRITES
	SyncWrites bool

	// NodeCacheSize bounds the badger node and edge caches.
	// Env: NORNICEXEC_NODE_CACHE_SIZE
	NodeCacheSize int
}

// ExecutionConfig bounds query execution.
type ExecutionConfig struct {
	// ParallelWorkers is the number of plan clones run by parallel commands.
	// Env: NORNICEXEC_PARALLEL_WORKERS
	ParallelWorkers int

	// ResultSetSizeLimit caps returned rows; 0 is unlimited.
	// Env: NORNICEXEC_RESULTSET_SIZE
	ResultSetSizeLimit int

	// QueryTimeout cancels executions running longer; 0 disables it.
	// Env: NORNICEXEC_QUERY_TIMEOUT
	QueryTimeout time.Duration

	// HistorySize is how many finished queries are kept for inspection.
	// Env: NORNICEXEC_QUERY_HISTORY
	HistorySize int
}

// LoggingConfig controls query logging.
type LoggingConfig struct {
	// Level is DEBUG, INFO, WARN or ERROR.
	// Env: NORNICEXEC_LOG_LEVEL
	Level string

	// QueryLogEnabled logs start and finish of every query.
	// Env: NORNICEXEC_QUERY_LOG
	QueryLogEnabled bool

	// SlowQueryThreshold logs queries slower than this; 0 disables it.
	// Env: NORNICEXEC_SLOW_QUERY_THRESHOLD
	SlowQueryThreshold time.Duration
}

// MemoryConfig tunes the Go runtime.
type MemoryConfig struct {
	// RuntimeLimit is the soft memory limit in bytes; 0 is unlimited.
	// Env: NORNICEXEC_MEMORY_LIMIT (e.g. "2GB", "512MB")
	RuntimeLimit int64

	// GCPercent is the GOGC value.
	// Env: NORNICEXEC_GC_PERCENT
	GCPercent int
}

// LoadDefaults returns a Config with built-in defaults.
func LoadDefaults() *Config {
	return &Config{
		Storage: StorageConfig{
			Engine:        EngineMemory,
			DataDir:       "./data",
			NodeCacheSize: 10000,
		},
		Execution: ExecutionConfig{
			ParallelWorkers: runtime.NumCPU(),
			QueryTimeout:    30 * time.Second,
			HistorySize:     64,
		},
		Logging: LoggingConfig{
			Level:              "INFO",
			SlowQueryThreshold: time.Second,
		},
		Memory: MemoryConfig{
			GCPercent: 100,
		},
	}
}

// LoadFromEnv returns the defaults overridden by NORNICEXEC_* variables.
func LoadFromEnv() *Config {
	cfg := LoadDefaults()
	applyEnvVars(cfg)
	return cfg
}

// FileConfig mirrors the config file structure. Both YAML and TOML files
// decode into it; durations and memory sizes are strings.
type FileConfig struct {
	Storage struct {
		Engine        string `yaml:"engine" toml:"engine"`
		DataDir       string `yaml:"data_dir" toml:"data_dir"`
		InMemory      bool   `yaml:"in_memory" toml:"in_memory"`
		SyncWrites    bool   `yaml:"sync_writes" toml:"sync_writes"`
		NodeCacheSize int    `yaml:"node_cache_size" toml:"node_cache_size"`
	} `yaml:"storage" toml:"storage"`

	Execution struct {
		ParallelWorkers    int    `yaml:"parallel_workers" toml:"parallel_workers"`
		ResultSetSizeLimit int    `yaml:"resultset_size" toml:"resultset_size"`
		QueryTimeout       string `yaml:"query_timeout" toml:"query_timeout"`
		HistorySize        int    `yaml:"query_history" toml:"query_history"`
	} `yaml:"execution" toml:"execution"`

	Logging struct {
		Level              string `yaml:"level" toml:"level"`
		QueryLog           bool   `yaml:"query_log" toml:"query_log"`
		SlowQueryThreshold string `yaml:"slow_query_threshold" toml:"slow_query_threshold"`
	} `yaml:"logging" toml:"logging"`

	Memory struct {
		Limit     string `yaml:"limit" toml:"limit"`
		GCPercent int    `yaml:"gc_percent" toml:"gc_percent"`
	} `yaml:"memory" toml:"memory"`
}

// LoadFromFile loads defaults, then the config file at configPath, then
// environment variables. A missing file is not an error. Files ending in
// .toml are decoded as TOML, anything else as YAML.
func LoadFromFile(configPath string) (*Config, error) {
	cfg := LoadDefaults()
	if configPath == "" {
		applyEnvVars(cfg)
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			applyEnvVars(cfg)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg FileConfig
	if strings.EqualFold(filepath.Ext(configPath), ".toml") {
		if _, err := toml.Decode(string(data), &fileCfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := applyFileConfig(cfg, &fileCfg); err != nil {
		return nil, err
	}
	applyEnvVars(cfg)
	log.Printf("[config] loaded %s", configPath)
	return cfg, nil
}

func applyFileConfig(cfg *Config, f *FileConfig) error {
	// === Storage ===
	if f.Storage.Engine != "" {
		cfg.Storage.Engine = strings.ToLower(f.Storage.Engine)
	}
	if f.Storage.DataDir != "" {
		cfg.Storage.DataDir = f.Storage.DataDir
	}
	if f.Storage.InMemory {
		cfg.Storage.InMemory = true
	}
	if f.Storage.SyncWrites {
		cfg.Storage.SyncWrites = true
	}
	if f.Storage.NodeCacheSize > 0 {
		cfg.Storage.NodeCacheSize = f.Storage.NodeCacheSize
	}

	// === Execution ===
	if f.Execution.ParallelWorkers > 0 {
		cfg.Execution.ParallelWorkers = f.Execution.ParallelWorkers
	}
	if f.Execution.ResultSetSizeLimit > 0 {
		cfg.Execution.ResultSetSizeLimit = f.Execution.ResultSetSizeLimit
	}
	if f.Execution.QueryTimeout != "" {
		d, err := time.ParseDuration(f.Execution.QueryTimeout)
		if err != nil {
			return fmt.Errorf("invalid execution.query_timeout %q: %w", f.Execution.QueryTimeout, err)
		}
		cfg.Execution.QueryTimeout = d
	}
	if f.Execution.HistorySize > 0 {
		cfg.Execution.HistorySize = f.Execution.HistorySize
	}

	// === Logging ===
	if f.Logging.Level != "" {
		cfg.Logging.Level = strings.ToUpper(f.Logging.Level)
	}
	if f.Logging.QueryLog {
		cfg.Logging.QueryLogEnabled = true
	}
	if f.Logging.SlowQueryThreshold != "" {
		d, err := time.ParseDuration(f.Logging.SlowQueryThreshold)
		if err != nil {
			return fmt.Errorf("invalid logging.slow_query_threshold %q: %w", f.Logging.SlowQueryThreshold, err)
		}
		cfg.Logging.SlowQueryThreshold = d
	}

	// === Memory ===
	if f.Memory.Limit != "" {
		cfg.Memory.RuntimeLimit = parseMemorySize(f.Memory.Limit)
	}
	if f.Memory.GCPercent != 0 {
		cfg.Memory.GCPercent = f.Memory.GCPercent
	}
	return nil
}

func applyEnvVars(cfg *Config) {
	cfg.Storage.Engine = strings.ToLower(getEnv("NORNICEXEC_STORAGE_ENGINE", cfg.Storage.Engine))
	cfg.Storage.DataDir = getEnv("NORNICEXEC_DATA_DIR", cfg.Storage.DataDir)
	cfg.Storage.InMemory = getEnvBool("NORNICEXEC_IN_MEMORY", cfg.Storage.InMemory)
	cfg.Storage.SyncWrites = getEnvBool("NORNICEXEC_SYNC_WRITES", cfg.Storage.SyncWrites)
	cfg.Storage.NodeCacheSize = getEnvInt("NORNICEXEC_NODE_CACHE_SIZE", cfg.Storage.NodeCacheSize)

	cfg.Execution.ParallelWorkers = getEnvInt("NORNICEXEC_PARALLEL_WORKERS", cfg.Execution.ParallelWorkers)
	cfg.Execution.ResultSetSizeLimit = getEnvInt("NORNICEXEC_RESULTSET_SIZE", cfg.Execution.ResultSetSizeLimit)
	cfg.Execution.QueryTimeout = getEnvDuration("NORNICEXEC_QUERY_TIMEOUT", cfg.Execution.QueryTimeout)
	cfg.Execution.HistorySize = getEnvInt("NORNICEXEC_QUERY_HISTORY", cfg.Execution.HistorySize)

	cfg.Logging.Level = strings.ToUpper(getEnv("NORNICEXEC_LOG_LEVEL", cfg.Logging.Level))
	cfg.Logging.QueryLogEnabled = getEnvBool("NORNICEXEC_QUERY_LOG", cfg.Logging.QueryLogEnabled)
	cfg.Logging.SlowQueryThreshold = getEnvDuration("NORNICEXEC_SLOW_QUERY_THRESHOLD", cfg.Logging.SlowQueryThreshold)

	if v := os.Getenv("NORNICEXEC_MEMORY_LIMIT"); v != "" {
		cfg.Memory.RuntimeLimit = parseMemorySize(v)
	}
	cfg.Memory.GCPercent = getEnvInt("NORNICEXEC_GC_PERCENT", cfg.Memory.GCPercent)
}

// Validate checks the configuration for values the engine cannot run with.
func (c *Config) Validate() error {
	switch c.Storage.Engine {
	case EngineMemory:
	case EngineBadger:
		if !c.Storage.InMemory && c.Storage.DataDir == "" {
			return fmt.Errorf("badger engine requires a data directory")
		}
	default:
		return fmt.Errorf("unknown storage engine: %q", c.Storage.Engine)
	}
	if c.Storage.NodeCacheSize < 0 {
		return fmt.Errorf("invalid node cache size: %d", c.Storage.NodeCacheSize)
	}
	if c.Execution.ParallelWorkers <= 0 {
		return fmt.Errorf("invalid parallel workers: %d", c.Execution.ParallelWorkers)
	}
	if c.Execution.ResultSetSizeLimit < 0 {
		return fmt.Errorf("invalid result set size: %d", c.Execution.ResultSetSizeLimit)
	}
	if c.Execution.QueryTimeout < 0 {
		return fmt.Errorf("invalid query timeout: %s", c.Execution.QueryTimeout)
	}
	if c.Execution.HistorySize <= 0 {
		return fmt.Errorf("invalid query history size: %d", c.Execution.HistorySize)
	}
	switch c.Logging.Level {
	case "DEBUG", "INFO", "WARN", "ERROR":
	default:
		return fmt.Errorf("invalid log level: %q", c.Logging.Level)
	}
	return nil
}

// String returns a one-line summary suitable for logging.
func (c *Config) String() string {
	return fmt.Sprintf(
		"Config{Engine: %s, DataDir: %s, Workers: %d, ResultSetSize: %d, Timeout: %s, QueryLog: %v}",
		c.Storage.Engine, c.Storage.DataDir,
		c.Execution.ParallelWorkers, c.Execution.ResultSetSizeLimit,
		c.Execution.QueryTimeout, c.Logging.QueryLogEnabled,
	)
}

// FindConfigFile searches for a config file in standard locations.
// Returns the first one found, or empty string if none found.
// Search order:
//  1. ~/.nornicexec/config.yaml
//  2. Current working directory (nornicexec.yaml, nornicexec.toml)
//  3. ~/.config/nornicexec/config.yaml (XDG)
func FindConfigFile() string {
	var candidates []string
	home, homeErr := os.UserHomeDir()
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".nornicexec", "config.yaml"))
	}
	candidates = append(candidates, "nornicexec.yaml", "nornicexec.toml")
	if homeErr == nil {
		candidates = append(candidates, filepath.Join(home, ".config", "nornicexec", "config.yaml"))
	}

	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// ApplyRuntimeMemory applies the memory settings to the Go runtime.
// Call it early in main, before heavy allocations.
func (c *MemoryConfig) ApplyRuntimeMemory() {
	if c.RuntimeLimit > 0 {
		debug.SetMemoryLimit(c.RuntimeLimit)
	}
	if c.GCPercent != 100 {
		debug.SetGCPercent(c.GCPercent)
	}
}

// Helper functions for environment variable parsing

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		val = strings.ToLower(val)
		return val == "true" || val == "1" || val == "yes" || val == "on"
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
		// Try parsing as seconds
		if secs, err := strconv.Atoi(val); err == nil {
			return time.Duration(secs) * time.Second
		}
	}
	return defaultVal
}

// parseMemorySize parses a human-readable memory size string.
// Supports: "1024", "1KB", "1MB", "1GB", "1TB", "0", "unlimited"
func parseMemorySize(s string) int64 {
	s = strings.TrimSpace(strings.ToUpper(s))
	if s == "" || s == "0" || s == "UNLIMITED" {
		return 0
	}

	s = strings.TrimSuffix(s, "B")

	var multiplier int64 = 1
	switch {
	case strings.HasSuffix(s, "K"):
		multiplier = 1024
		s = strings.TrimSuffix(s, "K")
	case strings.HasSuffix(s, "M"):
		multiplier = 1024 * 1024
		s = strings.TrimSuffix(s, "M")
	case strings.HasSuffix(s, "G"):
		multiplier = 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "G")
	case strings.HasSuffix(s, "T"):
		multiplier = 1024 * 1024 * 1024 * 1024
		s = strings.TrimSuffix(s, "T")
	}

	val, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0
	}
	return val * multiplier
}

// FormatMemorySize formats bytes as human-readable string.
func FormatMemorySize(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
		TB = GB * 1024
	)

	switch {
	case bytes >= TB:
		return fmt.Sprintf("%.2f TB", float64(bytes)/float64(TB))
	case bytes >= GB:
		return fmt.Sprintf("%.2f GB", float64(bytes)/float64(GB))
	case bytes >= MB:
		return fmt.Sprintf("%.2f MB", float64(bytes)/float64(MB))
	case bytes >= KB:
		return fmt.Sprintf("%.2f KB", float64(bytes)/float64(KB))
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

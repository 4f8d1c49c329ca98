// Package config provides configuration loading and management using koanf.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Default configuration values.
const (
	// DefaultServerPort is the default HTTP server port.
	DefaultServerPort = 8080

	// DefaultMaxRequestSize is the default maximum request body size (64KB).
	// Answer patches are a few hundred bytes.
	DefaultMaxRequestSize = 64 << 10

	// DefaultConfigDir is where Load looks for base.yaml and profile files.
	DefaultConfigDir = "configs"

	// DefaultLogFileMaxSizeMB is the default max log file size in megabytes.
	DefaultLogFileMaxSizeMB = 100

	// DefaultLogFileMaxBackups is the default number of old log files to retain.
	DefaultLogFileMaxBackups = 3

	// DefaultLogFileMaxAgeDays is the default max days to retain old log files.
	DefaultLogFileMaxAgeDays = 28

	// DefaultKeyPrefix namespaces snapshot keys in a shared store.
	DefaultKeyPrefix = "treed_quiz_progress"

	// DefaultBreakerMaxFailures is the consecutive store failures that open the circuit.
	DefaultBreakerMaxFailures = 5

	// DefaultBreakerHalfOpenLimit is the successes needed to close it again.
	DefaultBreakerHalfOpenLimit = 2

	// DefaultQuoteRecipient receives quotation requests.
	DefaultQuoteRecipient = "mo@treed.co"

	// DefaultQuoteSubject is the subject line of the quotation email.
	DefaultQuoteSubject = "Quotation Request - Tree'd History Guide"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// envPrefix marks environment variables that override configuration.
const envPrefix = "APP_"

// Config is the root configuration structure.
type Config struct {
	App       AppConfig       `koanf:"app"       validate:"required"`
	Server    ServerConfig    `koanf:"server"    validate:"required"`
	Log       LogConfig       `koanf:"log"       validate:"required"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Store     StoreConfig     `koanf:"store"     validate:"required"`
	Quiz      QuizConfig      `koanf:"quiz"      validate:"required"`
}

// AppConfig contains application-level settings.
type AppConfig struct {
	Name        string `koanf:"name"        validate:"required"`
	Version     string `koanf:"version"     validate:"required"`
	Environment string `koanf:"environment" validate:"required,oneof=local dev qa prod test"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Port            int           `koanf:"port"             validate:"required,min=1,max=65535"`
	Host            string        `koanf:"host"             validate:"required"`
	ReadTimeout     time.Duration `koanf:"read_timeout"     validate:"required,min=1s"`
	WriteTimeout    time.Duration `koanf:"write_timeout"    validate:"required,min=1s"`
	IdleTimeout     time.Duration `koanf:"idle_timeout"     validate:"required,min=1s"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"required,min=1s"`
	RequestTimeout  time.Duration `koanf:"request_timeout"  validate:"min=0"`
	MaxRequestSize  int64         `koanf:"max_request_size" validate:"required,min=1"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level  string        `koanf:"level"  validate:"required,oneof=trace debug info warn error"`
	Format string        `koanf:"format" validate:"required,oneof=json text pretty"`
	File   LogFileConfig `koanf:"file"`
}

// LogFileConfig contains rolling log file settings.
type LogFileConfig struct {
	Enabled    bool   `koanf:"enabled"`
	Path       string `koanf:"path"        validate:"required_if=Enabled true"`
	Level      string `koanf:"level"       validate:"omitempty,oneof=trace debug info warn error"`
	MaxSizeMB  int    `koanf:"max_size"    validate:"omitempty,min=1,max=1024"`
	MaxBackups int    `koanf:"max_backups" validate:"omitempty,min=0,max=100"`
	MaxAgeDays int    `koanf:"max_age"     validate:"omitempty,min=0,max=365"`
	Compress   bool   `koanf:"compress"`
}

// TelemetryConfig contains OpenTelemetry settings.
type TelemetryConfig struct {
	Enabled      bool    `koanf:"enabled"`
	Endpoint     string  `koanf:"endpoint"      validate:"required_if=Enabled true,omitempty,hostname_port"`
	Insecure     bool    `koanf:"insecure"`
	ServiceName  string  `koanf:"service_name"  validate:"required_if=Enabled true"`
	SamplingRate float64 `koanf:"sampling_rate" validate:"min=0,max=1"`
}

// StoreConfig selects and configures the snapshot store.
// Backend-specific sections are checked by storeStructLevel.
type StoreConfig struct {
	Backend   string             `koanf:"backend"    validate:"required,oneof=memory file redis sqlite"`
	KeyPrefix string             `koanf:"key_prefix" validate:"required"`
	OpTimeout time.Duration      `koanf:"op_timeout" validate:"min=0"`
	File      FileStoreConfig    `koanf:"file"`
	Redis     RedisStoreConfig   `koanf:"redis"`
	SQLite    SQLiteStoreConfig  `koanf:"sqlite"`
	Breaker   StoreBreakerConfig `koanf:"breaker"`
}

// FileStoreConfig configures the one-file-per-session store.
type FileStoreConfig struct {
	Dir string `koanf:"dir"`
}

// RedisStoreConfig configures the redis store.
type RedisStoreConfig struct {
	Addr     string        `koanf:"addr"     validate:"omitempty,hostname_port"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db"       validate:"min=0,max=15"`
	TTL      time.Duration `koanf:"ttl"      validate:"min=0"`
}

// SQLiteStoreConfig configures the sqlite store.
type SQLiteStoreConfig struct {
	Path string `koanf:"path"`
}

// StoreBreakerConfig configures the circuit breaker around the store.
// MaxFailures of zero disables it.
type StoreBreakerConfig struct {
	MaxFailures   int           `koanf:"max_failures"    validate:"min=0"`
	Cooldown      time.Duration `koanf:"cooldown"        validate:"required_with=MaxFailures,omitempty,min=100ms"`
	HalfOpenLimit int           `koanf:"half_open_limit" validate:"required_with=MaxFailures,omitempty,min=1"`
}

// QuizConfig contains the wizard timings, session lifecycle and quote settings.
type QuizConfig struct {
	Timings            TimingsConfig `koanf:"timings"              validate:"required"`
	SessionIdleTimeout time.Duration `koanf:"session_idle_timeout" validate:"required,min=1s"`
	JanitorInterval    time.Duration `koanf:"janitor_interval"     validate:"required,min=100ms"`
	Quote              QuoteConfig   `koanf:"quote"                validate:"required"`
}

// TimingsConfig holds the step transition durations.
// The surge is raised during the exit animation, so it cannot outlast it.
type TimingsConfig struct {
	SurgeDelay         time.Duration `koanf:"surge_delay"         validate:"min=0,ltefield=ExitDuration"`
	ExitDuration       time.Duration `koanf:"exit_duration"       validate:"required,min=1ms"`
	EnterDuration      time.Duration `koanf:"enter_duration"      validate:"required,min=1ms"`
	ProcessingDuration time.Duration `koanf:"processing_duration" validate:"required,min=1ms"`
}

// QuoteConfig sets the address and subject of the quotation mailto link.
type QuoteConfig struct {
	Recipient string `koanf:"recipient" validate:"required,email"`
	Subject   string `koanf:"subject"   validate:"required"`
}

// defaults returns the default configuration values.
func defaults() map[string]any {
	return map[string]any{
		"app.name":        "gallery-quiz",
		"app.version":     "dev",
		"app.environment": "local",

		"server.port":             DefaultServerPort,
		"server.host":             "0.0.0.0",
		"server.read_timeout":     "15s",
		"server.write_timeout":    "15s",
		"server.idle_timeout":     "120s",
		"server.shutdown_timeout": "10s",
		"server.request_timeout":  "10s",
		"server.max_request_size": DefaultMaxRequestSize,

		"log.level":            "info",
		"log.format":           "json",
		"log.file.enabled":     false,
		"log.file.path":        "./logs/gallery-quiz.log",
		"log.file.level":       "",
		"log.file.max_size":    DefaultLogFileMaxSizeMB,
		"log.file.max_backups": DefaultLogFileMaxBackups,
		"log.file.max_age":     DefaultLogFileMaxAgeDays,
		"log.file.compress":    true,

		"telemetry.enabled":       false,
		"telemetry.endpoint":      "",
		"telemetry.insecure":      true,
		"telemetry.service_name":  "gallery-quiz",
		"telemetry.sampling_rate": 1.0,

		"store.backend":                 BackendMemory,
		"store.key_prefix":              DefaultKeyPrefix,
		"store.op_timeout":              "2s",
		"store.file.dir":                "./data/snapshots",
		"store.redis.addr":              "localhost:6379",
		"store.redis.password":          "",
		"store.redis.db":                0,
		"store.redis.ttl":               "720h",
		"store.sqlite.path":             "./data/quiz.db",
		"store.breaker.max_failures":    DefaultBreakerMaxFailures,
		"store.breaker.cooldown":        "30s",
		"store.breaker.half_open_limit": DefaultBreakerHalfOpenLimit,

		"quiz.timings.surge_delay":         "400ms",
		"quiz.timings.exit_duration":       "400ms",
		"quiz.timings.enter_duration":      "500ms",
		"quiz.timings.processing_duration": "2500ms",
		"quiz.session_idle_timeout":        "30m",
		"quiz.janitor_interval":            "1m",
		"quiz.quote.recipient":             DefaultQuoteRecipient,
		"quiz.quote.subject":               DefaultQuoteSubject,
	}
}

// Load loads configuration from DefaultConfigDir. See LoadDir.
func Load(profile string) (*Config, error) {
	return LoadDir(DefaultConfigDir, profile)
}

// LoadDir loads configuration with the following precedence (highest to lowest):
//  1. Environment variables (APP_ prefix)
//  2. Profile config file ({dir}/{profile}.yaml)
//  3. Base config file ({dir}/base.yaml)
//  4. Default values
func LoadDir(dir, profile string) (*Config, error) {
	k := koanf.New(".")

	err := k.Load(confmap.Provider(defaults(), "."), nil)
	if err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	err = loadFileIfExists(k, filepath.Join(dir, "base.yaml"))
	if err != nil {
		return nil, fmt.Errorf("loading base config: %w", err)
	}

	if profile != "" {
		err := loadFileIfExists(k, filepath.Join(dir, profile+".yaml"))
		if err != nil {
			return nil, fmt.Errorf("loading profile config %q: %w", profile, err)
		}
	}

	err = k.Load(env.Provider(envPrefix, ".", envKeyMapper(k.Keys())), nil)
	if err != nil {
		return nil, fmt.Errorf("loading env vars: %w", err)
	}

	var cfg Config

	err = k.Unmarshal("", &cfg)
	if err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	return &cfg, nil
}

// envKeyMapper maps APP_STORE_REDIS_ADDR to store.redis.addr. Keys that
// themselves contain underscores (server.read_timeout) are resolved against
// the known keys; unknown variables fall back to replacing every underscore.
func envKeyMapper(known []string) func(string) string {
	byEnv := make(map[string]string, len(known))
	for _, key := range known {
		byEnv[strings.ReplaceAll(key, ".", "_")] = key
	}

	return func(s string) string {
		name := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		if key, ok := byEnv[name]; ok {
			return key
		}

		return strings.ReplaceAll(name, "_", ".")
	}
}

// loadFileIfExists loads a YAML config file if it exists.
// Returns nil if the file doesn't exist, error only for parse/read failures.
func loadFileIfExists(k *koanf.Koanf, path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}

	return k.Load(file.Provider(path), yaml.Parser())
}

// LoadDotEnv exports the variables of the given .env files into the process
// environment without overriding variables that are already set. Missing
// files are skipped.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}

		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("loading %s: %w", p, err)
		}
	}

	return nil
}

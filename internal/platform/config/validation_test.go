package config

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// validConfig returns a fully valid configuration for testing.
func validConfig() *Config {
	return &Config{
		App: AppConfig{
			Name:        "test-service",
			Version:     "1.0.0",
			Environment: "local",
		},
		Server: ServerConfig{
			Port:            8080,
			Host:            "0.0.0.0",
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			IdleTimeout:     120 * time.Second,
			ShutdownTimeout: 10 * time.Second,
			MaxRequestSize:  1048576,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Store: StoreConfig{
			Backend:   BackendMemory,
			KeyPrefix: DefaultKeyPrefix,
			OpTimeout: 2 * time.Second,
			Breaker: StoreBreakerConfig{
				MaxFailures:   5,
				Cooldown:      30 * time.Second,
				HalfOpenLimit: 2,
			},
		},
		Quiz: QuizConfig{
			Timings: TimingsConfig{
				SurgeDelay:         400 * time.Millisecond,
				ExitDuration:       400 * time.Millisecond,
				EnterDuration:      500 * time.Millisecond,
				ProcessingDuration: 2500 * time.Millisecond,
			},
			SessionIdleTimeout: 30 * time.Minute,
			JanitorInterval:    time.Minute,
			Quote: QuoteConfig{
				Recipient: DefaultQuoteRecipient,
				Subject:   DefaultQuoteSubject,
			},
		},
	}
}

func TestConfig_Validate_ValidConfig(t *testing.T) {
	cfg := validConfig()
	err := cfg.Validate()
	assert.NoError(t, err)
}

func TestConfig_Validate_AppConfig(t *testing.T) {
	t.Run("missing name", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Name = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.name")
		assert.Contains(t, err.Error(), "required")
	})

	t.Run("missing version", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Version = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.version")
	})

	t.Run("missing environment", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Environment = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.environment")
	})

	t.Run("invalid environment", func(t *testing.T) {
		cfg := validConfig()
		cfg.App.Environment = "invalid"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "app.environment")
		assert.Contains(t, err.Error(), "must be one of")
	})
}

func TestConfig_Validate_ValidEnvironments(t *testing.T) {
	validEnvs := []string{"local", "dev", "qa", "prod", "test"}

	for _, env := range validEnvs {
		t.Run(env, func(t *testing.T) {
			cfg := validConfig()
			cfg.App.Environment = env

			err := cfg.Validate()
			assert.NoError(t, err)
		})
	}
}

func TestConfig_Validate_ServerConfig(t *testing.T) {
	t.Run("valid port range", func(t *testing.T) {
		tests := []struct {
			name    string
			port    int
			wantErr bool
		}{
			{"minimum valid port", 1, false},
			{"typical port", 8080, false},
			{"maximum valid port", 65535, false},
			{"zero port", 0, true},
			{"negative port", -1, true},
			{"port too high", 65536, true},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				cfg := validConfig()
				cfg.Server.Port = tt.port

				err := cfg.Validate()
				if tt.wantErr {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), "server.port")
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})

	t.Run("missing host", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.Host = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.host")
	})

	t.Run("timeout minimum", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.ReadTimeout = 500 * time.Millisecond // Less than 1s minimum

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.read_timeout")
	})

	t.Run("max request size minimum", func(t *testing.T) {
		cfg := validConfig()
		cfg.Server.MaxRequestSize = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "server.max_request_size")
	})
}

func TestConfig_Validate_LogConfig(t *testing.T) {
	t.Run("valid log levels", func(t *testing.T) {
		levels := []string{"trace", "debug", "info", "warn", "error"}
		for _, level := range levels {
			t.Run(level, func(t *testing.T) {
				cfg := validConfig()
				cfg.Log.Level = level

				err := cfg.Validate()
				assert.NoError(t, err)
			})
		}
	})

	t.Run("invalid log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.Level = "invalid"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
		assert.Contains(t, err.Error(), "must be one of")
	})

	t.Run("case sensitive log level", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.Level = "DEBUG" // Should be lowercase

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.level")
	})

	t.Run("valid log formats", func(t *testing.T) {
		formats := []string{"json", "text", "pretty"}
		for _, format := range formats {
			t.Run(format, func(t *testing.T) {
				cfg := validConfig()
				cfg.Log.Format = format

				err := cfg.Validate()
				assert.NoError(t, err)
			})
		}
	})

	t.Run("invalid log format", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.Format = "xml"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.format")
	})
}

func TestConfig_Validate_LogFileConfig(t *testing.T) {
	t.Run("file logging disabled - path not required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.File.Enabled = false
		cfg.Log.File.Path = ""

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("file logging enabled - path required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.File.Enabled = true
		cfg.Log.File.Path = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.file.path")
	})

	t.Run("file logging enabled with valid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.File.Enabled = true
		cfg.Log.File.Path = "/var/log/app.log"
		cfg.Log.File.MaxSizeMB = 100
		cfg.Log.File.MaxBackups = 3
		cfg.Log.File.MaxAgeDays = 28

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("max size bounds", func(t *testing.T) {
		cfg := validConfig()
		cfg.Log.File.Enabled = true
		cfg.Log.File.Path = "/var/log/app.log"
		cfg.Log.File.MaxSizeMB = 1025 // Exceeds max of 1024

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "log.file.max_size")
	})
}

func TestConfig_Validate_TelemetryConfig(t *testing.T) {
	t.Run("telemetry disabled - endpoint not required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Enabled = false
		cfg.Telemetry.Endpoint = ""

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("telemetry enabled - endpoint required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = ""
		cfg.Telemetry.ServiceName = "test"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.endpoint")
	})

	t.Run("telemetry enabled - service name required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = "localhost:4317"
		cfg.Telemetry.ServiceName = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.service_name")
	})

	t.Run("telemetry enabled - endpoint without port", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = "not-a-url"
		cfg.Telemetry.ServiceName = "test"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "telemetry.endpoint")
	})

	t.Run("telemetry enabled with valid config", func(t *testing.T) {
		cfg := validConfig()
		cfg.Telemetry.Enabled = true
		cfg.Telemetry.Endpoint = "localhost:4317"
		cfg.Telemetry.ServiceName = "test-service"
		cfg.Telemetry.SamplingRate = 0.5

		err := cfg.Validate()
		assert.NoError(t, err)
	})

	t.Run("sampling rate bounds", func(t *testing.T) {
		tests := []struct {
			rate    float64
			wantErr bool
		}{
			{0.0, false},
			{0.5, false},
			{1.0, false},
			{-0.1, true},
			{1.1, true},
		}

		for _, tt := range tests {
			t.Run(fmt.Sprintf("rate_%v", tt.rate), func(t *testing.T) {
				cfg := validConfig()
				cfg.Telemetry.SamplingRate = tt.rate

				err := cfg.Validate()
				if tt.wantErr {
					assert.Error(t, err)
					assert.Contains(t, err.Error(), "telemetry.sampling_rate")
				} else {
					assert.NoError(t, err)
				}
			})
		}
	})
}

func TestConfig_Validate_StoreConfig(t *testing.T) {
	t.Run("valid backends", func(t *testing.T) {
		for _, backend := range []string{BackendMemory, BackendFile, BackendRedis, BackendSQLite} {
			t.Run(backend, func(t *testing.T) {
				cfg := validConfig()
				cfg.Store.Backend = backend
				cfg.Store.File.Dir = "/var/lib/quiz"
				cfg.Store.Redis.Addr = "localhost:6379"
				cfg.Store.SQLite.Path = "/var/lib/quiz.db"

				assert.NoError(t, cfg.Validate())
			})
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.Backend = "postgres"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.backend")
		assert.Contains(t, err.Error(), "must be one of")
	})

	tests := []struct {
		name    string
		mutate  func(*StoreConfig)
		wantErr string
	}{
		{
			name:    "file backend needs a directory",
			mutate:  func(s *StoreConfig) { s.Backend = BackendFile; s.File.Dir = " " },
			wantErr: "store.file.dir is required for the file backend",
		},
		{
			name:    "redis backend needs an address",
			mutate:  func(s *StoreConfig) { s.Backend = BackendRedis },
			wantErr: "store.redis.addr is required for the redis backend",
		},
		{
			name:    "sqlite backend needs a path",
			mutate:  func(s *StoreConfig) { s.Backend = BackendSQLite },
			wantErr: "store.sqlite.path is required for the sqlite backend",
		},
		{
			name:    "redis address must be host and port",
			mutate:  func(s *StoreConfig) { s.Backend = BackendRedis; s.Redis.Addr = "localhost" },
			wantErr: "store.redis.addr must be host:port",
		},
		{
			name:    "redis database out of range",
			mutate:  func(s *StoreConfig) { s.Redis.DB = 16 },
			wantErr: "store.redis.db must be at most 15",
		},
		{
			name:    "key prefix required",
			mutate:  func(s *StoreConfig) { s.KeyPrefix = "" },
			wantErr: "store.key_prefix is required",
		},
		{
			name:    "key prefix without whitespace",
			mutate:  func(s *StoreConfig) { s.KeyPrefix = "gallery quiz" },
			wantErr: "store.key_prefix must not contain whitespace",
		},
		{
			name:    "breaker cooldown required with failures",
			mutate:  func(s *StoreConfig) { s.Breaker.Cooldown = 0 },
			wantErr: "store.breaker.cooldown is required when max_failures is set",
		},
		{
			name:    "breaker half-open limit required with failures",
			mutate:  func(s *StoreConfig) { s.Breaker.HalfOpenLimit = 0 },
			wantErr: "store.breaker.half_open_limit is required when max_failures is set",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg.Store)

			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("breaker disabled", func(t *testing.T) {
		cfg := validConfig()
		cfg.Store.Breaker = StoreBreakerConfig{}

		assert.NoError(t, cfg.Validate())
	})
}

func TestConfig_Validate_QuizConfig(t *testing.T) {
	t.Run("surge may not outlast the exit animation", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.Timings.SurgeDelay = cfg.Quiz.Timings.ExitDuration + time.Millisecond

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quiz.timings.surge_delay must not exceed exit_duration")
	})

	t.Run("zero surge delay", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.Timings.SurgeDelay = 0

		assert.NoError(t, cfg.Validate())
	})

	t.Run("processing duration required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.Timings.ProcessingDuration = 0

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quiz.timings.processing_duration")
	})

	t.Run("idle timeout minimum", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.SessionIdleTimeout = 500 * time.Millisecond

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quiz.session_idle_timeout must be at least 1s")
	})

	t.Run("quote recipient must be an address", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.Quote.Recipient = "not an address"

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quiz.quote.recipient must be a valid email address")
	})

	t.Run("quote subject required", func(t *testing.T) {
		cfg := validConfig()
		cfg.Quiz.Quote.Subject = ""

		err := cfg.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "quiz.quote.subject is required")
	})
}

func TestConfig_Validate_MultipleErrors(t *testing.T) {
	cfg := &Config{
		App: AppConfig{
			Name:        "",        // missing
			Version:     "",        // missing
			Environment: "invalid", // invalid
		},
		Server: ServerConfig{
			Port: -1, // invalid
		},
		// Other fields will fail required validation
	}

	err := cfg.Validate()
	require.Error(t, err)

	// Should report multiple errors
	errStr := err.Error()
	assert.Contains(t, errStr, "app.name")
	assert.Contains(t, errStr, "app.version")
}

func TestFormatFieldPath(t *testing.T) {
	tests := []struct {
		namespace string
		expected  string
	}{
		{"Config.server.port", "server.port"},
		{"Config.app.name", "app.name"},
		{"Config.store.redis.addr", "store.redis.addr"},
		{"Config.log.file.path", "log.file.path"},
		{"Config.telemetry.sampling_rate", "telemetry.sampling_rate"},
		{"Config", "Config"},
	}

	for _, tt := range tests {
		t.Run(tt.namespace, func(t *testing.T) {
			result := formatFieldPath(tt.namespace)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestToKey(t *testing.T) {
	assert.Equal(t, "exit_duration", toKey("ExitDuration"))
	assert.Equal(t, "max_failures", toKey("MaxFailures"))
	assert.Equal(t, "enabled", toKey("Enabled"))
}

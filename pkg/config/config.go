package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rentroll/rentroll/pkg/stores"
	"github.com/rentroll/rentroll/pkg/telemetry"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "RENTROLL_"

// DefaultFile is the config file looked up in the working directory when no
// path is given.
const DefaultFile = "rentroll.yaml"

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func structValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Default returns a configuration that works without a config file: a SQLite
// database in the working directory with migrations applied on open.
func Default() *Config {
	tel := telemetry.DefaultConfig()
	tel.Metrics.Enabled = false

	return &Config{
		Storage: StorageConfig{
			Driver:          DriverSQLite,
			Path:            "rentroll.db",
			MaxOpenConns:    25,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
			AutoMigrate:     true,
		},
		Telemetry: *tel,
		Backup: BackupConfig{
			Directory: "backups",
			Keep:      7,
			SFTP: SFTPConfig{
				Port:    22,
				Timeout: 30 * time.Second,
			},
		},
	}
}

// Load builds the configuration from defaults, the YAML file at path and
// RENTROLL_* environment variables, in that order, and validates the result.
// An empty path falls back to DefaultFile when it exists.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	if err := ApplyEnv(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides cfg with RENTROLL_* environment variables.
func ApplyEnv(cfg *Config) error {
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return fmt.Errorf("failed to apply environment overrides: %w", err)
	}
	return nil
}

// Validate checks struct constraints and the telemetry section.
func (c *Config) Validate() error {
	if err := structValidator().Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			msgs := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %s", strings.TrimPrefix(fe.Namespace(), "Config."), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Telemetry.Validate(); err != nil {
		return fmt.Errorf("invalid telemetry configuration: %w", err)
	}
	return nil
}

// Write stores cfg as YAML at path. Existing files are left alone unless overwrite is set.
func (c *Config) Write(path string, overwrite bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags |= os.O_EXCL
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		return fmt.Errorf("failed to create config %s: %w", path, err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write config %s: %w", path, err)
	}
	return f.Close()
}

// SQL returns the SQL store configuration. It fails for the memory driver.
func (s StorageConfig) SQL() (stores.Config, error) {
	cfg := stores.Config{
		MaxOpenConns:    s.MaxOpenConns,
		MaxIdleConns:    s.MaxIdleConns,
		ConnMaxLifetime: s.ConnMaxLifetime,
	}
	switch s.Driver {
	case DriverSQLite:
		cfg.Dialect = stores.DialectSQLite
		cfg.DSN = s.Path
	case DriverPostgres:
		cfg.Dialect = stores.DialectPostgres
		cfg.DSN = s.DSN
	default:
		return stores.Config{}, fmt.Errorf("storage driver %s is not SQL", s.Driver)
	}
	return cfg, nil
}

package config

import (
	"time"

	"github.com/rentroll/rentroll/pkg/telemetry"
)

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Config is the complete rentroll configuration.
type Config struct {
	// Storage selects and configures the persistence backend.
	Storage StorageConfig `yaml:"storage" envPrefix:"STORAGE_"`

	// Telemetry configures logging, tracing, metrics and events.
	Telemetry telemetry.Config `yaml:"telemetry"`

	// Policy configures admission policies.
	Policy PolicyConfig `yaml:"policy" envPrefix:"POLICY_"`

	// Backup configures database snapshots.
	Backup BackupConfig `yaml:"backup" envPrefix:"BACKUP_"`
}

// StorageConfig configures the persistence backend.
type StorageConfig struct {
	// Driver is one of sqlite, postgres or memory.
	Driver string `yaml:"driver" env:"DRIVER" validate:"required,oneof=sqlite postgres memory"`

	// Path is the SQLite database file.
	Path string `yaml:"path" env:"PATH" validate:"required_if=Driver sqlite"`

	// DSN is the Postgres connection URL.
	DSN string `yaml:"dsn" env:"DSN" validate:"required_if=Driver postgres"`

	MaxOpenConns    int           `yaml:"maxOpenConns" env:"MAX_OPEN_CONNS" validate:"gte=0"`
	MaxIdleConns    int           `yaml:"maxIdleConns" env:"MAX_IDLE_CONNS" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime" env:"CONN_MAX_LIFETIME" validate:"gte=0"`

	// AutoMigrate applies pending schema migrations when the store opens.
	AutoMigrate bool `yaml:"autoMigrate" env:"AUTO_MIGRATE"`
}

// PolicyConfig configures admission policies.
type PolicyConfig struct {
	// Dirs lists files or directories with additional .rego and JSON policies.
	Dirs []string `yaml:"dirs" env:"DIRS" envSeparator:","`

	// Disabled lists policy names, built-in or loaded, that are switched off.
	Disabled []string `yaml:"disabled" env:"DISABLED" envSeparator:","`

	// Watch reloads policies from Dirs when files change.
	Watch bool `yaml:"watch" env:"WATCH"`
}

// BackupConfig configures database snapshots.
type BackupConfig struct {
	// Directory receives local snapshot files.
	Directory string `yaml:"directory" env:"DIR" validate:"required"`

	// Keep is the number of local snapshots retained. Zero keeps all.
	Keep int `yaml:"keep" env:"KEEP" validate:"gte=0"`

	// SFTP optionally uploads each snapshot off-host.
	SFTP SFTPConfig `yaml:"sftp" envPrefix:"SFTP_"`
}

// SFTPConfig describes an SFTP upload target. Uploads are disabled when Host is empty.
type SFTPConfig struct {
	Host string `yaml:"host" env:"HOST"`
	Port int    `yaml:"port" env:"PORT" validate:"omitempty,min=1,max=65535"`
	User string `yaml:"user" env:"USER" validate:"required_with=Host"`

	// Password or KeyFile authenticates the user. KeyFile wins when both are set.
	Password      string `yaml:"password" env:"PASSWORD"`
	KeyFile       string `yaml:"keyFile" env:"KEY_FILE"`
	KeyPassphrase string `yaml:"keyPassphrase" env:"KEY_PASSPHRASE"`

	// KnownHostsFile enables host key verification. Without it any host key is accepted.
	KnownHostsFile string `yaml:"knownHostsFile" env:"KNOWN_HOSTS"`

	RemoteDir string        `yaml:"remoteDir" env:"REMOTE_DIR"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT" validate:"gte=0"`
}

// Enabled reports whether an SFTP target is configured.
func (s SFTPConfig) Enabled() bool {
	return s.Host != ""
}

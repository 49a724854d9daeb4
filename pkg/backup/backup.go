package backup

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/rentroll/rentroll/pkg/telemetry"
)

const (
	filePrefix = "rentroll-"
	fileSuffix = ".db"
	timeLayout = "20060102T150405Z"
)

// Options configures a Manager.
type Options struct {
	// Directory receives snapshot files. It is created if missing.
	Directory string

	// Keep is the number of snapshots retained locally. Zero keeps all.
	Keep int

	// SFTP uploads each snapshot when set.
	SFTP *SFTPTarget

	Logger *telemetry.Logger
	Clock  func() time.Time
}

// Result describes one completed backup.
type Result struct {
	Path       string        `json:"path"`
	Size       int64         `json:"size"`
	Checksum   string        `json:"checksum"`
	RemotePath string        `json:"remotePath,omitempty"`
	Pruned     []string      `json:"pruned,omitempty"`
	Duration   time.Duration `json:"duration"`
}

// Manager takes online snapshots of a SQLite database.
type Manager struct {
	db     *sql.DB
	opts   Options
	logger *telemetry.Logger
}

// New returns a Manager for db, which must be a SQLite connection pool.
func New(db *sql.DB, opts Options) (*Manager, error) {
	if db == nil {
		return nil, fmt.Errorf("database is required")
	}
	if opts.Directory == "" {
		return nil, fmt.Errorf("backup directory is required")
	}
	if opts.Keep < 0 {
		return nil, fmt.Errorf("keep must not be negative")
	}
	if opts.SFTP != nil {
		if err := opts.SFTP.Validate(); err != nil {
			return nil, fmt.Errorf("invalid sftp target: %w", err)
		}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NopLogger()
	}

	return &Manager{db: db, opts: opts, logger: logger.NewComponentLogger("backup")}, nil
}

// Run snapshots the database, prunes old snapshots and uploads the new one.
// A failed upload is returned as an error but the local snapshot is kept.
func (m *Manager) Run(ctx context.Context) (*Result, error) {
	start := time.Now()

	p, err := m.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(p)
	if err != nil {
		return nil, fmt.Errorf("failed to stat snapshot: %w", err)
	}
	sum, err := checksum(p)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum snapshot: %w", err)
	}
	res := &Result{Path: p, Size: info.Size(), Checksum: sum}

	res.Pruned, err = m.Prune()
	if err != nil {
		return res, err
	}

	if m.opts.SFTP != nil {
		remote, err := m.opts.SFTP.Upload(ctx, p)
		if err != nil {
			return res, fmt.Errorf("failed to upload snapshot: %w", err)
		}
		res.RemotePath = remote
		m.logger.WithFields(map[string]interface{}{
			"remote": remote,
			"host":   m.opts.SFTP.Address(),
		}).Info("Snapshot uploaded")
	}

	res.Duration = time.Since(start)
	m.logger.WithFields(map[string]interface{}{
		"path":     p,
		"bytes":    res.Size,
		"pruned":   len(res.Pruned),
		"duration": res.Duration.String(),
	}).Info("Backup completed")
	return res, nil
}

// Snapshot writes a consistent copy of the database with VACUUM INTO and
// returns its path.
func (m *Manager) Snapshot(ctx context.Context) (string, error) {
	if err := os.MkdirAll(m.opts.Directory, 0o755); err != nil {
		return "", fmt.Errorf("failed to create backup directory: %w", err)
	}

	name := filePrefix + m.opts.Clock().UTC().Format(timeLayout) + fileSuffix
	p := filepath.Join(m.opts.Directory, name)
	if _, err := os.Stat(p); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", p)
	}

	if _, err := m.db.ExecContext(ctx, `VACUUM INTO ?`, p); err != nil {
		return "", fmt.Errorf("failed to snapshot database: %w", err)
	}
	m.logger.WithField("path", p).Debug("Snapshot written")
	return p, nil
}

// List returns the snapshot files in the backup directory, oldest first.
func (m *Manager) List() ([]string, error) {
	entries, err := os.ReadDir(m.opts.Directory)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read backup directory: %w", err)
	}

	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, filePrefix) || !strings.HasSuffix(name, fileSuffix) {
			continue
		}
		stamp := strings.TrimSuffix(strings.TrimPrefix(name, filePrefix), fileSuffix)
		if _, err := time.Parse(timeLayout, stamp); err != nil {
			continue
		}
		out = append(out, filepath.Join(m.opts.Directory, name))
	}
	// The timestamp layout sorts lexically.
	sort.Strings(out)
	return out, nil
}

// Prune removes all but the newest Keep snapshots and returns the removed paths.
func (m *Manager) Prune() ([]string, error) {
	if m.opts.Keep == 0 {
		return nil, nil
	}
	all, err := m.List()
	if err != nil {
		return nil, err
	}
	if len(all) <= m.opts.Keep {
		return nil, nil
	}

	stale := all[:len(all)-m.opts.Keep]
	for _, p := range stale {
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("failed to remove old snapshot: %w", err)
		}
		m.logger.WithField("path", p).Debug("Snapshot pruned")
	}
	return stale, nil
}

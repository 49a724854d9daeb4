package commands

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/rentroll/rentroll/pkg/backup"
	"github.com/rentroll/rentroll/pkg/config"
	"github.com/rentroll/rentroll/pkg/stores"
)

func newBackupCommand() *cobra.Command {
	var (
		dir      string
		keep     int
		noUpload bool
	)

	cmd := &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the SQLite database",
		Long: `Write a consistent copy of the SQLite database with VACUUM INTO, prune old
local snapshots and, when backup.sftp is configured, upload the snapshot to the
remote host.

Postgres deployments should use pg_dump instead.`,
		Example: `  # Snapshot into the configured directory
  rentroll backup

  # Keep the last 7 snapshots in /var/backups/rentroll, local only
  rentroll backup --dir /var/backups/rentroll --keep 7 --no-upload`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), func(a *app) error {
				if a.sqlStore == nil || a.sqlStore.Dialect() != stores.DialectSQLite {
					return fmt.Errorf("backup supports the sqlite driver only, configured driver is %s", a.cfg.Storage.Driver)
				}

				opts := backup.Options{
					Directory: a.cfg.Backup.Directory,
					Keep:      a.cfg.Backup.Keep,
					Logger:    a.tel.Logger,
				}
				if dir != "" {
					opts.Directory = dir
				}
				if cmd.Flags().Changed("keep") {
					opts.Keep = keep
				}
				if a.cfg.Backup.SFTP.Enabled() && !noUpload {
					opts.SFTP = sftpTarget(a.cfg.Backup.SFTP)
				}

				mgr, err := backup.New(a.sqlStore.DB(), opts)
				if err != nil {
					return err
				}
				res, err := mgr.Run(cmd.Context())
				if err != nil {
					return err
				}

				log.Info().Str("path", res.Path).Int64("size", res.Size).Msg("Backup complete")
				if jsonOutput {
					return printJSON(os.Stdout, res)
				}
				fmt.Printf("✓ Snapshot: %s (%d bytes, sha256 %s)\n", res.Path, res.Size, res.Checksum)
				if res.RemotePath != "" {
					fmt.Printf("✓ Uploaded: %s\n", res.RemotePath)
				}
				for _, p := range res.Pruned {
					fmt.Printf("✓ Pruned: %s\n", p)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&dir, "dir", "", "snapshot directory (overrides backup.directory)")
	cmd.Flags().IntVar(&keep, "keep", 0, "local snapshots to retain, 0 keeps all (overrides backup.keep)")
	cmd.Flags().BoolVar(&noUpload, "no-upload", false, "skip the SFTP upload")

	return cmd
}

func sftpTarget(c config.SFTPConfig) *backup.SFTPTarget {
	return &backup.SFTPTarget{
		Host:           c.Host,
		Port:           c.Port,
		User:           c.User,
		Password:       c.Password,
		KeyFile:        c.KeyFile,
		KeyPassphrase:  c.KeyPassphrase,
		KnownHostsFile: c.KnownHostsFile,
		RemoteDir:      c.RemoteDir,
		Timeout:        c.Timeout,
	}
}

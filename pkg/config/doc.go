// Package config loads rentroll configuration.
//
// Values are resolved in three layers: built-in defaults, an optional YAML
// file (rentroll.yaml in the working directory unless --config names another),
// and RENTROLL_* environment variables. The merged result is validated with
// struct tags before use.
//
//	storage:
//	  driver: sqlite          # sqlite | postgres | memory
//	  path: rentroll.db
//	  autoMigrate: true
//	policy:
//	  dirs: [policies]
//	  disabled: [lease-type]
//	backup:
//	  directory: backups
//	  sftp:
//	    host: backup.example.com
//	    user: rentroll
//	    keyFile: ~/.ssh/id_ed25519
//	    knownHostsFile: ~/.ssh/known_hosts
//
// Environment names follow the section nesting, for example
// RENTROLL_STORAGE_DSN, RENTROLL_LOG_LEVEL or RENTROLL_BACKUP_SFTP_HOST.
package config

// Package backup takes online snapshots of the SQLite store and optionally
// ships them to an SFTP server.
package backup

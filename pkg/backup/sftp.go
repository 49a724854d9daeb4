package backup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"
)

// SFTPTarget describes where snapshots are uploaded.
type SFTPTarget struct {
	Host string
	Port int
	User string

	// Password is used when KeyFile is empty.
	Password      string
	KeyFile       string
	KeyPassphrase string

	// KnownHostsFile enables host key verification. Without it any host key is accepted.
	KnownHostsFile string

	// RemoteDir receives the uploaded files. Empty means the login directory.
	RemoteDir string

	Timeout time.Duration
}

// Validate checks the target is usable.
func (t *SFTPTarget) Validate() error {
	if t.Host == "" {
		return fmt.Errorf("sftp host is required")
	}
	if t.Port <= 0 || t.Port > 65535 {
		return fmt.Errorf("invalid sftp port: %d", t.Port)
	}
	if t.User == "" {
		return fmt.Errorf("sftp user is required")
	}
	if t.KeyFile == "" && t.Password == "" {
		return fmt.Errorf("sftp password or key file is required")
	}
	if t.KeyFile != "" {
		if _, err := os.Stat(t.KeyFile); err != nil {
			return fmt.Errorf("private key file not found: %s", t.KeyFile)
		}
	}
	return nil
}

// Address returns host:port.
func (t *SFTPTarget) Address() string {
	return net.JoinHostPort(t.Host, strconv.Itoa(t.Port))
}

// ClientConfig builds the SSH client configuration for the target.
func (t *SFTPTarget) ClientConfig() (*ssh.ClientConfig, error) {
	var auth []ssh.AuthMethod

	if t.KeyFile != "" {
		keyBytes, err := os.ReadFile(t.KeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read private key: %w", err)
		}

		var signer ssh.Signer
		if t.KeyPassphrase != "" {
			signer, err = ssh.ParsePrivateKeyWithPassphrase(keyBytes, []byte(t.KeyPassphrase))
		} else {
			signer, err = ssh.ParsePrivateKey(keyBytes)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	} else {
		auth = append(auth, ssh.Password(t.Password))

		// Many servers only offer keyboard-interactive for password logins.
		auth = append(auth, ssh.KeyboardInteractive(
			func(user, instruction string, questions []string, echos []bool) ([]string, error) {
				answers := make([]string, len(questions))
				for i := range answers {
					answers[i] = t.Password
				}
				return answers, nil
			},
		))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if t.KnownHostsFile != "" {
		cb, err := knownhosts.New(t.KnownHostsFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load known_hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	timeout := t.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	return &ssh.ClientConfig{
		User:            t.User,
		Auth:            auth,
		HostKeyCallback: hostKeyCallback,
		Timeout:         timeout,
	}, nil
}

// Upload copies localPath into the remote directory and returns the remote path.
// The upload is written under a temporary name and renamed once its size matches.
func (t *SFTPTarget) Upload(ctx context.Context, localPath string) (string, error) {
	cfg, err := t.ClientConfig()
	if err != nil {
		return "", err
	}

	dialer := net.Dialer{Timeout: cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", t.Address())
	if err != nil {
		return "", fmt.Errorf("failed to connect to %s: %w", t.Address(), err)
	}
	sshConn, chans, reqs, err := ssh.NewClientConn(conn, t.Address(), cfg)
	if err != nil {
		_ = conn.Close()
		return "", fmt.Errorf("ssh handshake with %s failed: %w", t.Address(), err)
	}
	client := ssh.NewClient(sshConn, chans, reqs)
	defer client.Close()

	sftpClient, err := sftp.NewClient(client)
	if err != nil {
		return "", fmt.Errorf("failed to create SFTP client: %w", err)
	}
	defer sftpClient.Close()

	local, err := os.Open(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to open local file: %w", err)
	}
	defer local.Close()

	info, err := local.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat local file: %w", err)
	}

	remoteDir := t.RemoteDir
	if remoteDir == "" {
		remoteDir = "."
	}
	if err := sftpClient.MkdirAll(remoteDir); err != nil {
		return "", fmt.Errorf("failed to create remote directory: %w", err)
	}

	remotePath := path.Join(remoteDir, filepath.Base(localPath))
	partial := remotePath + ".part"

	remote, err := sftpClient.Create(partial)
	if err != nil {
		return "", fmt.Errorf("failed to create remote file: %w", err)
	}
	written, err := copyWithContext(ctx, remote, local)
	if closeErr := remote.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = sftpClient.Remove(partial)
		return "", fmt.Errorf("failed to copy file: %w", err)
	}
	if written != info.Size() {
		_ = sftpClient.Remove(partial)
		return "", fmt.Errorf("short upload: wrote %d of %d bytes", written, info.Size())
	}

	if err := sftpClient.PosixRename(partial, remotePath); err != nil {
		return "", fmt.Errorf("failed to rename remote file: %w", err)
	}
	return remotePath, nil
}

// copyWithContext copies src to dst, checking ctx between chunks.
func copyWithContext(ctx context.Context, dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64

	for {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		nr, err := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr != nil {
				return written, werr
			}
			if nr != nw {
				return written, io.ErrShortWrite
			}
		}
		if err == io.EOF {
			return written, nil
		}
		if err != nil {
			return written, err
		}
	}
}

// checksum returns the hex SHA-256 of a local file.
func checksum(p string) (string, error) {
	f, err := os.Open(p)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

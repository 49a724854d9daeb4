package backup

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"github.com/rentroll/rentroll/pkg/property"
	"github.com/rentroll/rentroll/pkg/stores"
)

func setupStore(t *testing.T) *stores.SQLStore {
	t.Helper()

	store, err := stores.NewSQLStore(stores.Config{
		Dialect: stores.DialectSQLite,
		DSN:     filepath.Join(t.TempDir(), "rentroll.db"),
	})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	ctx := context.Background()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("failed to initialize store: %v", err)
	}
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to migrate store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	rec := &property.VersionRecord{
		ID:                 "agg-1",
		PropertyID:         "P1",
		Version:            "1.0",
		IsLatest:           true,
		PropertyDetails:    property.PropertyDetails{Address: "1 Main St", BuildingSizeSf: 1000},
		UnderwritingInputs: property.UnderwritingInputs{EstStartDate: "2024-01-01", HoldPeriodYears: 5},
		UpdatedBy:          "seed",
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := store.Versions().CreateVersion(ctx, rec); err != nil {
		t.Fatalf("failed to seed version: %v", err)
	}
	return store
}

// steppingClock returns a clock that advances one second per call.
func steppingClock() func() time.Time {
	t := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

func TestNewRejects(t *testing.T) {
	store := setupStore(t)

	if _, err := New(nil, Options{Directory: t.TempDir()}); err == nil {
		t.Error("expected error for nil database")
	}
	if _, err := New(store.DB(), Options{}); err == nil {
		t.Error("expected error for missing directory")
	}
	if _, err := New(store.DB(), Options{Directory: t.TempDir(), Keep: -1}); err == nil {
		t.Error("expected error for negative keep")
	}
	if _, err := New(store.DB(), Options{Directory: t.TempDir(), SFTP: &SFTPTarget{Host: "h"}}); err == nil {
		t.Error("expected error for invalid sftp target")
	}
}

func TestRunSnapshotsAndPrunes(t *testing.T) {
	store := setupStore(t)
	dir := filepath.Join(t.TempDir(), "backups")

	m, err := New(store.DB(), Options{Directory: dir, Keep: 2, Clock: steppingClock()})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	var last *Result
	for i := 0; i < 3; i++ {
		res, err := m.Run(context.Background())
		if err != nil {
			t.Fatalf("Run %d failed: %v", i, err)
		}
		if res.Size == 0 || len(res.Checksum) != 64 {
			t.Errorf("unexpected result: %+v", res)
		}
		last = res
	}
	if len(last.Pruned) != 1 {
		t.Errorf("expected one pruned snapshot on the third run, got %v", last.Pruned)
	}

	// Unrelated files in the directory are left alone.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	files, err := m.List()
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(files) != 2 || files[1] != last.Path {
		t.Fatalf("expected the two newest snapshots, got %v", files)
	}

	snap, err := stores.NewSQLStore(stores.Config{Dialect: stores.DialectSQLite, DSN: last.Path})
	if err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	if err := snap.Init(context.Background()); err != nil {
		t.Fatalf("failed to open snapshot: %v", err)
	}
	defer snap.Close()

	rec, err := snap.Versions().FindVersion(context.Background(), property.Key{PropertyID: "P1", Version: "1.0"})
	if err != nil {
		t.Fatalf("snapshot should contain the seeded version: %v", err)
	}
	if rec.PropertyDetails.Address != "1 Main St" {
		t.Errorf("unexpected snapshot content: %+v", rec)
	}
}

func TestSnapshotRefusesOverwrite(t *testing.T) {
	store := setupStore(t)
	fixed := func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }

	m, err := New(store.DB(), Options{Directory: t.TempDir(), Clock: fixed})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if _, err := m.Snapshot(context.Background()); err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if _, err := m.Snapshot(context.Background()); err == nil {
		t.Error("expected error when snapshot file exists")
	}
}

func TestSFTPTargetValidate(t *testing.T) {
	keyFile := writeClientKey(t)

	tests := []struct {
		name    string
		target  SFTPTarget
		wantErr bool
	}{
		{"password", SFTPTarget{Host: "h", Port: 22, User: "u", Password: "p"}, false},
		{"key", SFTPTarget{Host: "h", Port: 22, User: "u", KeyFile: keyFile}, false},
		{"missing host", SFTPTarget{Port: 22, User: "u", Password: "p"}, true},
		{"bad port", SFTPTarget{Host: "h", Port: 70000, User: "u", Password: "p"}, true},
		{"missing user", SFTPTarget{Host: "h", Port: 22, Password: "p"}, true},
		{"no credentials", SFTPTarget{Host: "h", Port: 22, User: "u"}, true},
		{"missing key file", SFTPTarget{Host: "h", Port: 22, User: "u", KeyFile: "/nonexistent/key"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.target.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestClientConfig(t *testing.T) {
	keyFile := writeClientKey(t)

	target := SFTPTarget{Host: "h", Port: 22, User: "u", KeyFile: keyFile}
	cfg, err := target.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig failed: %v", err)
	}
	if cfg.User != "u" || len(cfg.Auth) != 1 || cfg.Timeout != 30*time.Second {
		t.Errorf("unexpected key config: %+v", cfg)
	}

	target = SFTPTarget{Host: "h", Port: 22, User: "u", Password: "p", Timeout: time.Second}
	cfg, err = target.ClientConfig()
	if err != nil {
		t.Fatalf("ClientConfig failed: %v", err)
	}
	if len(cfg.Auth) != 2 || cfg.Timeout != time.Second {
		t.Errorf("password auth should offer password and keyboard-interactive: %+v", cfg)
	}

	target.KnownHostsFile = filepath.Join(t.TempDir(), "missing")
	if _, err := target.ClientConfig(); err == nil {
		t.Error("expected error for unreadable known_hosts")
	}
}

func TestRunUploadsOverSFTP(t *testing.T) {
	store := setupStore(t)
	server := newTestSFTPServer(t)
	remoteDir := filepath.Join(t.TempDir(), "remote", "nested")

	host, portStr, _ := net.SplitHostPort(server.addr)
	port, _ := strconv.Atoi(portStr)

	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(server.addr)}, server.hostKey)
	if err := os.WriteFile(knownHosts, []byte(line+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	m, err := New(store.DB(), Options{
		Directory: t.TempDir(),
		Clock:     steppingClock(),
		SFTP: &SFTPTarget{
			Host:           host,
			Port:           port,
			User:           "backup",
			KeyFile:        writeClientKey(t),
			KnownHostsFile: knownHosts,
			RemoteDir:      remoteDir,
			Timeout:        5 * time.Second,
		},
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	res, err := m.Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if res.RemotePath != filepath.Join(remoteDir, filepath.Base(res.Path)) {
		t.Errorf("unexpected remote path %s", res.RemotePath)
	}

	sum, err := checksum(res.RemotePath)
	if err != nil {
		t.Fatalf("uploaded file missing: %v", err)
	}
	if sum != res.Checksum {
		t.Error("uploaded file differs from the local snapshot")
	}
	if _, err := os.Stat(res.RemotePath + ".part"); !os.IsNotExist(err) {
		t.Error("partial upload file should be renamed away")
	}
}

func TestUploadRejectsUnknownHostKey(t *testing.T) {
	server := newTestSFTPServer(t)
	host, portStr, _ := net.SplitHostPort(server.addr)
	port, _ := strconv.Atoi(portStr)

	// known_hosts lists a different key for the server address.
	other, _, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	otherPub, err := ssh.NewPublicKey(other)
	if err != nil {
		t.Fatal(err)
	}
	knownHosts := filepath.Join(t.TempDir(), "known_hosts")
	line := knownhosts.Line([]string{knownhosts.Normalize(server.addr)}, otherPub)
	if err := os.WriteFile(knownHosts, []byte(line+"\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	local := filepath.Join(t.TempDir(), "rentroll-20240601T000000Z.db")
	if err := os.WriteFile(local, []byte("data"), 0o600); err != nil {
		t.Fatal(err)
	}

	target := SFTPTarget{
		Host:           host,
		Port:           port,
		User:           "backup",
		KeyFile:        writeClientKey(t),
		KnownHostsFile: knownHosts,
		RemoteDir:      t.TempDir(),
		Timeout:        5 * time.Second,
	}
	if _, err := target.Upload(context.Background(), local); err == nil {
		t.Fatal("expected host key mismatch error")
	}
}

// writeClientKey writes an unencrypted ed25519 private key in OpenSSH format.
func writeClientKey(t *testing.T) string {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, "rentroll-test")
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}
	p := filepath.Join(t.TempDir(), "id_ed25519")
	if err := os.WriteFile(p, pem.EncodeToMemory(block), 0o600); err != nil {
		t.Fatalf("failed to write key: %v", err)
	}
	return p
}

// testSFTPServer is a minimal SSH server that only offers the sftp subsystem.
type testSFTPServer struct {
	listener net.Listener
	config   *ssh.ServerConfig
	addr     string
	hostKey  ssh.PublicKey
}

func newTestSFTPServer(t *testing.T) *testSFTPServer {
	t.Helper()

	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("failed to generate host key: %v", err)
	}
	signer, err := ssh.NewSignerFromKey(priv)
	if err != nil {
		t.Fatalf("failed to create signer: %v", err)
	}

	config := &ssh.ServerConfig{
		PublicKeyCallback: func(c ssh.ConnMetadata, _ ssh.PublicKey) (*ssh.Permissions, error) {
			if c.User() == "backup" {
				return nil, nil
			}
			return nil, fmt.Errorf("unknown user %s", c.User())
		},
	}
	config.AddHostKey(signer)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}

	s := &testSFTPServer{
		listener: listener,
		config:   config,
		addr:     listener.Addr().String(),
		hostKey:  signer.PublicKey(),
	}
	go s.serve()
	t.Cleanup(func() { _ = listener.Close() })
	return s
}

func (s *testSFTPServer) serve() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			return
		}
		go s.handleConnection(conn)
	}
}

func (s *testSFTPServer) handleConnection(netConn net.Conn) {
	defer netConn.Close()

	sshConn, chans, reqs, err := ssh.NewServerConn(netConn, s.config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for newChannel := range chans {
		if newChannel.ChannelType() != "session" {
			_ = newChannel.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := newChannel.Accept()
		if err != nil {
			continue
		}
		go s.handleChannel(channel, requests)
	}
}

func (s *testSFTPServer) handleChannel(channel ssh.Channel, requests <-chan *ssh.Request) {
	defer channel.Close()

	for req := range requests {
		if req.Type == "subsystem" && len(req.Payload) > 4 && string(req.Payload[4:]) == "sftp" {
			_ = req.Reply(true, nil)
			go ssh.DiscardRequests(requests)

			server, err := sftp.NewServer(channel)
			if err != nil {
				return
			}
			_ = server.Serve()
			_ = server.Close()
			return
		}
		if req.WantReply {
			_ = req.Reply(false, nil)
		}
	}
}

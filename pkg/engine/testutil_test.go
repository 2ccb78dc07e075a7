package engine

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	crand "crypto/rand"
	"crypto/tls"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	ftpserver "github.com/fclairamb/ftpserverlib"
	"github.com/pkg/sftp"
	"github.com/spf13/afero"
	"golang.org/x/crypto/ssh"
)

// drive runs m until nothing is pending and returns the drained results.
func drive(t *testing.T, m *Multi) []Result {
	t.Helper()
	deadline := time.Now().Add(10 * time.Second)
	for {
		code, pending := m.Advance()
		for code == CodeCallAgain {
			code, pending = m.Advance()
		}
		if code != CodeOK {
			t.Fatalf("Advance() = %v", code)
		}
		if pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("transfers still pending after deadline: %d", pending)
		}
		if err := m.WaitReady(100 * time.Millisecond); err != nil {
			t.Fatalf("WaitReady: %v", err)
		}
	}
	return m.DrainResults()
}

func newTestMulti(t *testing.T, opts *MultiOpts) *Multi {
	t.Helper()
	if opts == nil {
		opts = &MultiOpts{}
	}
	if opts.Fs == nil {
		opts.Fs = afero.NewMemMapFs()
	}
	if opts.NewBackOff == nil {
		opts.NewBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	}
	m, err := NewMulti(opts)
	if err != nil {
		t.Fatalf("NewMulti: %v", err)
	}
	t.Cleanup(func() { m.Close() })
	return m
}

// ---- FTP fixture ----

type testFTPDriver struct {
	fs       afero.Fs
	listener net.Listener
}

func (d *testFTPDriver) GetSettings() (*ftpserver.Settings, error) {
	return &ftpserver.Settings{Listener: d.listener, IdleTimeout: 30}, nil
}

func (d *testFTPDriver) ClientConnected(_ ftpserver.ClientContext) (string, error) {
	return "test server", nil
}

func (d *testFTPDriver) ClientDisconnected(_ ftpserver.ClientContext) {}

func (d *testFTPDriver) AuthUser(_ ftpserver.ClientContext, user, pass string) (ftpserver.ClientDriver, error) {
	if (user == "anonymous" && pass == "anonymous") || (user == "testuser" && pass == "testpass") {
		return afero.NewBasePathFs(d.fs, "/"), nil
	}
	return nil, fmt.Errorf("invalid credentials")
}

func (d *testFTPDriver) GetTLSConfig() (*tls.Config, error) {
	return nil, nil
}

// startFTPServer serves files from an in-memory filesystem and returns
// the server address.
func startFTPServer(t *testing.T, files map[string][]byte) string {
	t.Helper()
	memFs := afero.NewMemMapFs()
	for name, content := range files {
		if err := afero.WriteFile(memFs, name, content, 0644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}
	}
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	server := ftpserver.NewFtpServer(&testFTPDriver{fs: memFs, listener: listener})
	go server.ListenAndServe()
	time.Sleep(100 * time.Millisecond)
	t.Cleanup(func() { server.Stop() })
	return listener.Addr().String()
}

// ---- SFTP fixture ----

type sftpServer struct {
	addr    string
	hostKey ssh.PublicKey
	root    string
}

func (s *sftpServer) url(user, pass, rel string) string {
	return fmt.Sprintf("sftp://%s:%s@%s%s", user, pass, s.addr, filepath.ToSlash(filepath.Join(s.root, rel)))
}

func startSFTPServer(t *testing.T, user, pass string, files map[string][]byte) *sftpServer {
	t.Helper()
	hostPriv, err := ecdsa.GenerateKey(elliptic.P256(), crand.Reader)
	if err != nil {
		t.Fatalf("generate host key: %v", err)
	}
	hostSigner, err := ssh.NewSignerFromKey(hostPriv)
	if err != nil {
		t.Fatalf("host signer: %v", err)
	}
	config := &ssh.ServerConfig{
		PasswordCallback: func(c ssh.ConnMetadata, p []byte) (*ssh.Permissions, error) {
			if c.User() == user && string(p) == pass {
				return nil, nil
			}
			return nil, fmt.Errorf("invalid credentials")
		},
	}
	config.AddHostKey(hostSigner)

	root := t.TempDir()
	for rel, content := range files {
		p := filepath.Join(root, rel)
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, content, 0644); err != nil {
			t.Fatal(err)
		}
	}

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go serveSSH(conn, config)
		}
	}()
	return &sftpServer{addr: listener.Addr().String(), hostKey: hostSigner.PublicKey(), root: root}
}

func serveSSH(conn net.Conn, config *ssh.ServerConfig) {
	defer conn.Close()
	sshConn, chans, reqs, err := ssh.NewServerConn(conn, config)
	if err != nil {
		return
	}
	defer sshConn.Close()
	go ssh.DiscardRequests(reqs)

	for nc := range chans {
		if nc.ChannelType() != "session" {
			nc.Reject(ssh.UnknownChannelType, "unknown channel type")
			continue
		}
		channel, requests, err := nc.Accept()
		if err != nil {
			continue
		}
		go func() {
			for req := range requests {
				if req.Type == "subsystem" && string(req.Payload[4:]) == "sftp" {
					req.Reply(true, nil)
					server, err := sftp.NewServer(channel)
					if err != nil {
						channel.Close()
						return
					}
					server.Serve()
					server.Close()
					return
				}
				if req.WantReply {
					req.Reply(false, nil)
				}
			}
		}()
	}
}

type fakeAddr struct{ addr string }

func (a fakeAddr) Network() string { return "tcp" }
func (a fakeAddr) String() string  { return a.addr }

package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

type sftpOpener struct {
	dial           dialFunc
	creds          CredentialFunc
	knownHostsPath string
	keyPath        string
}

func (o *sftpOpener) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	if u.Path == "" || u.Path == "/" {
		return nil, 0, NewPermanentError("sftp", "path",
			fmt.Errorf("empty or root path in SFTP URL: file path is required"))
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "22")
	}

	var user, password string
	if u.User != nil {
		user = u.User.Username()
		password, _ = u.User.Password()
	}
	if password == "" && o.creds != nil {
		if cu, cp, ok := o.creds("sftp", u.Hostname()); ok {
			if user == "" {
				user = cu
			}
			password = cp
		}
	}
	auth, err := buildAuthMethods(password, o.keyPath)
	if err != nil {
		return nil, 0, NewPermanentError("sftp", "auth", err)
	}

	config := &ssh.ClientConfig{
		User:            user,
		Auth:            auth,
		HostKeyCallback: newTOFUHostKeyCallback(o.knownHostsPath),
		Timeout:         30 * time.Second,
	}

	dial := o.dial
	if dial == nil {
		dial = (&net.Dialer{Timeout: config.Timeout}).Dial
	}
	raw, err := dial("tcp", host)
	if err != nil {
		return nil, 0, classifySFTPError("connect", err)
	}
	// ssh has no context support; closing the socket aborts the handshake.
	stop := context.AfterFunc(ctx, func() { raw.Close() })
	c, chans, reqs, err := ssh.NewClientConn(raw, host, config)
	if err != nil {
		stop()
		raw.Close()
		return nil, 0, classifySFTPError("handshake", err)
	}
	sshConn := ssh.NewClient(c, chans, reqs)

	client, err := sftp.NewClient(sshConn)
	if err != nil {
		stop()
		sshConn.Close()
		return nil, 0, classifySFTPError("subsystem", err)
	}
	f, err := client.Open(u.Path)
	if err != nil {
		stop()
		client.Close()
		sshConn.Close()
		return nil, 0, classifySFTPError("open", err)
	}
	size := int64(-1)
	if info, err := f.Stat(); err == nil {
		size = info.Size()
	}
	return &sftpBody{File: f, client: client, conn: sshConn, stop: stop}, size, nil
}

type sftpBody struct {
	*sftp.File
	client *sftp.Client
	conn   *ssh.Client
	stop   func() bool
}

func (b *sftpBody) Close() error {
	b.stop()
	err := b.File.Close()
	b.client.Close()
	b.conn.Close()
	return err
}

// buildAuthMethods prefers password auth, then the explicit key, then the
// default keys under ~/.ssh.
func buildAuthMethods(password, keyPath string) ([]ssh.AuthMethod, error) {
	if password != "" {
		return []ssh.AuthMethod{ssh.Password(password)}, nil
	}
	paths := resolveSSHKeyPaths(keyPath)
	for _, kp := range paths {
		pemBytes, err := os.ReadFile(kp)
		if err != nil {
			continue
		}
		signer, err := ssh.ParsePrivateKey(pemBytes)
		if err != nil {
			var ppErr *ssh.PassphraseMissingError
			if errors.As(err, &ppErr) {
				return nil, fmt.Errorf("SSH key %q is passphrase-protected; passphrase-protected keys are not supported", kp)
			}
			continue
		}
		return []ssh.AuthMethod{ssh.PublicKeys(signer)}, nil
	}
	return nil, fmt.Errorf("no authentication method available, provide a password or an SSH key at %s",
		strings.Join(paths, ", "))
}

func resolveSSHKeyPaths(explicit string) []string {
	if explicit != "" {
		return []string{explicit}
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return nil
	}
	return []string{
		filepath.Join(home, ".ssh", "id_ed25519"),
		filepath.Join(home, ".ssh", "id_rsa"),
	}
}

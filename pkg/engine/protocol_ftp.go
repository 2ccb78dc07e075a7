package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/url"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
)

// CredentialFunc looks up stored credentials for a scheme and host when the
// URL carries none.
type CredentialFunc func(scheme, host string) (user, password string, ok bool)

type ftpOpener struct {
	dial  dialFunc
	creds CredentialFunc
}

func (o *ftpOpener) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	if u.Path == "" || u.Path == "/" {
		return nil, 0, NewPermanentError("ftp", "path",
			fmt.Errorf("empty or root path in FTP URL: file path is required"))
	}
	host := u.Host
	if u.Port() == "" {
		host = net.JoinHostPort(u.Hostname(), "21")
	}

	user, password := "anonymous", "anonymous"
	if u.User != nil {
		user = u.User.Username()
		if p, ok := u.User.Password(); ok {
			password = p
		}
	} else if o.creds != nil {
		if cu, cp, ok := o.creds("ftp", u.Hostname()); ok {
			user, password = cu, cp
		}
	}

	dialOpts := []ftp.DialOption{
		ftp.DialWithTimeout(30 * time.Second),
		ftp.DialWithContext(ctx),
	}
	if o.dial != nil {
		dialOpts = append(dialOpts, ftp.DialWithDialFunc(o.dial))
	}
	if strings.EqualFold(u.Scheme, "ftps") {
		dialOpts = append(dialOpts, ftp.DialWithExplicitTLS(&tls.Config{
			ServerName: u.Hostname(),
			MinVersion: tls.VersionTLS12,
		}))
	}

	conn, err := ftp.Dial(host, dialOpts...)
	if err != nil {
		return nil, 0, classifyFTPError("connect", err)
	}
	if err := conn.Login(user, password); err != nil {
		conn.Quit()
		return nil, 0, classifyFTPError("login", err)
	}
	if err := conn.Type(ftp.TransferTypeBinary); err != nil {
		conn.Quit()
		return nil, 0, NewPermanentError("ftp", "type", err)
	}

	size, err := conn.FileSize(u.Path)
	if err != nil {
		size = -1
	}
	resp, err := conn.Retr(u.Path)
	if err != nil {
		conn.Quit()
		return nil, 0, classifyFTPError("retr", err)
	}
	return &ftpBody{Response: resp, conn: conn}, size, nil
}

// ftpBody keeps the control connection alive until the data stream is done.
type ftpBody struct {
	*ftp.Response
	conn *ftp.ServerConn
}

func (b *ftpBody) Close() error {
	err := b.Response.Close()
	b.conn.Quit()
	return err
}

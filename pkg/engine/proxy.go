package engine

import (
	"errors"
	"net"
	"net/http"
	"net/url"

	"golang.org/x/net/proxy"
)

var (
	ErrUnsupportedProxy = errors.New("unsupported proxy scheme")
	ErrInvalidProxyURL  = errors.New("invalid proxy URL")
)

var proxySchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"socks5": true,
}

func parseProxyURL(proxyURL string) (*url.URL, error) {
	u, err := url.Parse(proxyURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, ErrInvalidProxyURL
	}
	if !proxySchemes[u.Scheme] {
		return nil, ErrUnsupportedProxy
	}
	return u, nil
}

// NewHTTPClient creates an HTTP client that routes through proxyURL.
// An empty proxyURL yields a client honouring the *_PROXY environment.
func NewHTTPClient(proxyURL string) (*http.Client, error) {
	if proxyURL == "" {
		return &http.Client{Transport: &http.Transport{Proxy: http.ProxyFromEnvironment}}, nil
	}
	u, err := parseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	transport := &http.Transport{}
	if u.Scheme == "socks5" {
		d, err := socksDialer(u)
		if err != nil {
			return nil, err
		}
		transport.Dial = d.Dial
	} else {
		transport.Proxy = http.ProxyURL(u)
	}
	return &http.Client{Transport: transport}, nil
}

// dialFunc opens the control connection for ftp and sftp.
type dialFunc func(network, addr string) (net.Conn, error)

// proxyDialer returns the dialer used by the non-HTTP openers. Only SOCKS5
// proxies can carry FTP and SSH; an HTTP proxy leaves them direct.
func proxyDialer(proxyURL string) (dialFunc, error) {
	if proxyURL == "" {
		return proxy.Direct.Dial, nil
	}
	u, err := parseProxyURL(proxyURL)
	if err != nil {
		return nil, err
	}
	if u.Scheme != "socks5" {
		return proxy.Direct.Dial, nil
	}
	d, err := socksDialer(u)
	if err != nil {
		return nil, err
	}
	return d.Dial, nil
}

func socksDialer(u *url.URL) (proxy.Dialer, error) {
	var auth *proxy.Auth
	if u.User != nil {
		pass, _ := u.User.Password()
		auth = &proxy.Auth{User: u.User.Username(), Password: pass}
	}
	return proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
}

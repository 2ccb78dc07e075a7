package engine

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"sort"
	"strings"
)

// Opener starts the payload stream for one URL. It returns the stream and
// its size in bytes, or -1 when the size is unknown.
type Opener interface {
	Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error)

func (f OpenerFunc) Open(ctx context.Context, u *url.URL) (io.ReadCloser, int64, error) {
	return f(ctx, u)
}

// SchemeRouter maps URL schemes to Openers.
// The zero value is not usable; use NewSchemeRouter to create one.
type SchemeRouter struct {
	routes map[string]Opener
}

// NewSchemeRouter creates a router with the built-in http, https, ftp, ftps
// and sftp openers configured from opts.
func NewSchemeRouter(opts *MultiOpts) (*SchemeRouter, error) {
	if opts == nil {
		opts = &MultiOpts{}
	}
	client := opts.HTTPClient
	if client == nil {
		var err error
		client, err = NewHTTPClient(opts.Proxy)
		if err != nil {
			return nil, err
		}
	}
	dial, err := proxyDialer(opts.Proxy)
	if err != nil {
		return nil, err
	}

	r := &SchemeRouter{routes: make(map[string]Opener)}
	h := &httpOpener{client: client}
	r.routes["http"] = h
	r.routes["https"] = h

	f := &ftpOpener{dial: dial, creds: opts.Credentials}
	r.routes["ftp"] = f
	r.routes["ftps"] = f

	r.routes["sftp"] = &sftpOpener{
		dial:           dial,
		creds:          opts.Credentials,
		knownHostsPath: opts.KnownHostsPath,
		keyPath:        opts.SSHKeyPath,
	}
	return r, nil
}

// Register adds or replaces the opener for scheme.
func (r *SchemeRouter) Register(scheme string, o Opener) {
	r.routes[strings.ToLower(scheme)] = o
}

// Resolve parses rawURL and returns the opener registered for its scheme.
func (r *SchemeRouter) Resolve(rawURL string) (Opener, *url.URL, error) {
	if rawURL == "" {
		return nil, nil, fmt.Errorf("%w: empty URL", ErrUnsupportedScheme)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid URL %q: %w", rawURL, err)
	}
	scheme := strings.ToLower(u.Scheme)
	if scheme == "" {
		return nil, nil, fmt.Errorf("%w: no scheme in URL %q", ErrUnsupportedScheme, rawURL)
	}
	o, ok := r.routes[scheme]
	if !ok {
		return nil, nil, fmt.Errorf("%w %q, supported: %s",
			ErrUnsupportedScheme, scheme, strings.Join(r.Schemes(), ", "))
	}
	return o, u, nil
}

// Schemes returns the sorted list of registered schemes.
func (r *SchemeRouter) Schemes() []string {
	schemes := make([]string, 0, len(r.routes))
	for s := range r.routes {
		schemes = append(schemes, s)
	}
	sort.Strings(schemes)
	return schemes
}

// StripURLCredentials removes userinfo from rawURL so it can be logged or
// persisted. Unparseable input is returned unchanged.
func StripURLCredentials(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.User = nil
	return u.String()
}

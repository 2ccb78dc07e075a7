package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/spf13/afero"
)

// DefaultMaxTries bounds the attempts made for a transfer that keeps
// failing with transient errors.
const DefaultMaxTries = 3

// MultiOpts configures a Multi. The zero value is usable.
type MultiOpts struct {
	// Fs receives the payloads. Defaults to the OS filesystem.
	Fs afero.Fs
	// HTTPClient overrides the client built from Proxy.
	HTTPClient *http.Client
	// Proxy is an http, https or socks5 proxy URL.
	Proxy string
	// Credentials is consulted for ftp and sftp URLs without userinfo.
	Credentials CredentialFunc
	// KnownHostsPath is the TOFU known_hosts file used for sftp.
	KnownHostsPath string
	// SSHKeyPath is an explicit private key for sftp.
	SSHKeyPath string
	// MaxTries bounds attempts per transfer. Defaults to DefaultMaxTries.
	MaxTries uint
	// NewBackOff builds the retry schedule of one transfer. Defaults to an
	// exponential backoff.
	NewBackOff func() backoff.BackOff
	// Router replaces the built-in scheme router.
	Router *SchemeRouter
}

// Multi is the concrete Engine: every registered transfer runs on its own
// goroutine and Advance harvests completions without blocking.
//
// Like the Engine contract, Multi is not goroutine-safe. Overlapping calls
// are detected: Advance answers CodeRecursiveCall and Add/Remove return
// ErrConcurrentUse. WaitReady and Close may be called from any goroutine.
type Multi struct {
	fs       afero.Fs
	router   *SchemeRouter
	maxTries uint
	newBO    func() backoff.BackOff

	busy atomic.Bool

	// Owned by the caller of Advance/Add/Remove/DrainResults.
	queued  []*Transfer
	running map[*Transfer]context.CancelFunc
	results []Result

	inMu  sync.Mutex
	inbox []Result

	wake      chan struct{}
	closed    chan struct{}
	closeOnce sync.Once
	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
}

var _ Engine = (*Multi)(nil)

// NewMulti creates an engine from opts. A nil opts uses the defaults.
func NewMulti(opts *MultiOpts) (*Multi, error) {
	if opts == nil {
		opts = &MultiOpts{}
	}
	router := opts.Router
	if router == nil {
		var err error
		router, err = NewSchemeRouter(opts)
		if err != nil {
			return nil, err
		}
	}
	fs := opts.Fs
	if fs == nil {
		fs = afero.NewOsFs()
	}
	maxTries := opts.MaxTries
	if maxTries == 0 {
		maxTries = DefaultMaxTries
	}
	newBO := opts.NewBackOff
	if newBO == nil {
		newBO = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxInterval = 30 * time.Second
			return b
		}
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Multi{
		fs:       fs,
		router:   router,
		maxTries: maxTries,
		newBO:    newBO,
		running:  make(map[*Transfer]context.CancelFunc),
		wake:     make(chan struct{}, 1),
		closed:   make(chan struct{}),
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

func (m *Multi) enter() bool { return m.busy.CompareAndSwap(false, true) }
func (m *Multi) leave()      { m.busy.Store(false) }

func (m *Multi) isClosed() bool {
	select {
	case <-m.closed:
		return true
	default:
		return false
	}
}

// signal wakes a pending WaitReady. It never blocks.
func (m *Multi) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// Add registers t. The transfer starts on the next Advance.
func (m *Multi) Add(t *Transfer) error {
	if t == nil {
		return errors.New("engine: nil transfer")
	}
	if !m.enter() {
		return ErrConcurrentUse
	}
	defer m.leave()
	if m.isClosed() {
		return ErrEngineClosed
	}
	if _, _, err := m.router.Resolve(t.URL); err != nil {
		return err
	}
	if _, ok := m.running[t]; ok {
		return fmt.Errorf("engine: transfer %s already registered", StripURLCredentials(t.URL))
	}
	for _, q := range m.queued {
		if q == t {
			return fmt.Errorf("engine: transfer %s already registered", StripURLCredentials(t.URL))
		}
	}
	m.queued = append(m.queued, t)
	m.signal()
	return nil
}

// Remove unregisters t. A queued transfer completes immediately with
// ErrRemoved; a running one is cancelled and completes with its error.
func (m *Multi) Remove(t *Transfer) error {
	if !m.enter() {
		return ErrConcurrentUse
	}
	defer m.leave()
	for i, q := range m.queued {
		if q == t {
			m.queued = append(m.queued[:i], m.queued[i+1:]...)
			m.results = append(m.results, Result{Transfer: t, Err: ErrRemoved})
			return nil
		}
	}
	if cancel, ok := m.running[t]; ok {
		cancel()
	}
	return nil
}

// Advance starts queued transfers and harvests at most one completion. It
// returns CodeCallAgain when more completions are already waiting.
func (m *Multi) Advance() (Code, int) {
	if !m.enter() {
		return CodeRecursiveCall, 0
	}
	defer m.leave()
	if m.isClosed() {
		return CodeBadHandle, 0
	}

	for _, t := range m.queued {
		ctx, cancel := context.WithCancel(m.ctx)
		m.running[t] = cancel
		m.wg.Add(1)
		go m.run(ctx, t)
	}
	m.queued = m.queued[:0]

	m.inMu.Lock()
	var (
		got  Result
		ok   bool
		more bool
	)
	if len(m.inbox) > 0 {
		got, ok = m.inbox[0], true
		m.inbox[0] = Result{}
		m.inbox = m.inbox[1:]
		more = len(m.inbox) > 0
	}
	m.inMu.Unlock()

	if ok {
		if cancel, found := m.running[got.Transfer]; found {
			cancel()
			delete(m.running, got.Transfer)
		}
		m.results = append(m.results, got)
	}
	if more {
		return CodeCallAgain, len(m.running)
	}
	return CodeOK, len(m.running)
}

// Registered returns the number of transfers queued or in flight.
func (m *Multi) Registered() int {
	return len(m.queued) + len(m.running)
}

// Timeout is zero when work is already waiting for Advance and -1 otherwise:
// transfer goroutines signal WaitReady themselves.
func (m *Multi) Timeout() time.Duration {
	if len(m.queued) > 0 {
		return 0
	}
	m.inMu.Lock()
	n := len(m.inbox)
	m.inMu.Unlock()
	if n > 0 {
		return 0
	}
	return -1
}

// WaitReady blocks until a transfer finishes, a transfer is added, the
// engine is closed or timeout elapses.
func (m *Multi) WaitReady(timeout time.Duration) error {
	if timeout <= 0 {
		select {
		case <-m.closed:
			return ErrEngineClosed
		case <-m.wake:
		default:
		}
		return nil
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-m.closed:
		return ErrEngineClosed
	case <-m.wake:
	case <-timer.C:
	}
	return nil
}

// DrainResults returns the completions harvested so far.
func (m *Multi) DrainResults() []Result {
	if !m.enter() {
		return nil
	}
	defer m.leave()
	out := m.results
	m.results = nil
	return out
}

// Close cancels all in-flight transfers and waits for their goroutines.
func (m *Multi) Close() error {
	m.closeOnce.Do(func() {
		m.cancel()
		close(m.closed)
	})
	m.wg.Wait()
	return nil
}

func (m *Multi) run(ctx context.Context, t *Transfer) {
	defer m.wg.Done()
	res := Result{Transfer: t}
	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("engine: panic in transfer: %v\n%s", r, debug.Stack())
		}
		m.inMu.Lock()
		m.inbox = append(m.inbox, res)
		m.inMu.Unlock()
		m.signal()
	}()
	res.Path, res.Bytes, res.Err = m.fetch(ctx, t)
}

type fetched struct {
	path  string
	bytes int64
}

func (m *Multi) fetch(ctx context.Context, t *Transfer) (string, int64, error) {
	opener, u, err := m.router.Resolve(t.URL)
	if err != nil {
		return "", 0, err
	}
	name := t.FileName
	if name == "" {
		name = path.Base(u.Path)
	}
	if name == "" || name == "." || name == "/" {
		return "", 0, fmt.Errorf("%w from %q", ErrNoFileName, StripURLCredentials(t.URL))
	}
	dest := filepath.Join(t.Destination, name)

	op := func() (fetched, error) {
		n, err := m.copyOnce(ctx, opener, u, t, dest)
		if err != nil && !IsTransient(err) {
			return fetched{}, backoff.Permanent(err)
		}
		return fetched{path: dest, bytes: n}, err
	}
	f, err := backoff.Retry(ctx, op,
		backoff.WithBackOff(m.newBO()),
		backoff.WithMaxTries(m.maxTries),
	)
	if err != nil {
		return dest, 0, err
	}
	return f.path, f.bytes, nil
}

func (m *Multi) copyOnce(ctx context.Context, o Opener, u *url.URL, t *Transfer, dest string) (int64, error) {
	body, size, err := o.Open(ctx, u)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	if t.OnSize != nil {
		t.OnSize(size)
	}

	if dir := filepath.Dir(dest); dir != "" {
		if err := m.fs.MkdirAll(dir, 0755); err != nil {
			return 0, NewPermanentError(u.Scheme, "mkdir", err)
		}
	}
	f, err := m.fs.OpenFile(dest, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return 0, NewPermanentError(u.Scheme, "create", err)
	}
	defer f.Close()

	var w io.Writer = f
	if t.OnProgress != nil {
		w = io.MultiWriter(f, progressWriter(t.OnProgress))
	}
	n, err := io.Copy(w, body)
	if err != nil {
		return n, classifyNetError(u.Scheme, "copy", err)
	}
	return n, nil
}

// progressWriter reports every write to the transfer's progress callback.
type progressWriter func(n int)

func (p progressWriter) Write(b []byte) (int, error) {
	p(len(b))
	return len(b), nil
}

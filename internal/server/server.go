// Package server implements the warpmulti daemon: a JSON-RPC 2.0 service
// that accepts transfer pools, runs each one asynchronously and pushes a
// pool.completed notification to every connected client when it finishes.
//
// Pools are created, submitted and completed on the loop goroutine of the
// daemon's later.Loop, so the pool table needs no locking of its own.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/creachadair/jrpc2/channel"
	"github.com/creachadair/jrpc2/handler"
	"github.com/creachadair/jrpc2/jhttp"
	"github.com/dop251/goja"
	"github.com/warpdl/warpmulti/common"
	"github.com/warpdl/warpmulti/internal/guard"
	"github.com/warpdl/warpmulti/internal/history"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/async"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// DefaultRetain is how many finished pools stay queryable.
const DefaultRetain = 256

// Options configures a Server.
type Options struct {
	// Loop is the deferred-execution facility. Required.
	Loop *later.Loop
	// Runner drives pools. Defaults to a Runner over plain goroutines and Loop.
	Runner *async.Runner
	// NewEngine builds the engine of each submitted pool. Defaults to
	// engine.NewMulti(nil).
	NewEngine func() (engine.Engine, error)
	Logger    logger.Logger
	// History, when set, records every finished pool.
	History *history.Store
	// Hooks run on the loop goroutine after each completion.
	Hooks []func(pool.Completion)

	// Listen is the TCP address of the WebSocket and HTTP endpoints.
	Listen string
	// SocketPath overrides the unix socket or named pipe path.
	SocketPath string
	// Secret enables Bearer authentication on the TCP endpoints.
	Secret string
	// Retain bounds the finished pools kept for status queries.
	Retain int

	Version   string
	Commit    string
	BuildType string
}

type entry struct {
	pool      *pool.Pool
	handle    *async.Handle
	urls      []string
	dir       string
	submitted time.Time
	result    *common.CompletedNotification
}

// Server is the notification daemon.
type Server struct {
	opts     Options
	log      logger.Logger
	loop     *later.Loop
	runner   *async.Runner
	notifier *RPCNotifier
	methods  handler.Map

	// Touched only on the loop goroutine.
	pools    map[string]*entry
	order    []string
	finished int

	mu      sync.Mutex
	httpSrv *http.Server
	local   net.Listener
	bridge  *jhttp.Bridge
}

// New creates a Server. It does not listen until Serve.
func New(opts Options) (*Server, error) {
	if opts.Loop == nil {
		return nil, errors.New("server: a loop is required")
	}
	if opts.Retain <= 0 {
		opts.Retain = DefaultRetain
	}
	if opts.Listen == "" {
		opts.Listen = common.DefaultListen
	}
	l := logger.OrNop(opts.Logger)
	if opts.NewEngine == nil {
		opts.NewEngine = func() (engine.Engine, error) { return engine.NewMulti(nil) }
	}
	runner := opts.Runner
	if runner == nil {
		runner = async.New(async.Static(async.Capabilities{
			Threads:  threads.New(threads.Options{Logger: l}),
			Deferred: opts.Loop,
		}), async.WithLogger(l))
	}
	s := &Server{
		opts:     opts,
		log:      l,
		loop:     opts.Loop,
		runner:   runner,
		notifier: NewRPCNotifier(l),
		pools:    make(map[string]*entry),
	}
	s.methods = handler.Map{
		common.MethodGetVersion: handler.New(s.systemGetVersion),
		common.MethodSubmit:     handler.New(s.poolSubmit),
		common.MethodStatus:     handler.New(s.poolStatus),
		common.MethodList:       handler.New(s.poolList),
	}
	return s, nil
}

// Notifier exposes the broadcast set.
func (s *Server) Notifier() *RPCNotifier { return s.notifier }

// onLoop runs fn on the loop goroutine and waits for it.
func (s *Server) onLoop(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	err := s.loop.Do(func(*goja.Runtime) {
		defer close(done)
		fn()
	})
	if err != nil {
		return err
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Submit creates a pool for urls, registers every transfer and starts it.
func (s *Server) Submit(ctx context.Context, urls []string, dir string) (string, error) {
	if len(urls) == 0 {
		return "", errors.New("no urls given")
	}
	type submitted struct {
		id  string
		err error
	}
	// claimed decides between the loop job and a cancelled caller, so a
	// pool is only started when its id reaches the caller.
	var claimed atomic.Bool
	out := make(chan submitted, 1)
	err := s.loop.Do(func(*goja.Runtime) {
		if !claimed.CompareAndSwap(false, true) {
			return
		}
		id, err := s.submit(urls, dir)
		out <- submitted{id, err}
	})
	if err != nil {
		return "", err
	}
	select {
	case res := <-out:
		return res.id, res.err
	case <-ctx.Done():
		if claimed.CompareAndSwap(false, true) {
			return "", ctx.Err()
		}
	}
	res := <-out
	return res.id, res.err
}

// submit runs on the loop goroutine.
func (s *Server) submit(urls []string, dir string) (string, error) {
	eng, err := s.opts.NewEngine()
	if err != nil {
		return "", fmt.Errorf("create engine: %w", err)
	}
	p := pool.New(eng, guard.New())
	for _, u := range urls {
		if err := p.Add(&engine.Transfer{URL: u, Destination: dir}); err != nil {
			closeEngine(eng)
			return "", fmt.Errorf("add %s: %w", engine.StripURLCredentials(u), err)
		}
	}
	e := &entry{pool: p, urls: urls, dir: dir, submitted: time.Now()}
	p.OnComplete(func(c pool.Completion) { s.completed(e, c) })
	if s.opts.History != nil {
		p.OnComplete(s.opts.History.Hook(func(err error) {
			s.log.Error("history: %v", err)
		}))
	}
	for _, h := range s.opts.Hooks {
		p.OnComplete(h)
	}

	h, err := s.runner.RunAsync(p)
	if err != nil {
		closeEngine(eng)
		return "", err
	}
	e.handle = h
	id := p.ID.String()
	s.pools[id] = e
	s.order = append(s.order, id)
	s.log.Info("pool %s submitted with %d transfers", id, len(urls))
	return id, nil
}

// completed is the first completion hook of every pool.
func (s *Server) completed(e *entry, c pool.Completion) {
	e.result = completedNotification(c)
	if e.handle != nil {
		e.handle.Release()
	}
	closeEngine(e.pool.Engine())
	s.finished++
	s.evict()
	n := s.notifier.Broadcast(common.NotifyCompleted, e.result)
	s.log.Info("pool %s completion pushed to %d clients", c.PoolID, n)
}

// evict drops the oldest finished pools beyond Retain.
func (s *Server) evict() {
	for s.finished > s.opts.Retain {
		for i, id := range s.order {
			if s.pools[id].result != nil {
				delete(s.pools, id)
				s.order = append(s.order[:i], s.order[i+1:]...)
				s.finished--
				break
			}
		}
	}
}

func closeEngine(eng engine.Engine) {
	if c, ok := eng.(io.Closer); ok {
		_ = c.Close()
	}
}

func completedNotification(c pool.Completion) *common.CompletedNotification {
	n := &common.CompletedNotification{
		ID:         c.PoolID.String(),
		Transfers:  len(c.Results),
		Failed:     c.Failed(),
		Bytes:      c.Bytes(),
		Advances:   c.Outcome.Advances,
		Waits:      c.Outcome.Waits,
		DurationMs: c.Outcome.Finished.Sub(c.Outcome.Started).Milliseconds(),
		Cancelled:  c.Outcome.Cancelled,
	}
	if c.Outcome.Err != nil {
		n.Error = c.Outcome.Err.Error()
	}
	for _, r := range c.Results {
		tr := common.TransferResult{Path: r.Path, Bytes: r.Bytes}
		if r.Transfer != nil {
			tr.URL = engine.StripURLCredentials(r.Transfer.URL)
		}
		if r.Err != nil {
			tr.Error = r.Err.Error()
		}
		n.Results = append(n.Results, tr)
	}
	return n
}

func (e *entry) status(id string) *common.PoolStatus {
	urls := make([]string, len(e.urls))
	for i, u := range e.urls {
		urls[i] = engine.StripURLCredentials(u)
	}
	return &common.PoolStatus{
		ID:        id,
		State:     e.pool.State().String(),
		URLs:      urls,
		Dir:       e.dir,
		Submitted: e.submitted,
		Result:    e.result,
	}
}

// Status returns the pool with id, or nil if it is unknown.
func (s *Server) Status(ctx context.Context, id string) (*common.PoolStatus, error) {
	var st *common.PoolStatus
	err := s.onLoop(ctx, func() {
		if e, ok := s.pools[id]; ok {
			st = e.status(id)
		}
	})
	return st, err
}

// List returns every known pool in submission order.
func (s *Server) List(ctx context.Context) ([]*common.PoolStatus, error) {
	var out []*common.PoolStatus
	err := s.onLoop(ctx, func() {
		out = make([]*common.PoolStatus, 0, len(s.order))
		for _, id := range s.order {
			out = append(out, s.pools[id].status(id))
		}
	})
	return out, err
}

// serveChannel serves JSON-RPC with push support on ch until it closes.
func (s *Server) serveChannel(ch channel.Channel) {
	srv := jrpc2.NewServer(s.methods, &jrpc2.ServerOptions{AllowPush: true})
	srv.Start(ch)
	s.notifier.Register(srv)
	defer s.notifier.Unregister(srv)
	_ = srv.Wait()
}

// Handler returns the HTTP handler: WebSocket JSON-RPC at /jsonrpc/ws and
// plain HTTP JSON-RPC at /jsonrpc.
func (s *Server) Handler() http.Handler {
	s.mu.Lock()
	if s.bridge == nil {
		b := jhttp.NewBridge(s.methods, nil)
		s.bridge = &b
	}
	bridge := s.bridge
	s.mu.Unlock()

	mux := http.NewServeMux()
	mux.Handle("/jsonrpc", requireToken(s.opts.Secret, bridge))
	mux.Handle("/jsonrpc/ws", requireToken(s.opts.Secret, http.HandlerFunc(s.serveWS)))
	return mux
}

// ServeLocal accepts line-delimited JSON-RPC connections on l until it is
// closed.
func (s *Server) ServeLocal(l net.Listener) error {
	for {
		conn, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		go s.serveChannel(channel.Line(conn, conn))
	}
}

// Serve listens on the TCP address and the local socket and blocks until
// ctx is cancelled or a listener fails.
func (s *Server) Serve(ctx context.Context) error {
	local, err := s.localListener()
	if err != nil {
		return err
	}
	tcp, err := net.Listen("tcp", s.opts.Listen)
	if err != nil {
		local.Close()
		return fmt.Errorf("listen on %s: %w", s.opts.Listen, err)
	}
	hs := &http.Server{Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	s.mu.Lock()
	s.httpSrv = hs
	s.local = local
	s.mu.Unlock()
	s.log.Info("daemon listening on %s and %s", tcp.Addr(), local.Addr())

	errc := make(chan error, 2)
	go func() {
		if err := hs.Serve(tcp); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()
	go func() {
		if err := s.ServeLocal(local); err != nil {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
		err = nil
	case err = <-errc:
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Shutdown(shutdownCtx)
	return err
}

// Shutdown stops the listeners and the HTTP bridge. Pools already running
// keep running until the loop is closed.
func (s *Server) Shutdown(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.httpSrv != nil {
		_ = s.httpSrv.Shutdown(ctx)
		s.httpSrv = nil
	}
	if s.local != nil {
		_ = s.local.Close()
		s.local = nil
	}
	if s.bridge != nil {
		s.bridge.Close()
		s.bridge = nil
	}
}

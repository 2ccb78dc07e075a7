package server

import (
	"context"
	"sync"
	"time"

	"github.com/creachadair/jrpc2"
	"github.com/warpdl/warpmulti/pkg/logger"
)

// pushTimeout bounds a single push so a stalled client cannot hold up the
// loop goroutine.
const pushTimeout = 5 * time.Second

// RPCNotifier tracks every connected jrpc2 server and pushes completion
// notifications to all of them.
type RPCNotifier struct {
	mu      sync.RWMutex
	servers map[*jrpc2.Server]struct{}
	log     logger.Logger
}

// NewRPCNotifier creates a notifier. l may be nil.
func NewRPCNotifier(l logger.Logger) *RPCNotifier {
	return &RPCNotifier{
		servers: make(map[*jrpc2.Server]struct{}),
		log:     logger.OrNop(l),
	}
}

// Register adds srv to the broadcast set.
func (n *RPCNotifier) Register(srv *jrpc2.Server) {
	n.mu.Lock()
	n.servers[srv] = struct{}{}
	n.mu.Unlock()
}

// Unregister removes srv.
func (n *RPCNotifier) Unregister(srv *jrpc2.Server) {
	n.mu.Lock()
	delete(n.servers, srv)
	n.mu.Unlock()
}

// Broadcast pushes method to every registered server and drops the ones
// that fail. It returns the number of successful pushes.
func (n *RPCNotifier) Broadcast(method string, params any) int {
	n.mu.RLock()
	servers := make([]*jrpc2.Server, 0, len(n.servers))
	for srv := range n.servers {
		servers = append(servers, srv)
	}
	n.mu.RUnlock()

	sent := 0
	var failed []*jrpc2.Server
	for _, srv := range servers {
		ctx, cancel := context.WithTimeout(context.Background(), pushTimeout)
		err := srv.Notify(ctx, method, params)
		cancel()
		if err != nil {
			n.log.Warning("rpc push %s failed: %v", method, err)
			failed = append(failed, srv)
			continue
		}
		sent++
	}

	if len(failed) > 0 {
		n.mu.Lock()
		for _, srv := range failed {
			delete(n.servers, srv)
		}
		n.mu.Unlock()
	}
	return sent
}

// Count returns the number of registered servers.
func (n *RPCNotifier) Count() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.servers)
}

//go:build !windows

package server

import (
	"fmt"
	"net"
	"os"

	"github.com/warpdl/warpmulti/common"
)

// localListener opens the unix socket for line-delimited JSON-RPC. A stale
// socket file from a previous daemon is removed first.
func (s *Server) localListener() (net.Listener, error) {
	path := s.opts.SocketPath
	if path == "" {
		path = common.SocketPath()
	}
	_ = os.Remove(path)
	l, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	if err := os.Chmod(path, 0700); err != nil {
		s.log.Warning("cannot restrict socket permissions: %v", err)
	}
	return l, nil
}

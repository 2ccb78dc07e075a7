//go:build windows

package server

import (
	"fmt"
	"net"

	"github.com/Microsoft/go-winio"
	"github.com/warpdl/warpmulti/common"
)

// pipeSecurityDescriptor grants full control to SYSTEM, Administrators and
// the creator owner only.
const pipeSecurityDescriptor = "D:(A;;GA;;;SY)(A;;GA;;;BA)(A;;GA;;;CO)"

// localListener opens the named pipe for line-delimited JSON-RPC.
func (s *Server) localListener() (net.Listener, error) {
	path := s.opts.SocketPath
	if path == "" {
		path = common.PipePath()
	}
	l, err := winio.ListenPipe(path, &winio.PipeConfig{
		SecurityDescriptor: pipeSecurityDescriptor,
		MessageMode:        false,
	})
	if err != nil {
		return nil, fmt.Errorf("listen on %s: %w", path, err)
	}
	return l, nil
}

package server

import (
	"context"
	"net/http"

	cws "github.com/coder/websocket"
)

// maxMessageSize limits one inbound JSON-RPC message.
const maxMessageSize = 1 << 20

// wsChannel carries jrpc2 messages over one WebSocket connection, one
// message per text frame.
type wsChannel struct {
	conn *cws.Conn
	ctx  context.Context
}

func (c *wsChannel) Send(data []byte) error {
	return c.conn.Write(c.ctx, cws.MessageText, data)
}

func (c *wsChannel) Recv() ([]byte, error) {
	_, data, err := c.conn.Read(c.ctx)
	return data, err
}

func (c *wsChannel) Close() error {
	return c.conn.Close(cws.StatusNormalClosure, "")
}

// serveWS upgrades the request and serves JSON-RPC on it until the client
// goes away.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := cws.Accept(w, r, nil)
	if err != nil {
		s.log.Warning("websocket accept from %s: %v", r.RemoteAddr, err)
		return
	}
	conn.SetReadLimit(maxMessageSize)
	s.serveChannel(&wsChannel{conn: conn, ctx: r.Context()})
}

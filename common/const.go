package common

// TCPHost is the loopback host the daemon binds by default.
const TCPHost = "127.0.0.1"

// DefaultListen is the default WebSocket endpoint address.
const DefaultListen = TCPHost + ":3849"

// JSON-RPC method names served by the daemon.
const (
	MethodGetVersion = "system.getVersion"
	MethodSubmit     = "pool.submit"
	MethodStatus     = "pool.status"
	MethodList       = "pool.list"

	// NotifyCompleted is pushed to every client when a pool finishes.
	NotifyCompleted = "pool.completed"
)

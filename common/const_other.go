//go:build !windows

package common

import (
	"os"
	"path/filepath"
)

// SocketPath returns the unix socket the daemon listens on.
func SocketPath() string {
	if path := os.Getenv(SocketPathEnv); path != "" {
		return path
	}
	return filepath.Join(os.TempDir(), "warpmulti.sock")
}

//go:build windows

package common

import (
	"os"
	"strings"
)

// DefaultPipeName is the default name for the Windows named pipe.
const DefaultPipeName = "warpmulti"

// PipePath returns the named pipe the daemon listens on. WARPMULTI_PIPE_NAME
// may hold a bare name or a full \\.\pipe\ path.
func PipePath() string {
	if name := os.Getenv(PipeNameEnv); name != "" {
		if strings.HasPrefix(name, `\\.\pipe\`) {
			return name
		}
		return `\\.\pipe\` + name
	}
	return `\\.\pipe\` + DefaultPipeName
}

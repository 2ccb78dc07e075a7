//go:build !linux && !windows

package threads

func currentThreadID() int {
	return 0
}

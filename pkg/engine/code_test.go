package engine

import (
	"strings"
	"testing"
)

func TestCodeString(t *testing.T) {
	tests := []struct {
		code  Code
		want  string
		fatal bool
	}{
		{CodeOK, "no error", false},
		{CodeCallAgain, "please call advance again", false},
		{CodeBadHandle, "invalid multi handle", true},
		{CodeOutOfMemory, "out of memory", true},
		{CodeInternal, "internal error", true},
		{CodeRecursiveCall, "API function called from within callback or concurrently", true},
		{CodeWakeupFailure, "wakeup failure", true},
	}
	for _, tt := range tests {
		if got := tt.code.String(); got != tt.want {
			t.Errorf("Code(%d).String() = %q, want %q", int(tt.code), got, tt.want)
		}
		if got := tt.code.Fatal(); got != tt.fatal {
			t.Errorf("Code(%d).Fatal() = %v, want %v", int(tt.code), got, tt.fatal)
		}
	}
	if got := Code(99).String(); !strings.Contains(got, "99") {
		t.Errorf("unknown code string = %q", got)
	}
}

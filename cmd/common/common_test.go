package common

import (
	"errors"
	"flag"
	"io"
	"testing"

	"github.com/urfave/cli"
	"github.com/vbauerster/mpb/v8"
)

func newTestContext() *cli.Context {
	app := cli.NewApp()
	app.Name = "warpmulti"
	app.Version = "test"
	set := flag.NewFlagSet("test", flag.ContinueOnError)
	ctx := cli.NewContext(app, set, nil)
	ctx.Command = cli.Command{Name: "cmd"}
	return ctx
}

func TestTransferBar(t *testing.T) {
	p := mpb.New(mpb.WithOutput(io.Discard))
	ok := NewTransferBar(p, "a.bin")
	ok.SetTotal(10, false)
	ok.IncrBy(10)
	FinishBar(ok, nil)

	failed := NewTransferBar(p, "b.bin")
	FinishBar(failed, errors.New("boom"))

	// a bar stops reporting its aborted state once the container shuts it down
	if !failed.Aborted() {
		t.Fatal("expected aborted bar")
	}
	if !ok.Completed() {
		t.Fatal("expected completed bar")
	}
	p.Wait()
}

func TestPrintRuntimeErr(t *testing.T) {
	PrintRuntimeErr(nil, "cmd", "action", nil)
	PrintRuntimeErr(newTestContext(), "cmd", "action", errors.New("boom"))
}

func TestPrintErrWithHelp(t *testing.T) {
	ctx := newTestContext()
	code := -1
	orig := showAppHelpAndExit
	defer func() { showAppHelpAndExit = orig }()
	showAppHelpAndExit = func(_ *cli.Context, c int) { code = c }

	if err := PrintErrWithHelp(ctx, errors.New("bad")); err != nil {
		t.Fatalf("PrintErrWithHelp: %v", err)
	}
	if code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if err := PrintErrWithHelp(ctx, nil); err != nil {
		t.Fatalf("nil error: %v", err)
	}
}

func TestPrintErrWithCmdHelp(t *testing.T) {
	ctx := newTestContext()
	var shown string
	orig := showCommandHelp
	defer func() { showCommandHelp = orig }()
	showCommandHelp = func(_ *cli.Context, name string) error {
		shown = name
		return nil
	}
	if err := PrintErrWithCmdHelp(ctx, errors.New("bad")); err != nil {
		t.Fatalf("PrintErrWithCmdHelp: %v", err)
	}
	if shown != "cmd" {
		t.Fatalf("showed help for %q", shown)
	}
}

func TestHelpRequestedRoutesToHelp(t *testing.T) {
	ctx := newTestContext()
	code := -1
	orig := showAppHelpAndExit
	defer func() { showAppHelpAndExit = orig }()
	showAppHelpAndExit = func(_ *cli.Context, c int) { code = c }

	if err := PrintErrWithCmdHelp(ctx, errors.New("flag: help requested")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected app help with code 0, got %d", code)
	}
}

func TestUsageErrorCallback(t *testing.T) {
	ctx := newTestContext()
	origCmd, origApp := showCommandHelp, showAppHelpAndExit
	defer func() { showCommandHelp, showAppHelpAndExit = origCmd, origApp }()
	cmdHelp, appHelp := false, false
	showCommandHelp = func(*cli.Context, string) error { cmdHelp = true; return nil }
	showAppHelpAndExit = func(*cli.Context, int) { appHelp = true }

	_ = UsageErrorCallback(ctx, errors.New("bad flag"), false)
	if !cmdHelp || appHelp {
		t.Fatalf("command context: cmdHelp=%v appHelp=%v", cmdHelp, appHelp)
	}

	cmdHelp = false
	ctx.Command = cli.Command{}
	_ = UsageErrorCallback(ctx, errors.New("bad flag"), false)
	if cmdHelp || !appHelp {
		t.Fatalf("app context: cmdHelp=%v appHelp=%v", cmdHelp, appHelp)
	}
}

func TestGetVersion(t *testing.T) {
	VersionCmdStr = "warpmulti test"
	if err := GetVersion(newTestContext()); err != nil {
		t.Fatalf("GetVersion: %v", err)
	}
}

package cmd

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/internal/config"
	"github.com/warpdl/warpmulti/internal/creds"
	"github.com/warpdl/warpmulti/internal/history"
	"github.com/warpdl/warpmulti/internal/hook"
	"github.com/warpdl/warpmulti/internal/later"
	"github.com/warpdl/warpmulti/internal/threads"
	"github.com/warpdl/warpmulti/pkg/async"
	"github.com/warpdl/warpmulti/pkg/engine"
	"github.com/warpdl/warpmulti/pkg/logger"
	"github.com/warpdl/warpmulti/pkg/pool"
)

// loadConfig resolves the configuration for the directory named by the
// global --config-dir flag.
func loadConfig(ctx *cli.Context) (*config.Config, error) {
	return config.Load(ctx.GlobalString("config-dir"))
}

func newConsoleLogger() logger.Logger {
	return logger.NewStandardLogger(log.New(os.Stderr, "", log.LstdFlags))
}

// components are the collaborators shared by fetch and the daemon.
type components struct {
	cfg     *config.Config
	log     logger.Logger
	loop    *later.Loop
	runner  *async.Runner
	creds   *creds.Store
	history *history.Store
	hook    *hook.Hook
}

// newComponents wires the loop, runner, keyring, history and completion
// script for cfg. Runs are cancelled when ctx is.
func newComponents(ctx context.Context, cfg *config.Config, l logger.Logger) (*components, error) {
	c := &components{cfg: cfg, log: l, loop: later.NewLoop(), creds: creds.NewStore(l)}
	c.runner = async.New(
		async.Static(async.Capabilities{
			Threads:  threads.New(cfg.ThreadOptions(l)),
			Deferred: c.loop,
		}),
		async.WithLogger(l),
		async.WithPollOptions(cfg.PollOptions(l)),
		async.WithContext(ctx),
	)
	if cfg.HistoryDB != "" && cfg.HistoryDB != "-" {
		h, err := history.Open(cfg.HistoryDB)
		if err != nil {
			c.Close()
			return nil, err
		}
		c.history = h
	}
	if cfg.ScriptPath != "" {
		h, err := hook.LoadFile(c.loop, cfg.ScriptPath, l)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("load completion script: %w", err)
		}
		c.hook = h
	}
	return c, nil
}

func (c *components) newEngine() (engine.Engine, error) {
	return engine.NewMulti(c.cfg.MultiOpts(c.creds.CredentialFunc()))
}

// hooks are the completion hooks every pool gets.
func (c *components) hooks() []func(pool.Completion) {
	var hs []func(pool.Completion)
	if c.history != nil {
		hs = append(hs, c.history.Hook(func(err error) {
			c.log.Error("history: %v", err)
		}))
	}
	if c.hook != nil {
		hs = append(hs, c.hook.Func())
	}
	return hs
}

func (c *components) Close() {
	c.loop.Close()
	if c.history != nil {
		_ = c.history.Close()
	}
}

func closeEngine(eng engine.Engine) {
	if c, ok := eng.(io.Closer); ok {
		_ = c.Close()
	}
}

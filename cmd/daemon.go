package cmd

import (
	"context"

	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/cmd/common"
	"github.com/warpdl/warpmulti/internal/server"
	"github.com/warpdl/warpmulti/pkg/logger"
)

var (
	daemonLogFormat string
	daemonListen    string
	daemonSecret    string

	daemonFlags = []cli.Flag{
		cli.StringFlag{
			Name:        "log-format",
			Usage:       "text or json",
			Destination: &daemonLogFormat,
		},
		cli.StringFlag{
			Name:        "listen",
			Usage:       "address of the WebSocket/HTTP endpoint",
			Destination: &daemonListen,
		},
		cli.StringFlag{
			Name:        "secret",
			Usage:       "require this Bearer token on the TCP endpoints",
			EnvVar:      "WARPMULTI_RPC_SECRET",
			Destination: &daemonSecret,
		},
	}
)

// daemonLogger picks the daemon's logger for format.
func daemonLogger(format string) (logger.Logger, error) {
	if format == "json" {
		return logger.NewZapLogger(nil)
	}
	return newConsoleLogger(), nil
}

func daemon(ctx *cli.Context) error {
	sigCtx, cancel := setupShutdownHandler()
	defer cancel()
	return runDaemon(ctx, sigCtx, nil)
}

// runDaemon starts the notification daemon and blocks until parent is
// cancelled. extra, if set, receives log output alongside the primary
// logger.
func runDaemon(ctx *cli.Context, parent context.Context, extra logger.Logger) error {
	cfg, err := loadConfig(ctx)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "load_config", err)
		return err
	}
	if daemonLogFormat != "" {
		cfg.LogFormat = daemonLogFormat
	}
	if daemonListen != "" {
		cfg.Listen = daemonListen
	}
	if err := cfg.Validate(); err != nil {
		return common.PrintErrWithCmdHelp(ctx, err)
	}

	l, err := daemonLogger(cfg.LogFormat)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "logger", err)
		return err
	}
	if extra != nil {
		l = logger.NewMultiLogger(l, extra)
	}
	defer l.Close()

	comps, err := newComponents(parent, cfg, l)
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "init", err)
		return err
	}
	defer comps.Close()

	srv, err := server.New(server.Options{
		Loop:      comps.loop,
		Runner:    comps.runner,
		NewEngine: comps.newEngine,
		Logger:    l,
		Hooks:     comps.hooks(),
		Listen:    cfg.Listen,
		Secret:    daemonSecret,
		Version:   buildArgs.Version,
		Commit:    buildArgs.Commit,
		BuildType: buildArgs.BuildType,
	})
	if err != nil {
		common.PrintRuntimeErr(ctx, "daemon", "new_server", err)
		return err
	}
	l.Info("daemon starting, config dir %s", cfg.ConfigDir)
	if err := srv.Serve(parent); err != nil {
		l.Error("daemon stopped: %v", err)
		return err
	}
	l.Info("daemon stopped")
	return nil
}

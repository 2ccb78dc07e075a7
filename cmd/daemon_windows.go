//go:build windows

package cmd

import (
	"context"

	"github.com/urfave/cli"
	"github.com/warpdl/warpmulti/internal/service"
	"github.com/warpdl/warpmulti/pkg/logger"
	"golang.org/x/sys/windows/svc"
)

// eventSource is the Event Log source and SCM service name.
const eventSource = "warpmulti"

func getDaemonAction() cli.ActionFunc {
	return daemonWindows
}

// daemonWindows hands the daemon to the SCM when started as a service,
// logging to the Windows Event Log as well when the source exists.
func daemonWindows(ctx *cli.Context) error {
	isService, err := svc.IsWindowsService()
	if err != nil || !isService {
		return daemon(ctx)
	}
	var el logger.Logger
	if ev, err := logger.NewEventLogger(eventSource); err == nil {
		el = ev
		defer ev.Close()
	}
	h := service.NewHandler(func(c context.Context) error {
		return runDaemon(ctx, c, el)
	}, el)
	return service.Run(eventSource, h)
}

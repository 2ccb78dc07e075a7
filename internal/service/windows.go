//go:build windows

// Package service runs the warpmulti daemon under the Windows Service
// Control Manager.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/warpdl/warpmulti/pkg/logger"
	"golang.org/x/sys/windows/svc"
)

const acceptedCommands = svc.AcceptStop | svc.AcceptShutdown

// DefaultStopTimeout bounds how long a Stop request waits for the daemon
// to return.
const DefaultStopTimeout = 30 * time.Second

// ErrStopTimeout is returned when the daemon outlives the stop timeout.
var ErrStopTimeout = errors.New("service: daemon did not stop in time")

// RunFunc runs the daemon until ctx is cancelled.
type RunFunc func(ctx context.Context) error

// Handler implements svc.Handler around a RunFunc.
type Handler struct {
	run         RunFunc
	log         logger.Logger
	StopTimeout time.Duration
}

// NewHandler returns a Handler for run. A nil l discards messages.
func NewHandler(run RunFunc, l logger.Logger) *Handler {
	return &Handler{run: run, log: logger.OrNop(l), StopTimeout: DefaultStopTimeout}
}

// Execute implements svc.Handler. Service start arguments are ignored; the
// daemon reads its settings from the config directory.
//
//	StartPending -> Running -> StopPending -> Stopped
func (h *Handler) Execute(_ []string, requests <-chan svc.ChangeRequest, status chan<- svc.Status) (bool, uint32) {
	status <- svc.Status{State: svc.StartPending}
	h.log.Info("service starting")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- h.run(ctx)
	}()

	select {
	case err := <-errCh:
		h.log.Error("service failed to start: %v", err)
		status <- svc.Status{State: svc.Stopped}
		return false, 1
	case <-time.After(50 * time.Millisecond):
	}

	status <- svc.Status{State: svc.Running, Accepts: acceptedCommands}
	h.log.Info("service running")

	for {
		select {
		case err := <-errCh:
			// the daemon stopped on its own
			if err != nil {
				h.log.Error("service stopped: %v", err)
				status <- svc.Status{State: svc.Stopped}
				return false, 1
			}
			status <- svc.Status{State: svc.Stopped}
			return false, 0
		case req, ok := <-requests:
			if !ok {
				cancel()
				return false, 0
			}
			switch req.Cmd {
			case svc.Interrogate:
				status <- req.CurrentStatus
			case svc.Stop, svc.Shutdown:
				return h.stop(status, cancel, errCh)
			}
		}
	}
}

func (h *Handler) stop(status chan<- svc.Status, cancel context.CancelFunc, errCh <-chan error) (bool, uint32) {
	h.log.Info("service stopping")
	status <- svc.Status{State: svc.StopPending}
	cancel()

	var err error
	select {
	case err = <-errCh:
		if errors.Is(err, context.Canceled) {
			err = nil
		}
	case <-time.After(h.StopTimeout):
		err = ErrStopTimeout
	}
	status <- svc.Status{State: svc.Stopped}
	if err != nil {
		h.log.Error("service shutdown: %v", err)
		return false, 1
	}
	h.log.Info("service stopped")
	return false, 0
}

// AcceptedCommands returns the control requests the handler accepts.
func (h *Handler) AcceptedCommands() svc.Accepted {
	return acceptedCommands
}

// Run hands the process to the SCM under name and blocks until the
// service stops.
func Run(name string, h *Handler) error {
	return svc.Run(name, h)
}

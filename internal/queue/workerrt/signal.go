package workerrt

import (
	"context"
	"os"
	"os/signal"
	"syscall"
)

// SignalContext wires the two-signal shutdown state machine Run's
// force-kill escalation expects: the returned context is cancelled on the
// first SIGINT/SIGTERM, starting a graceful drain, and the returned
// channel is closed on a second one, telling Run to kill in-flight jobs
// immediately rather than wait out ShutdownGrace. Call stop once Run has
// returned to release the signal registration.
func SignalContext() (ctx context.Context, forceKill <-chan struct{}, stop func()) {
	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	runCtx, cancel := context.WithCancel(context.Background())
	kill := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		select {
		case <-sigCh:
			cancel()
		case <-stopped:
			return
		}
		select {
		case <-sigCh:
			close(kill)
		case <-stopped:
		}
	}()

	return runCtx, kill, func() {
		signal.Stop(sigCh)
		close(stopped)
		cancel()
	}
}

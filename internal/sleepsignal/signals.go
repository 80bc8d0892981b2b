// Package sleepsignal implements the Sleep/Signal Integration component:
// OS signal handling and, where the host exposes a systemd-logind
// delay-inhibitor interface, pre-sleep coordination.
package sleepsignal

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
)

// Signals turns SIGINT/SIGTERM/SIGHUP into Event Loop tasks. Each
// producer (here, the Go runtime's signal channel) marshals its
// notification through handle.Enqueue, never touching engine state
// directly, preserving the Event Loop's single-writer invariant.
type Signals struct {
	log      zerolog.Logger
	handle   engine.Handle
	onTerm   func()
	onReload func()

	ch chan os.Signal
}

// NewSignals constructs a Signals handler. onTerm is called (on the loop)
// for SIGINT/SIGTERM — typically begins graceful shutdown, matching the
// control socket's "stop" command. onReload is called for SIGHUP —
// typically re-reads the configuration, matching "reload".
func NewSignals(log zerolog.Logger, handle engine.Handle, onTerm, onReload func()) *Signals {
	return &Signals{log: log, handle: handle, onTerm: onTerm, onReload: onReload}
}

// Start begins listening for signals on its own goroutine.
func (s *Signals) Start() error {
	s.ch = make(chan os.Signal, 4)
	signal.Notify(s.ch, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)
	go s.loop()
	return nil
}

// Stop stops signal delivery and ends the worker goroutine.
func (s *Signals) Stop() error {
	signal.Stop(s.ch)
	close(s.ch)
	return nil
}

func (s *Signals) loop() {
	for sig := range s.ch {
		switch sig {
		case syscall.SIGINT, syscall.SIGTERM:
			s.log.Info().Str("signal", sig.String()).Msg("received termination signal")
			s.handle.Enqueue(s.onTerm)
		case syscall.SIGHUP:
			s.log.Info().Msg("received SIGHUP, reloading configuration")
			s.handle.Enqueue(s.onReload)
		}
	}
}

package sleepsignal

import (
	"os"

	"github.com/coreos/go-systemd/v22/login1"
	"github.com/godbus/dbus/v5"
	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
)

const (
	logindInterface       = "org.freedesktop.login1.Manager"
	prepareForSleepMember = "PrepareForSleep"
	prepareForSleepSignal = logindInterface + "." + prepareForSleepMember
)

// Inhibitor implements pre-sleep coordination via systemd-logind's
// delay-inhibitor interface: on start it subscribes to
// PrepareForSleep on logind's D-Bus manager and acquires a "delay"
// inhibitor lock; on entry to sleep (PrepareForSleep(true)) it marks the
// engine sleeping and releases the lock so the OS may proceed; on resume
// (PrepareForSleep(false)) it re-acquires the lock before clearing
// sleeping. Failure to acquire the inhibitor is a warning, not fatal: a
// desktop without logind (or without permission) still functions, it
// just cannot delay suspend to finish locking first.
type Inhibitor struct {
	log    zerolog.Logger
	handle engine.Handle

	conn *login1.Conn
	lock *os.File
	sig  chan *dbus.Signal
}

// NewInhibitor constructs an Inhibitor. It does not connect to logind
// until Start.
func NewInhibitor(log zerolog.Logger, handle engine.Handle) *Inhibitor {
	return &Inhibitor{log: log, handle: handle}
}

// Start connects to logind, subscribes to sleep events, and acquires the
// initial delay inhibitor.
func (i *Inhibitor) Start() error {
	conn, err := login1.New()
	if err != nil {
		i.log.Warn().Err(err).Msg("logind unavailable, sleep-prepare coordination disabled")
		return nil
	}
	i.conn = conn

	i.sig = make(chan *dbus.Signal, 8)
	i.conn.Connection.Signal(i.sig)
	if err := i.conn.Connection.AddMatchSignal(
		dbus.WithMatchObjectPath("/org/freedesktop/login1"),
		dbus.WithMatchInterface(logindInterface),
		dbus.WithMatchMember(prepareForSleepMember),
	); err != nil {
		i.log.Warn().Err(err).Msg("could not subscribe to logind PrepareForSleep")
		i.conn.Close()
		i.conn = nil
		return nil
	}

	i.acquire()
	go i.watch()
	return nil
}

// Stop releases any held inhibitor and closes the logind connection.
func (i *Inhibitor) Stop() error {
	i.release()
	if i.conn != nil {
		i.conn.Connection.RemoveSignal(i.sig)
		i.conn.Close()
	}
	return nil
}

func (i *Inhibitor) acquire() {
	if i.conn == nil {
		return
	}
	lock, err := i.conn.Inhibit("sleep", "lockd", "locking session before suspend", "delay")
	if err != nil {
		i.log.Warn().Err(err).Msg("failed to acquire sleep delay inhibitor")
		return
	}
	i.lock = lock
}

func (i *Inhibitor) release() {
	if i.lock == nil {
		return
	}
	_ = i.lock.Close()
	i.lock = nil
}

func (i *Inhibitor) watch() {
	for sig := range i.sig {
		if sig.Name != prepareForSleepSignal || len(sig.Body) != 1 {
			continue
		}
		before, ok := sig.Body[0].(bool)
		if !ok {
			continue
		}
		if before {
			i.handle.Enqueue(func() {
				i.handle.SetSleeping(true)
				i.release()
			})
		} else {
			i.handle.Enqueue(func() {
				i.acquire()
				i.handle.SetSleeping(false)
			})
		}
	}
}

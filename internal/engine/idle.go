package engine

import "time"

type idleKind int8

const (
	idleFinite idleKind = iota
	idlePlusInf
	idleMinusInf
)

// IdleSince models a session's (or the system's) idle_since value: an
// ordinary timestamp, or one of two sentinels. +∞ ("cannot currently become
// idle", an active session holding a wake-lock) always wins a Max
// comparison; −∞ ("pretend maximally idle", used during sleep prepare to
// force every idle hook to fire) only wins if nothing else is present.
type IdleSince struct {
	kind idleKind
	at   time.Time
}

// IdleAt returns an ordinary, finite idle_since value.
func IdleAt(t time.Time) IdleSince { return IdleSince{kind: idleFinite, at: t} }

// IdlePlusInf returns the wake-lock sentinel.
func IdlePlusInf() IdleSince { return IdleSince{kind: idlePlusInf} }

// IdleMinusInf returns the sleep-prepare sentinel.
func IdleMinusInf() IdleSince { return IdleSince{kind: idleMinusInf} }

// IsFinite reports whether the value is an ordinary timestamp.
func (i IdleSince) IsFinite() bool { return i.kind == idleFinite }

// IsPlusInf reports whether the value is the wake-lock sentinel.
func (i IdleSince) IsPlusInf() bool { return i.kind == idlePlusInf }

// IsMinusInf reports whether the value is the sleep-prepare sentinel.
func (i IdleSince) IsMinusInf() bool { return i.kind == idleMinusInf }

// At returns the finite timestamp. Only meaningful when IsFinite is true.
func (i IdleSince) At() time.Time { return i.at }

// IdleFor reports whether, as of now, idleness has lasted at least d.
// A threshold exactly equal to the elapsed idle time counts as satisfied:
// this is a ≥ test, not a strict >.
func (i IdleSince) IdleFor(now time.Time, d time.Duration) bool {
	switch i.kind {
	case idlePlusInf:
		return false
	case idleMinusInf:
		return true
	default:
		return !now.Before(i.at.Add(d))
	}
}

// Elapsed returns how long the session has been idle as of now. Callers
// must check IsFinite first; Elapsed on a sentinel returns 0.
func (i IdleSince) Elapsed(now time.Time) time.Duration {
	if i.kind != idleFinite {
		return 0
	}
	if now.Before(i.at) {
		return 0
	}
	return now.Sub(i.at)
}

// Max returns the later (i.e. "less idle") of two idle_since values. This
// is how the global idle_since is computed from per-session values: the
// system is considered idle only once every session is, so the global
// value is the maximum (least idle) across sessions.
func (i IdleSince) Max(other IdleSince) IdleSince {
	if i.kind == idlePlusInf || other.kind == idlePlusInf {
		return IdlePlusInf()
	}
	if i.kind == idleMinusInf {
		return other
	}
	if other.kind == idleMinusInf {
		return i
	}
	if i.at.After(other.at) {
		return i
	}
	return other
}

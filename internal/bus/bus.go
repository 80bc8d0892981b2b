// Package bus implements the Optional Peer Bus: an authenticated TCP
// relay connecting multiple daemon instances so their
// sessions' idle timestamps participate in one another's global idle
// decision. The bus is not required for local correctness and may be
// absent entirely.
package bus

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/engine"
	"github.com/lockd/lockd/internal/session"
)

// frame is the bus wire format: a single JSON object per line.
type frame struct {
	Type      string `json:"type"`
	Challenge string `json:"challenge,omitempty"`
	Digest    string `json:"digest,omitempty"`
	SessionID string `json:"session_id,omitempty"`
	IdleSince string `json:"idle_since,omitempty"` // RFC3339, "+inf", or "-inf"
}

// Bus is the peer-to-peer relay. It both accepts inbound connections
// (Listen) and dials configured peers (Dial); whichever side accepted
// the TCP connection issues the authentication challenge.
type Bus struct {
	log       zerolog.Logger
	sharedKey []byte
	sessions  *session.Registry
	get       func(engine.Spec) (engine.Module, error)
	handle    engine.Handle

	ln net.Listener

	mu    sync.Mutex
	peers map[string]*peerState
}

type peerState struct {
	attached map[string]engine.Spec
}

// New constructs a Bus authenticated with sharedKey. get is typically
// engine.Registry.Get, used to reach the session.remote instance a
// message frame targets. handle is the same engine.Handle (typically the
// same *engine.Registry) that drives the daemon's Event Loop; Attach,
// SetIdle and Detach calls reached from connection goroutines are
// marshalled through handle.Enqueue rather than called directly, since
// they ultimately reach Registry.Update, which asserts it is only ever
// called from the Event Loop goroutine.
func New(log zerolog.Logger, sharedKey []byte, sessions *session.Registry, get func(engine.Spec) (engine.Module, error), handle engine.Handle) *Bus {
	return &Bus{
		log:       log,
		sharedKey: sharedKey,
		sessions:  sessions,
		get:       get,
		handle:    handle,
		peers:     make(map[string]*peerState),
	}
}

// Listen binds addr and begins accepting peer connections.
func (b *Bus) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("bus: listen %s: %w", addr, err)
	}
	b.ln = ln
	go b.acceptLoop()
	return nil
}

// Close stops accepting new peers. Existing connections are left to
// close on their own read errors.
func (b *Bus) Close() error {
	if b.ln == nil {
		return nil
	}
	return b.ln.Close()
}

// Dial connects out to a configured peer and performs the client side of
// the handshake (waiting for the challenge rather than issuing one).
func (b *Bus) Dial(addr string) error {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("bus: dial %s: %w", addr, err)
	}
	go b.runClient(conn)
	return nil
}

func (b *Bus) acceptLoop() {
	for {
		conn, err := b.ln.Accept()
		if err != nil {
			return
		}
		go b.runServer(conn)
	}
}

// runServer handles the accepting side of a connection: issue the
// challenge, verify the response, then relay.
func (b *Bus) runServer(conn net.Conn) {
	defer conn.Close()

	challenge, err := randomChallenge()
	if err != nil {
		b.log.Error().Err(err).Msg("bus: failed to generate challenge")
		return
	}

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	if err := enc.Encode(frame{Type: "challenge", Challenge: challenge}); err != nil {
		return
	}

	var resp frame
	if err := dec.Decode(&resp); err != nil || resp.Type != "auth" {
		b.log.Warn().Str("peer", conn.RemoteAddr().String()).Msg("bus: peer did not respond to challenge")
		return
	}
	if !b.verify(challenge, resp.Digest) {
		b.log.Warn().Str("peer", conn.RemoteAddr().String()).Msg("bus: peer failed authentication")
		return
	}

	b.relay(conn, dec)
}

// runClient handles the dialing side: wait for the challenge, respond.
func (b *Bus) runClient(conn net.Conn) {
	defer conn.Close()

	enc := json.NewEncoder(conn)
	dec := json.NewDecoder(conn)

	var ch frame
	if err := dec.Decode(&ch); err != nil || ch.Type != "challenge" {
		b.log.Warn().Str("peer", conn.RemoteAddr().String()).Msg("bus: peer did not issue a challenge")
		return
	}
	if err := enc.Encode(frame{Type: "auth", Digest: b.digest(ch.Challenge)}); err != nil {
		return
	}

	b.relay(conn, dec)
}

// relay reads message frames until the connection closes, mapping each
// onto a synthetic session.remote instance and purging them all on
// disconnect.
func (b *Bus) relay(conn net.Conn, dec *json.Decoder) {
	peerID := conn.RemoteAddr().String()
	ps := &peerState{attached: make(map[string]engine.Spec)}

	b.mu.Lock()
	b.peers[peerID] = ps
	b.mu.Unlock()

	defer b.purge(peerID)

	for {
		var f frame
		if err := dec.Decode(&f); err != nil {
			return
		}
		if f.Type != "message" || f.SessionID == "" {
			continue
		}
		b.handleMessage(ps, peerID, f)
	}
}

// handleMessage runs on the connection's own goroutine (via relay), so
// everything that reaches Registry.Update — Attach and SetIdle — is
// marshalled onto the Event Loop instead of called inline.
func (b *Bus) handleMessage(ps *peerState, peerID string, f frame) {
	spec := session.NewSpec(session.KindRemote, peerID+"/"+f.SessionID)
	idle := parseIdle(f.IdleSince)

	b.handle.Enqueue(func() {
		if _, ok := ps.attached[spec.Key()]; !ok {
			ps.attached[spec.Key()] = spec
			b.sessions.Attach(spec)
		}

		inst, err := b.get(spec)
		if err != nil {
			return
		}
		setter, ok := inst.(session.RemoteIdleSetter)
		if !ok {
			return
		}
		setter.SetIdle(idle)
	})
}

// purge runs on the connection goroutine's unwind (relay's deferred
// call), off the Event Loop; the Detach calls it triggers are enqueued
// for the same reason handleMessage's Attach/SetIdle calls are.
func (b *Bus) purge(peerID string) {
	b.mu.Lock()
	ps, ok := b.peers[peerID]
	delete(b.peers, peerID)
	b.mu.Unlock()
	if !ok {
		return
	}
	b.handle.Enqueue(func() {
		for _, spec := range ps.attached {
			b.sessions.Detach(spec)
		}
	})
}

func (b *Bus) digest(challenge string) string {
	mac := hmac.New(sha256.New, b.sharedKey)
	mac.Write([]byte(challenge))
	return hex.EncodeToString(mac.Sum(nil))
}

// verify rejects a mismatched digest in constant time.
func (b *Bus) verify(challenge, digest string) bool {
	expected := b.digest(challenge)
	decoded, err := hex.DecodeString(digest)
	if err != nil {
		return false
	}
	expectedBytes, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	if len(decoded) != len(expectedBytes) {
		return false
	}
	return subtle.ConstantTimeCompare(expectedBytes, decoded) == 1
}

func randomChallenge() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func parseIdle(s string) engine.IdleSince {
	switch s {
	case "+inf":
		return engine.IdlePlusInf()
	case "-inf":
		return engine.IdleMinusInf()
	default:
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return engine.IdlePlusInf()
		}
		return engine.IdleAt(t)
	}
}

// NewSessionID returns a fresh identifier for a locally reported session
// frame, for callers on the reporting (dialing or accepting) side of a
// bus that exchanges its own sessions' idle state with peers.
func NewSessionID() string {
	return uuid.NewString()
}

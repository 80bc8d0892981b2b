// Package socket implements the Control Socket: a local stream socket
// accepting one newline-terminated JSON line per connection (command name
// then arguments) and replying with one newline-terminated JSON line.
package socket

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/config"
	"github.com/lockd/lockd/internal/engine"
	"github.com/lockd/lockd/internal/session"
)

// Reply is the wire format of a control-socket response.
type Reply struct {
	OK     bool   `json:"ok"`
	Result string `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Handlers bundles the composition root's components the dispatcher
// needs to act on commands.
type Handlers struct {
	Engine     *engine.Registry
	Sessions   *session.Registry
	ConfigHost *config.Host
	ConfigPath string
	Shutdown   func()
}

// Server is the accept loop plus per-connection workers. All command
// effects are marshalled onto the Event Loop via handle.Enqueue before a
// reply is sent.
type Server struct {
	log      zerolog.Logger
	path     string
	handle   engine.Handle
	handlers *Handlers

	ln       net.Listener
	stopping atomic.Bool
}

// New constructs a Server bound to a runtime-directory socket path.
func New(log zerolog.Logger, path string, handle engine.Handle, handlers *Handlers) *Server {
	return &Server{log: log, path: path, handle: handle, handlers: handlers}
}

// Start removes any stale socket file, binds, and begins accepting.
func (s *Server) Start() error {
	_ = os.Remove(s.path)
	ln, err := net.Listen("unix", s.path)
	if err != nil {
		return fmt.Errorf("socket: listen %s: %w", s.path, err)
	}
	s.ln = ln
	go s.acceptLoop()
	return nil
}

// Stop closes the listener and sends a sentinel self-connection so any
// Accept call already in flight unblocks promptly even on platforms where
// closing a listener does not itself wake a blocked accept.
func (s *Server) Stop() error {
	s.stopping.Store(true)
	err := s.ln.Close()
	if conn, dialErr := net.Dial("unix", s.path); dialErr == nil {
		_ = conn.Close()
	}
	return err
}

func (s *Server) acceptLoop() {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if s.stopping.Load() {
				return
			}
			s.log.Warn().Err(err).Msg("control socket accept error")
			continue
		}
		go s.handleConn(conn)
	}
}

func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()

	reader := bufio.NewReader(conn)
	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	line = strings.TrimSpace(line)
	if line == "" {
		return
	}

	var parts []string
	if err := json.Unmarshal([]byte(line), &parts); err != nil {
		writeReply(conn, Reply{OK: false, Error: fmt.Sprintf("malformed request: %v", err)})
		return
	}
	if len(parts) == 0 {
		writeReply(conn, Reply{OK: false, Error: "empty request"})
		return
	}

	done := make(chan Reply, 1)
	s.handle.Enqueue(func() {
		done <- s.dispatch(parts[0], parts[1:])
	})
	writeReply(conn, <-done)
}

func writeReply(conn net.Conn, r Reply) {
	data, err := json.Marshal(r)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = conn.Write(data)
}

func (s *Server) dispatch(cmd string, args []string) Reply {
	switch cmd {
	case "ping":
		return ok("pong")
	case "status":
		return ok(s.status())
	case "stop":
		if s.handlers.Shutdown != nil {
			s.handlers.Shutdown()
		}
		return ok("stopping")
	case "reload":
		return s.reload()
	case "lock":
		s.handlers.Engine.Lock()
		return ok("locked")
	case "unlock":
		s.handlers.Engine.Unlock()
		return ok("unlocked")
	case "attach":
		return s.attach(args)
	case "detach":
		return s.detach(args)
	case "module":
		return s.module(args)
	default:
		return errReply(engine.NewUserError("unknown command %q", cmd))
	}
}

func (s *Server) status() string {
	st := s.handlers.Engine.State()
	var b strings.Builder
	fmt.Fprintf(&b, "locked: %v\n", st.Locked)
	fmt.Fprintf(&b, "sleeping: %v\n", st.Sleeping)
	fmt.Fprintf(&b, "idle_since: %s\n", describeIdle(st.GlobalIdleSince()))
	b.WriteString("running:\n")
	for _, spec := range s.handlers.Engine.Running() {
		fmt.Fprintf(&b, "  %s\n", spec.String())
	}
	return b.String()
}

func describeIdle(idle engine.IdleSince) string {
	switch {
	case idle.IsPlusInf():
		return "+inf"
	case idle.IsMinusInf():
		return "-inf"
	default:
		return idle.At().Format("2006-01-02T15:04:05Z07:00")
	}
}

func (s *Server) reload() Reply {
	fn, err := config.LoadUserConfig(s.handlers.ConfigPath)
	if err != nil {
		return errReply(err)
	}
	s.handlers.ConfigHost.SetConfigureFunc(fn)
	if err := s.handlers.Engine.Update(); err != nil {
		s.log.Warn().Err(err).Msg("reload: reconciliation reported soft errors")
	}
	return ok("reloaded")
}

func (s *Server) attach(args []string) Reply {
	if len(args) != 2 {
		return errReply(engine.NewUserError("attach requires (kind, id)"))
	}
	s.handlers.Sessions.Attach(session.NewSpec(session.Kind(args[0]), args[1]))
	return ok("attached")
}

func (s *Server) detach(args []string) Reply {
	if len(args) != 2 {
		return errReply(engine.NewUserError("detach requires (kind, id)"))
	}
	s.handlers.Sessions.Detach(session.NewSpec(session.Kind(args[0]), args[1]))
	return ok("detached")
}

// module routes a command to a running module's SocketCommand. The
// module is addressed by name alone (args[0]); this covers the built-in
// singleton modules (lock, screensaver-cfg, scheduler) that take no
// positional spec arguments. Modules that are keyed by arguments (e.g.
// per-session helpers) are not addressable through this command.
func (s *Server) module(args []string) Reply {
	if len(args) < 1 {
		return errReply(engine.NewUserError("module requires a module name"))
	}
	result, err := s.handlers.Engine.SocketCommand(engine.NewSpec(args[0]), args[1:])
	if err != nil {
		return errReply(err)
	}
	return ok(result)
}

func ok(result string) Reply { return Reply{OK: true, Result: result} }

func errReply(err error) Reply { return Reply{OK: false, Error: err.Error()} }

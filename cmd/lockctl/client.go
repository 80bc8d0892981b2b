package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"time"

	"github.com/rs/zerolog"

	"github.com/lockd/lockd/internal/socket"
)

// dialSocket sends a single command over path's control socket and reads
// back one reply line, matching the wire format in socket.Server.
func dialSocket(path, name string, args []string, timeout time.Duration) (socket.Reply, error) {
	conn, err := net.DialTimeout("unix", path, timeout)
	if err != nil {
		return socket.Reply{}, err
	}
	defer conn.Close()

	parts := append([]string{name}, args...)
	data, err := json.Marshal(parts)
	if err != nil {
		return socket.Reply{}, err
	}
	data = append(data, '\n')
	if _, err := conn.Write(data); err != nil {
		return socket.Reply{}, err
	}

	_ = conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil && err != io.EOF {
		return socket.Reply{}, err
	}
	var reply socket.Reply
	if err := json.Unmarshal([]byte(line), &reply); err != nil {
		return socket.Reply{}, fmt.Errorf("malformed daemon reply: %w", err)
	}
	return reply, nil
}

// noopLogger returns a logger that discards everything, for the bare
// Registry the "module" command builds outside of any daemon process.
func noopLogger() zerolog.Logger {
	return zerolog.Nop()
}

package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"
)

// ErrDaemonUnavailable is returned when nothing listens on the socket.
var ErrDaemonUnavailable = errors.New("daemon not reachable (is `bluenotify daemon` running?)")

const callTimeout = 5 * time.Second

// Call sends req to the daemon listening on socket and returns its response.
// A response carrying an Error is returned as a Go error.
func Call(socket string, req Request) (Response, error) {
	conn, err := net.DialTimeout("unix", socket, callTimeout)
	if err != nil {
		return Response{}, fmt.Errorf("connect to daemon: %w: %w", ErrDaemonUnavailable, err)
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(callTimeout))

	if err := json.NewEncoder(conn).Encode(req); err != nil {
		return Response{}, fmt.Errorf("send request: %w", err)
	}

	var resp Response
	if err := json.NewDecoder(conn).Decode(&resp); err != nil {
		return Response{}, fmt.Errorf("read response: %w", err)
	}
	if resp.Error != "" {
		return resp, errors.New(resp.Error)
	}
	return resp, nil
}

package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Handler answers one request. It must honour ctx.
type Handler func(ctx context.Context, req Request) Response

// Server accepts connections on a unix socket and hands each request to a
// Handler.
type Server struct {
	ln      net.Listener
	path    string
	handler Handler
	log     zerolog.Logger
}

// Listen replaces any stale socket at path and starts listening.
func Listen(path string, handler Handler, log zerolog.Logger) (*Server, error) {
	os.Remove(path) // remove stale socket
	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", path, err)
	}
	if err := os.Chmod(path, 0o600); err != nil {
		ln.Close()
		return nil, fmt.Errorf("chmod %s: %w", path, err)
	}
	return &Server{ln: ln, path: path, handler: handler, log: log}, nil
}

// Serve accepts connections until ctx is done or the listener is closed.
// The listener is closed when Serve returns.
func (s *Server) Serve(ctx context.Context) error {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		s.ln.Close()
	}()

	s.log.Info().Str("socket", s.path).Msg("Listening for status requests")
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return fmt.Errorf("accept: %w", err)
		}
		go s.handleConn(ctx, conn)
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(callTimeout))

	var req Request
	if err := json.NewDecoder(conn).Decode(&req); err != nil {
		resp := Response{Error: "invalid request: " + err.Error()}
		json.NewEncoder(conn).Encode(resp) //nolint:errcheck // best effort
		return
	}

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()
	resp := s.handler(ctx, req)
	if err := json.NewEncoder(conn).Encode(resp); err != nil {
		s.log.Debug().Err(err).Msg("Failed to write status response")
	}
}

// Close stops the listener and removes the socket file.
func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}

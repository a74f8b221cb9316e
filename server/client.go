package server

import (
	"fmt"
	"io"
	"net"
	"time"
)

// Exchange sends one request to the directory server at address and
// returns everything written back before the server closed the
// connection. An empty reply with a nil error means the server
// rejected the request's secret.
func Exchange(address string, req []byte, timeout time.Duration) ([]byte, error) {
	if len(req) > MaxRequestSize {
		return nil, fmt.Errorf("request is %d bytes, the server only reads %d", len(req), MaxRequestSize)
	}
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return nil, err
	}
	defer conn.Close()
	if timeout > 0 {
		if err := conn.SetDeadline(time.Now().Add(timeout)); err != nil {
			return nil, err
		}
	}
	if _, err := conn.Write(req); err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	reply, err := io.ReadAll(conn)
	if err != nil {
		return nil, fmt.Errorf("reading reply: %w", err)
	}
	return reply, nil
}

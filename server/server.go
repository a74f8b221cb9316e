// Copyright 2016 Google Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package server implements the TCP front end of the client directory:
// one JSON request per connection, one reply, then the connection is
// closed.
package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metal-stack/clientdir/directory"
	"go.uber.org/zap"
	"golang.org/x/net/netutil"
)

// MaxRequestSize is the size of the single read a request must fit in.
// Anything beyond it is dropped, which usually makes the request
// undecodable.
const MaxRequestSize = 1024

// A Server answers directory requests.
type Server struct {
	Registry *directory.Registry

	// Address to listen on, as IPv4 host:port. Admin requests are
	// only accepted from the host part of this address.
	Address string

	// MetricsAddress is where prometheus metrics are served over
	// HTTP. Empty disables the metrics endpoint.
	MetricsAddress string

	// MaxConnections bounds the number of connections served at
	// once. Zero means no limit.
	MaxConnections int

	// Deadlines for reading the request and writing the reply. Zero
	// means no deadline.
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	// Log receives logs on the server's operation. If nil, logging
	// is suppressed.
	Log *zap.SugaredLogger

	// Metrics is created by Serve if nil.
	Metrics *Metrics

	boundIP net.IP
}

// Serve binds Address and serves requests until ctx is cancelled. A
// bind failure is returned immediately.
func (s *Server) Serve(ctx context.Context) error {
	l, err := net.Listen("tcp4", s.Address)
	if err != nil {
		return fmt.Errorf("couldn't bind to %s: %w", s.Address, err)
	}
	return s.ServeListener(ctx, l)
}

// ServeListener serves requests accepted from l until ctx is cancelled,
// then closes l and waits for in-flight connections.
func (s *Server) ServeListener(ctx context.Context, l net.Listener) error {
	if s.Registry == nil {
		l.Close()
		return errors.New("server has no registry")
	}
	if s.Metrics == nil {
		s.Metrics = NewMetrics(s.Registry)
	}
	if tcp, ok := l.Addr().(*net.TCPAddr); ok {
		s.boundIP = tcp.IP.To4()
	}
	if s.MaxConnections > 0 {
		l = netutil.LimitListener(l, s.MaxConnections)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		wg        sync.WaitGroup
		errMu     sync.Mutex
		serverErr error
	)
	if s.MetricsAddress != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := s.serveMetrics(ctx); err != nil {
				errMu.Lock()
				serverErr = err
				errMu.Unlock()
				cancel()
			}
		}()
	}
	go func() {
		<-ctx.Done()
		l.Close()
	}()

	st := s.Registry.Snapshot()
	s.log("TCP", "listening on %s (%d/%d clients, list size %d, drop votes %d, drop verification %t)",
		l.Addr(), st.Clients, st.Capacity, st.ListSize, st.DropVotes, st.DropVerification)

	var delay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				break
			}
			if delay == 0 {
				delay = 5 * time.Millisecond
			} else {
				delay *= 2
			}
			if delay > time.Second {
				delay = time.Second
			}
			s.warn("TCP", "accept failed, retrying in %s: %s", delay, err)
			time.Sleep(delay)
			continue
		}
		delay = 0
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(conn)
		}()
	}

	cancel()
	wg.Wait()
	s.log("TCP", "stopped listening on %s", l.Addr())

	errMu.Lock()
	defer errMu.Unlock()
	return serverErr
}

func (s *Server) serveConn(conn net.Conn) {
	peer := conn.RemoteAddr()
	log := s.logger().With("conn", uuid.NewString(), "peer", peer.String())
	defer func() {
		if err := conn.Close(); err != nil {
			log.Debugf("closing connection: %s", err)
		}
	}()
	log.Debugf("new connection")

	if s.ReadTimeout > 0 {
		if err := conn.SetReadDeadline(time.Now().Add(s.ReadTimeout)); err != nil {
			log.Warnf("couldn't set read deadline: %s", err)
			return
		}
	}
	buf := make([]byte, MaxRequestSize)
	n, err := conn.Read(buf)
	if err != nil {
		log.Warnf("couldn't read the request: %s", err)
		return
	}

	payload := bytes.ToValidUTF8(buf[:n], []byte("\uFFFD"))
	reply, send := s.handle(log, peer, payload)
	if !send {
		return
	}

	if s.WriteTimeout > 0 {
		if err := conn.SetWriteDeadline(time.Now().Add(s.WriteTimeout)); err != nil {
			log.Warnf("couldn't set write deadline: %s", err)
			return
		}
	}
	written, err := conn.Write(reply)
	switch {
	case err != nil:
		log.Warnf("couldn't write the reply: %s", err)
	case written != len(reply):
		log.Warnf("wrote only %d of %d reply bytes", written, len(reply))
	}
}

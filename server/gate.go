package server

import (
	"net"

	"github.com/metal-stack/clientdir/addr"
	"github.com/metal-stack/clientdir/request"
)

type verdict int

const (
	verdictAllow verdict = iota
	// The peer is not IPv4, or is an admin on another host. The peer
	// is told so.
	verdictIPv4Only
	// Wrong secret. The peer gets no reply at all.
	verdictDenied
)

func (v verdict) String() string {
	switch v {
	case verdictAllow:
		return "allowed"
	case verdictIPv4Only:
		return "ipv4_only"
	default:
		return "denied"
	}
}

// authorize runs the address checks before the secret check, so a
// remote admin with the right key still only learns that it has to
// connect locally.
func (s *Server) authorize(req request.Request, peer net.Addr) (net.IP, verdict) {
	peerIP, ok := addr.PeerIPv4(peer)
	if !ok {
		return nil, verdictIPv4Only
	}

	if req.Role() == request.RoleAdmin && !s.isLocal(peerIP) {
		return peerIP, verdictIPv4Only
	}
	if !s.Registry.Authenticate(req.Role(), req.Secret()) {
		return peerIP, verdictDenied
	}
	return peerIP, verdictAllow
}

// isLocal reports whether ip is the address the server is bound to. A
// server bound to the wildcard address only trusts loopback.
func (s *Server) isLocal(ip net.IP) bool {
	bound := s.localIP()
	if bound == nil || bound.IsUnspecified() {
		return ip.IsLoopback()
	}
	return bound.Equal(ip)
}

func (s *Server) localIP() net.IP {
	if s.boundIP != nil {
		return s.boundIP
	}
	host, _, err := net.SplitHostPort(s.Address)
	if err != nil {
		return nil
	}
	ip, err := addr.ParseIPv4(host)
	if err != nil {
		return nil
	}
	return ip
}

// Package addr parses the hardware and network addresses that directory
// clients send, and classifies peer addresses.
package addr

import (
	"fmt"
	"net"
	"strings"
)

// ParseMAC parses s as a 6-byte (EUI-48) hardware address. Any
// separator form accepted by net.ParseMAC is allowed.
func ParseMAC(s string) (net.HardwareAddr, error) {
	mac, err := net.ParseMAC(s)
	if err != nil {
		return nil, err
	}
	if len(mac) != 6 {
		return nil, fmt.Errorf("%q is not a 6-byte MAC address", s)
	}
	return mac, nil
}

// ParseIPv4 parses a dotted-quad IPv4 address. IPv6 notations,
// including IPv4-mapped ones, are rejected.
func ParseIPv4(s string) (net.IP, error) {
	if strings.Contains(s, ":") {
		return nil, fmt.Errorf("%q is not an IPv4 address", s)
	}
	ip := net.ParseIP(s)
	if ip == nil {
		return nil, fmt.Errorf("invalid IPv4 address %q", s)
	}
	return ip.To4(), nil
}

// PeerIPv4 returns the IPv4 address of a connection's remote end, or
// false if the peer is not an IPv4 host.
func PeerIPv4(a net.Addr) (net.IP, bool) {
	var ip net.IP
	switch v := a.(type) {
	case *net.TCPAddr:
		ip = v.IP
	case *net.UDPAddr:
		ip = v.IP
	case *net.IPAddr:
		ip = v.IP
	default:
		return nil, false
	}
	ip4 := ip.To4()
	if ip4 == nil {
		return nil, false
	}
	return ip4, true
}

// Key returns a comparable map key for ip.
func Key(ip net.IP) string {
	if ip4 := ip.To4(); ip4 != nil {
		return ip4.String()
	}
	return ip.String()
}

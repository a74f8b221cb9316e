// Package directory holds the registered clients of a directory server
// and the vote tallies used to evict them.
//
// Directory and Quorum are not safe for concurrent use. Registry wraps
// both, together with the mutable server settings, behind one lock.
package directory

import (
	"errors"
	"net"

	"github.com/metal-stack/clientdir/addr"
)

var (
	// ErrCapacityExceeded is returned when a new client signs up while
	// the directory is full.
	ErrCapacityExceeded = errors.New("directory is full")
	// ErrCapacityBelowSize is returned when the capacity would drop
	// below the number of registered clients.
	ErrCapacityBelowSize = errors.New("capacity below current number of clients")
)

// A Client is one registered directory entry.
type Client struct {
	MAC      net.HardwareAddr
	Username string
	IP       net.IP
	Port     uint16
	// GetOnlyByMAC hides the client from username lookups.
	GetOnlyByMAC bool
}

// Directory indexes clients by MAC, keeps their insertion order and
// tracks which MACs are registered at each IP.
type Directory struct {
	capacity int
	byMAC    map[string]*Client
	order    []*Client
	byIP     map[string]map[string]struct{}
}

// New returns an empty directory holding at most capacity clients.
func New(capacity int) *Directory {
	return &Directory{
		capacity: capacity,
		byMAC:    make(map[string]*Client),
		byIP:     make(map[string]map[string]struct{}),
	}
}

// Len returns the number of registered clients.
func (d *Directory) Len() int {
	return len(d.order)
}

// Capacity returns the maximum number of clients.
func (d *Directory) Capacity() int {
	return d.capacity
}

// SetCapacity changes the maximum number of clients. It fails, keeping
// the old capacity, if n is below the current size.
func (d *Directory) SetCapacity(n int) error {
	if n < len(d.order) {
		return ErrCapacityBelowSize
	}
	d.capacity = n
	return nil
}

// Insert registers c. A client with the same MAC is replaced and c
// moves to the end of the insertion order; replacing never counts
// against capacity. A new MAC is rejected with ErrCapacityExceeded if
// the directory is full.
func (d *Directory) Insert(c Client) error {
	key := c.MAC.String()
	old, replacing := d.byMAC[key]
	if !replacing && len(d.order) >= d.capacity {
		return ErrCapacityExceeded
	}
	if replacing {
		d.unlink(old)
	}

	rec := c
	d.byMAC[key] = &rec
	d.order = append(d.order, &rec)
	ipKey := addr.Key(rec.IP)
	if d.byIP[ipKey] == nil {
		d.byIP[ipKey] = make(map[string]struct{})
	}
	d.byIP[ipKey][key] = struct{}{}
	return nil
}

// ByMAC returns the client registered with mac, whatever its
// visibility.
func (d *Directory) ByMAC(mac net.HardwareAddr) (Client, bool) {
	c, ok := d.byMAC[mac.String()]
	if !ok {
		return Client{}, false
	}
	return *c, true
}

// ByUsername returns up to limit clients whose username equals name
// exactly (case-sensitive), skipping the first start matches. Clients
// with GetOnlyByMAC set never match.
func (d *Directory) ByUsername(name string, start, limit int) []Client {
	ret := []Client{}
	if limit <= 0 {
		return ret
	}
	seen := 0
	for _, c := range d.order {
		if c.GetOnlyByMAC || c.Username != name {
			continue
		}
		if seen >= start {
			ret = append(ret, *c)
			if len(ret) == limit {
				break
			}
		}
		seen++
	}
	return ret
}

// ByIndex returns the clients at insertion positions [start, end),
// including hidden ones, at most limit of them. end is clamped to the
// directory size.
func (d *Directory) ByIndex(start, end, limit int) []Client {
	ret := []Client{}
	if end > len(d.order) {
		end = len(d.order)
	}
	if start >= end || limit <= 0 {
		return ret
	}
	if end-start > limit {
		end = start + limit
	}
	for _, c := range d.order[start:end] {
		ret = append(ret, *c)
	}
	return ret
}

// Has reports whether any client is registered at ip.
func (d *Directory) Has(ip net.IP) bool {
	return len(d.byIP[addr.Key(ip)]) > 0
}

// Remove unregisters every client currently registered at ip and
// returns how many were removed.
func (d *Directory) Remove(ip net.IP) int {
	macs := d.byIP[addr.Key(ip)]
	n := 0
	for key := range macs {
		if c, ok := d.byMAC[key]; ok {
			d.unlink(c)
			n++
		}
	}
	return n
}

func (d *Directory) unlink(c *Client) {
	key := c.MAC.String()
	delete(d.byMAC, key)

	ipKey := addr.Key(c.IP)
	if macs := d.byIP[ipKey]; macs != nil {
		delete(macs, key)
		if len(macs) == 0 {
			delete(d.byIP, ipKey)
		}
	}

	for i, o := range d.order {
		if o == c {
			d.order = append(d.order[:i], d.order[i+1:]...)
			break
		}
	}
}

package directory

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"net"
	"sync"
	"unicode"

	"github.com/metal-stack/clientdir/request"
	"golang.org/x/crypto/blake2b"
)

var (
	// ErrInvalidKey is returned for admin keys that are empty, longer
	// than 32 bytes or not ASCII.
	ErrInvalidKey = errors.New("admin key must be 1 to 32 ASCII characters")
	// ErrInvalidDropVotes is returned for a zero eviction quorum.
	ErrInvalidDropVotes = errors.New("drop votes must be between 1 and 255")
)

// Settings is the mutable configuration of a directory server.
type Settings struct {
	AdminKey       string
	ClientPassword string
	Capacity       uint16
	// ListSize bounds the number of clients returned by one lookup.
	ListSize uint16
	// DropVotes is the number of distinct votes that evicts a client
	// while DropVerification is on.
	DropVotes        uint8
	DropVerification bool
}

// Validate checks s for values a server cannot start with.
func (s Settings) Validate() error {
	if !ValidKey(s.AdminKey) {
		return ErrInvalidKey
	}
	if s.DropVotes == 0 {
		return ErrInvalidDropVotes
	}
	return nil
}

// ValidKey reports whether k can be used as admin key.
func ValidKey(k string) bool {
	if len(k) == 0 || len(k) > 32 {
		return false
	}
	for _, r := range k {
		if r > unicode.MaxASCII {
			return false
		}
	}
	return true
}

// Registry is the shared state of a directory server: the directory,
// the eviction tallies and the settings. All methods are safe for
// concurrent use and each one is atomic with respect to the others.
type Registry struct {
	mu       sync.Mutex
	dir      *Directory
	quorum   *Quorum
	settings Settings
}

// NewRegistry returns an empty registry configured with s.
func NewRegistry(s Settings) (*Registry, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &Registry{
		dir:      New(int(s.Capacity)),
		quorum:   NewQuorum(),
		settings: s,
	}, nil
}

// Settings returns a copy of the current settings.
func (r *Registry) Settings() Settings {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.settings
}

// Snapshot is a consistent view of the settings and the number of
// registered clients.
type Snapshot struct {
	Settings
	Clients int
}

// Snapshot returns the current settings together with the directory
// size, read under one lock.
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Snapshot{Settings: r.settings, Clients: r.dir.Len()}
}

// Authenticate reports whether secret is the current admin key, for
// admin requests, or the current client password.
func (r *Registry) Authenticate(role request.Role, secret string) bool {
	r.mu.Lock()
	want := r.settings.ClientPassword
	if role == request.RoleAdmin {
		want = r.settings.AdminKey
	}
	r.mu.Unlock()
	return secretsEqual(secret, want)
}

// secretsEqual compares fixed-size digests so neither the content nor
// the length of the expected secret leaks through timing.
func secretsEqual(got, want string) bool {
	a := blake2b.Sum256([]byte(got))
	b := blake2b.Sum256([]byte(want))
	return subtle.ConstantTimeCompare(a[:], b[:]) == 1
}

// Len returns the number of registered clients.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.Len()
}

// SignUp registers c, replacing any client with the same MAC.
func (r *Registry) SignUp(c Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, replacing := r.dir.ByMAC(c.MAC)
	if err := r.dir.Insert(c); err != nil {
		return err
	}
	// Votes against an address nobody holds any more must not count
	// against the next client to sign up there.
	if replacing && !r.dir.Has(old.IP) {
		r.quorum.Clear(old.IP)
	}
	return nil
}

// ByMAC looks up a client by hardware address.
func (r *Registry) ByMAC(mac net.HardwareAddr) (Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.ByMAC(mac)
}

// ByUsername returns one page of clients visible to username search.
func (r *Registry) ByUsername(name string, start int) []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.ByUsername(name, start, int(r.settings.ListSize))
}

// ByIndex returns one page of clients by insertion position.
func (r *Registry) ByIndex(start, end int) []Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir.ByIndex(start, end, int(r.settings.ListSize))
}

// AdminDrop removes every client at ip without a vote and discards the
// votes pending against ip. It returns the number of removed clients.
func (r *Registry) AdminDrop(ip net.IP) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := r.dir.Remove(ip)
	r.quorum.Clear(ip)
	return n
}

// ClientDrop counts voter's vote to evict the clients at target.
func (r *Registry) ClientDrop(target, voter net.IP) Outcome {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quorum.Vote(r.dir, target, voter, int(r.settings.DropVotes), r.settings.DropVerification)
}

// Tally returns the number of votes pending against target.
func (r *Registry) Tally(target net.IP) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quorum.Tally(target)
}

// SetCapacity changes the capacity; see Directory.SetCapacity.
func (r *Registry) SetCapacity(n uint16) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.dir.SetCapacity(int(n)); err != nil {
		return fmt.Errorf("%w: %d clients registered", err, r.dir.Len())
	}
	r.settings.Capacity = n
	return nil
}

// SetListSize changes the lookup page length.
func (r *Registry) SetListSize(n uint16) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.ListSize = n
}

// SetDropVotes changes the eviction quorum. Targets whose pending
// tally already meets the new quorum are evicted immediately and
// returned.
func (r *Registry) SetDropVotes(n uint8) ([]net.IP, error) {
	if n == 0 {
		return nil, ErrInvalidDropVotes
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.DropVotes = n
	return r.quorum.Reconcile(r.dir, int(n)), nil
}

// SetDropVerification turns quorum checking on or off. Pending tallies
// are kept.
func (r *Registry) SetDropVerification(on bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.DropVerification = on
}

// SetKey replaces the admin key.
func (r *Registry) SetKey(k string) error {
	if !ValidKey(k) {
		return ErrInvalidKey
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.AdminKey = k
	return nil
}

// SetPassword replaces the client password.
func (r *Registry) SetPassword(p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings.ClientPassword = p
}

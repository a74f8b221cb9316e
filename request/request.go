// Package request decodes the JSON documents sent by directory clients
// and administrators into typed requests.
//
// Decoding is all-or-nothing: Decode either returns exactly one of the
// request types below or an *Error, never a partially filled request.
package request

import (
	"net"
)

// Role says which shared secret authorizes a request.
type Role int

// Roles a request can be issued under.
const (
	RoleAdmin Role = iota
	RoleClient
)

func (r Role) String() string {
	switch r {
	case RoleAdmin:
		return "admin"
	case RoleClient:
		return "client"
	default:
		return "unknown"
	}
}

// A Request is one decoded directory request.
type Request interface {
	// Role is the role the request claims.
	Role() Role
	// Secret is the admin key or client password embedded in the
	// request.
	Secret() string
	// Name is a short description used in logs and metrics.
	Name() string
}

// Admin carries the admin key of an administrative request.
type Admin struct {
	Key string
}

func (Admin) Role() Role       { return RoleAdmin }
func (a Admin) Secret() string { return a.Key }

// Client carries the shared client password of a client request.
type Client struct {
	Password string
}

func (Client) Role() Role       { return RoleClient }
func (c Client) Secret() string { return c.Password }

// AdminGetByMAC looks up a single record by hardware address.
type AdminGetByMAC struct {
	Admin
	MAC net.HardwareAddr
}

// AdminGetByUsername pages through records visible to username search.
type AdminGetByUsername struct {
	Admin
	Username   string
	StartIndex int
}

// AdminGetByIndex returns records by absolute insertion position,
// including records hidden from username search. End is exclusive.
type AdminGetByIndex struct {
	Admin
	StartIndex int
	EndIndex   int
}

// AdminDrop removes every record registered at IP unconditionally.
type AdminDrop struct {
	Admin
	IP net.IP
}

// AdminSetCapacity changes the maximum number of records.
type AdminSetCapacity struct {
	Admin
	Capacity uint16
}

// AdminSetListSize changes the maximum page length of lookups.
type AdminSetListSize struct {
	Admin
	ListSize uint16
}

// AdminSetDropVotes changes the eviction quorum.
type AdminSetDropVotes struct {
	Admin
	DropVotes uint8
}

// AdminSetDropVerification turns quorum checking on or off.
type AdminSetDropVerification struct {
	Admin
	DropVerification bool
}

// AdminSetKey replaces the admin key.
type AdminSetKey struct {
	Admin
	NewKey string
}

// AdminSetPassword replaces the client password.
type AdminSetPassword struct {
	Admin
	NewPassword string
}

// ClientGetByMAC looks up a single record by hardware address.
type ClientGetByMAC struct {
	Client
	MAC net.HardwareAddr
}

// ClientGetByUsername pages through records visible to username search.
type ClientGetByUsername struct {
	Client
	Username   string
	StartIndex int
}

// ClientDrop is one vote to evict the record registered at IP.
type ClientDrop struct {
	Client
	IP net.IP
}

// ClientSignUp registers the sender. The record's IP is the peer
// address of the connection, not part of the request.
type ClientSignUp struct {
	Client
	Username     string
	MAC          net.HardwareAddr
	Port         uint16
	GetOnlyByMAC bool
}

func (AdminGetByMAC) Name() string            { return "admin get by mac" }
func (AdminGetByUsername) Name() string       { return "admin get by username" }
func (AdminGetByIndex) Name() string          { return "admin get by index" }
func (AdminDrop) Name() string                { return "admin drop" }
func (AdminSetCapacity) Name() string         { return "admin set capacity" }
func (AdminSetListSize) Name() string         { return "admin set list_size" }
func (AdminSetDropVotes) Name() string        { return "admin set drop_votes" }
func (AdminSetDropVerification) Name() string { return "admin set drop_verification" }
func (AdminSetKey) Name() string              { return "admin set key" }
func (AdminSetPassword) Name() string         { return "admin set password" }
func (ClientGetByMAC) Name() string           { return "client get by mac" }
func (ClientGetByUsername) Name() string      { return "client get by username" }
func (ClientDrop) Name() string               { return "client drop" }
func (ClientSignUp) Name() string             { return "client sign_up" }

package directory

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/metal-stack/clientdir/request"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() Settings {
	return Settings{
		AdminKey:         "admin-key",
		ClientPassword:   "client-pass",
		Capacity:         10,
		ListSize:         5,
		DropVotes:        3,
		DropVerification: true,
	}
}

func newTestRegistry(t *testing.T, mod func(*Settings)) *Registry {
	t.Helper()
	s := testSettings()
	if mod != nil {
		mod(&s)
	}
	r, err := NewRegistry(s)
	require.NoError(t, err)
	return r
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("k"))
	assert.True(t, ValidKey(strings.Repeat("a", 32)))
	assert.False(t, ValidKey(strings.Repeat("a", 33)))
	assert.False(t, ValidKey(""))
	assert.False(t, ValidKey("schlüssel"))
}

func TestNewRegistryValidates(t *testing.T) {
	s := testSettings()
	s.AdminKey = strings.Repeat("x", 40)
	_, err := NewRegistry(s)
	require.ErrorIs(t, err, ErrInvalidKey)

	s = testSettings()
	s.DropVotes = 0
	_, err = NewRegistry(s)
	require.ErrorIs(t, err, ErrInvalidDropVotes)
}

func TestRegistryQuorumScenario(t *testing.T) {
	r := newTestRegistry(t, nil)
	require.NoError(t, r.SignUp(client(5, "t", false)))
	target := mustIP("10.0.0.5")

	assert.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP("10.0.1.1")))
	assert.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP("10.0.1.2")))
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, OutcomeEvicted, r.ClientDrop(target, mustIP("10.0.1.3")))
	assert.Equal(t, 0, r.Len())
	assert.Equal(t, OutcomeAbsent, r.ClientDrop(target, mustIP("10.0.1.4")))
}

func TestRegistryVerificationBypass(t *testing.T) {
	r := newTestRegistry(t, func(s *Settings) { s.DropVerification = false })
	require.NoError(t, r.SignUp(client(5, "t", false)))
	assert.Equal(t, OutcomeEvicted, r.ClientDrop(mustIP("10.0.0.5"), mustIP("10.0.1.1")))
	assert.Equal(t, 0, r.Len())

	r.SetDropVerification(true)
	require.NoError(t, r.SignUp(client(5, "t", false)))
	assert.Equal(t, OutcomeRecorded, r.ClientDrop(mustIP("10.0.0.5"), mustIP("10.0.1.1")))
}

func TestRegistrySetDropVotesEvictsDuringSet(t *testing.T) {
	r := newTestRegistry(t, func(s *Settings) { s.DropVotes = 5 })
	require.NoError(t, r.SignUp(client(5, "t", false)))
	require.NoError(t, r.SignUp(client(6, "t", false)))
	target := mustIP("10.0.0.5")
	for _, voter := range []string{"10.0.1.1", "10.0.1.2"} {
		require.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP(voter)))
	}
	require.Equal(t, OutcomeRecorded, r.ClientDrop(mustIP("10.0.0.6"), mustIP("10.0.1.1")))

	evicted, err := r.SetDropVotes(3)
	require.NoError(t, err)
	assert.Empty(t, evicted)
	assert.Equal(t, 2, r.Len())

	evicted, err = r.SetDropVotes(2)
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, "10.0.0.5", evicted[0].String())
	assert.Equal(t, 1, r.Len())
	assert.Equal(t, 0, r.Tally(target))
	assert.Equal(t, uint8(2), r.Settings().DropVotes)

	_, err = r.SetDropVotes(0)
	require.ErrorIs(t, err, ErrInvalidDropVotes)
	assert.Equal(t, uint8(2), r.Settings().DropVotes)
}

func TestRegistryAdminDropClearsTally(t *testing.T) {
	r := newTestRegistry(t, nil)
	require.NoError(t, r.SignUp(client(5, "t", false)))
	target := mustIP("10.0.0.5")
	require.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP("10.0.1.1")))
	require.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP("10.0.1.2")))

	assert.Equal(t, 1, r.AdminDrop(target))
	assert.Equal(t, 0, r.Tally(target))
	assert.Equal(t, 0, r.AdminDrop(target))

	// A newcomer at the same address starts with a clean slate.
	require.NoError(t, r.SignUp(client(5, "t", false)))
	assert.Equal(t, OutcomeRecorded, r.ClientDrop(target, mustIP("10.0.1.3")))
	assert.Equal(t, 1, r.Tally(target))
}

func TestRegistryMoveClearsTally(t *testing.T) {
	r := newTestRegistry(t, nil)
	c := client(5, "t", false)
	require.NoError(t, r.SignUp(c))
	require.Equal(t, OutcomeRecorded, r.ClientDrop(c.IP, mustIP("10.0.1.1")))

	c.IP = mustIP("10.0.0.50")
	require.NoError(t, r.SignUp(c))
	assert.Equal(t, 0, r.Tally(mustIP("10.0.0.5")))
	assert.Equal(t, 1, r.Len())
}

func TestRegistryCapacity(t *testing.T) {
	r := newTestRegistry(t, func(s *Settings) { s.Capacity = 2 })
	require.NoError(t, r.SignUp(client(1, "a", false)))
	require.NoError(t, r.SignUp(client(2, "b", false)))
	require.ErrorIs(t, r.SignUp(client(3, "c", false)), ErrCapacityExceeded)

	err := r.SetCapacity(1)
	require.ErrorIs(t, err, ErrCapacityBelowSize)
	assert.Equal(t, uint16(2), r.Settings().Capacity)

	require.NoError(t, r.SetCapacity(3))
	assert.Equal(t, uint16(3), r.Settings().Capacity)
	require.NoError(t, r.SignUp(client(3, "c", false)))
}

func TestRegistryLookupsUseListSize(t *testing.T) {
	r := newTestRegistry(t, func(s *Settings) { s.ListSize = 2 })
	for i := 1; i <= 4; i++ {
		require.NoError(t, r.SignUp(client(i, "same", false)))
	}
	assert.Len(t, r.ByUsername("same", 0), 2)
	assert.Len(t, r.ByIndex(0, 4), 2)

	r.SetListSize(10)
	assert.Len(t, r.ByUsername("same", 0), 4)
	assert.Len(t, r.ByUsername("same", 3), 1)
	assert.Len(t, r.ByIndex(0, 4), 4)
}

func TestRegistrySecrets(t *testing.T) {
	r := newTestRegistry(t, nil)
	require.ErrorIs(t, r.SetKey(strings.Repeat("k", 33)), ErrInvalidKey)
	assert.Equal(t, "admin-key", r.Settings().AdminKey)

	require.NoError(t, r.SetKey("new-key"))
	r.SetPassword("new-pass")
	s := r.Settings()
	assert.Equal(t, "new-key", s.AdminKey)
	assert.Equal(t, "new-pass", s.ClientPassword)
}

func TestRegistryAuthenticate(t *testing.T) {
	r := newTestRegistry(t, nil)
	assert.True(t, r.Authenticate(request.RoleAdmin, "admin-key"))
	assert.False(t, r.Authenticate(request.RoleAdmin, "client-pass"))
	assert.True(t, r.Authenticate(request.RoleClient, "client-pass"))
	assert.False(t, r.Authenticate(request.RoleClient, "admin-key"))
	assert.False(t, r.Authenticate(request.RoleClient, "client-pass "))

	r.SetPassword("rotated")
	assert.False(t, r.Authenticate(request.RoleClient, "client-pass"))
	assert.True(t, r.Authenticate(request.RoleClient, "rotated"))
}

func TestSecretsEqual(t *testing.T) {
	assert.True(t, secretsEqual("abc", "abc"))
	assert.False(t, secretsEqual("abc", "abd"))
	assert.False(t, secretsEqual("abc", "abcd"))
	assert.True(t, secretsEqual("", ""))
}

func TestRegistrySnapshot(t *testing.T) {
	r := newTestRegistry(t, nil)
	require.NoError(t, r.SignUp(client(1, "alice", false)))
	require.NoError(t, r.SignUp(client(2, "bob", true)))

	snap := r.Snapshot()
	assert.Equal(t, 2, snap.Clients)
	assert.Equal(t, testSettings(), snap.Settings)
}

func TestRegistryConcurrentSignUps(t *testing.T) {
	r := newTestRegistry(t, func(s *Settings) { s.Capacity = 50 })

	var wg sync.WaitGroup
	var mu sync.Mutex
	accepted := 0
	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := client(i%250, fmt.Sprintf("u%d", i), false)
			if r.SignUp(c) == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, r.Len())
	assert.GreaterOrEqual(t, accepted, 50)
}

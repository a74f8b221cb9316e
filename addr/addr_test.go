package addr

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMAC(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "aa:bb:cc:dd:ee:ff", want: "aa:bb:cc:dd:ee:ff"},
		{in: "AA-BB-CC-DD-EE-01", want: "aa:bb:cc:dd:ee:01"},
		{in: "aabb.ccdd.eeff", want: "aa:bb:cc:dd:ee:ff"},
		{in: "00:00:00:00:fe:80:00:00:00:00:00:00:02:00:5e:10:00:00:00:01", wantErr: true},
		{in: "aa:bb:cc", wantErr: true},
		{in: "", wantErr: true},
		{in: "not a mac", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			mac, err := ParseMAC(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mac.String())
		})
	}
}

func TestParseIPv4(t *testing.T) {
	ip, err := ParseIPv4("10.0.0.5")
	require.NoError(t, err)
	assert.Len(t, ip, net.IPv4len)
	assert.Equal(t, "10.0.0.5", ip.String())

	for _, bad := range []string{"", "10.0.0", "10.0.0.256", "::1", "::ffff:10.0.0.5", "fe80::1", "host.example"} {
		_, err := ParseIPv4(bad)
		assert.Error(t, err, bad)
	}
}

func TestPeerIPv4(t *testing.T) {
	ip, ok := PeerIPv4(&net.TCPAddr{IP: net.ParseIP("192.168.1.7"), Port: 4000})
	require.True(t, ok)
	assert.Equal(t, "192.168.1.7", ip.String())

	_, ok = PeerIPv4(&net.TCPAddr{IP: net.ParseIP("2001:db8::1"), Port: 4000})
	assert.False(t, ok)

	_, ok = PeerIPv4(&net.UnixAddr{Name: "/tmp/sock", Net: "unix"})
	assert.False(t, ok)
}

func TestKey(t *testing.T) {
	assert.Equal(t, Key(net.ParseIP("10.0.0.5")), Key(net.IPv4(10, 0, 0, 5).To4()))
}

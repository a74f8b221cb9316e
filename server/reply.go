package server

import (
	"encoding/json"
	"net"

	"github.com/metal-stack/clientdir/directory"
)

// Fixed replies for requests that never reach the directory.
const (
	ReplyNotUnderstood = "I don't understand you"
	ReplyIPv4Only      = "Only IPv4 is supported"
)

type clientView struct {
	MAC          string `json:"mac"`
	Username     string `json:"username"`
	IP           string `json:"ip"`
	Port         uint16 `json:"port"`
	GetOnlyByMAC bool   `json:"get_only_by_mac"`
}

func viewOf(c directory.Client) clientView {
	return clientView{
		MAC:          c.MAC.String(),
		Username:     c.Username,
		IP:           c.IP.String(),
		Port:         c.Port,
		GetOnlyByMAC: c.GetOnlyByMAC,
	}
}

func viewsOf(cs []directory.Client) []clientView {
	ret := make([]clientView, 0, len(cs))
	for _, c := range cs {
		ret = append(ret, viewOf(c))
	}
	return ret
}

func ipStrings(ips []net.IP) []string {
	ret := make([]string, 0, len(ips))
	for _, ip := range ips {
		ret = append(ret, ip.String())
	}
	return ret
}

// reply is the JSON document sent back for every authorized request.
type reply map[string]interface{}

func okReply() reply {
	return reply{"ok": true}
}

func errReply(err error) reply {
	return reply{"ok": false, "error": err.Error()}
}

func (r reply) with(key string, v interface{}) reply {
	r[key] = v
	return r
}

func (r reply) bytes() []byte {
	b, err := json.Marshal(r)
	if err != nil {
		return []byte(`{"ok":false,"error":"internal error"}`)
	}
	return b
}

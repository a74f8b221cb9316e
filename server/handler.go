package server

import (
	"fmt"
	"net"

	"github.com/metal-stack/clientdir/directory"
	"github.com/metal-stack/clientdir/request"
	"go.uber.org/zap"
)

// Result labels for the request counter.
const (
	resultOK            = "ok"
	resultRejected      = "rejected"
	resultNotUnderstood = "not_understood"
	resultIPv4Only      = "ipv4_only"
	resultDenied        = "denied"
)

// Handle processes one request payload received from peer. It returns
// the reply to write and whether anything should be written at all: a
// request with a wrong secret gets no reply.
func (s *Server) Handle(peer net.Addr, payload []byte) ([]byte, bool) {
	return s.handle(s.logger().With("peer", peer.String()), peer, payload)
}

func (s *Server) handle(log *zap.SugaredLogger, peer net.Addr, payload []byte) ([]byte, bool) {
	req, err := request.Decode(payload)
	if err != nil {
		log.Infof("didn't understand the request: %s", err)
		s.Metrics.request("unknown", resultNotUnderstood)
		return []byte(ReplyNotUnderstood), true
	}

	peerIP, v := s.authorize(req, peer)
	switch v {
	case verdictIPv4Only:
		if req.Role() == request.RoleAdmin && peerIP != nil {
			log.Warnf("remote host tried to administer the server (%s)", req.Name())
		} else {
			log.Infof("%s from non-IPv4 peer", req.Name())
		}
		s.Metrics.request(req.Name(), resultIPv4Only)
		return []byte(ReplyIPv4Only), true
	case verdictDenied:
		log.Infof("%s with wrong %s secret", req.Name(), req.Role())
		s.Metrics.request(req.Name(), resultDenied)
		return nil, false
	}

	rep := s.dispatch(log, req, peerIP)
	result := resultOK
	if ok, _ := rep["ok"].(bool); !ok {
		result = resultRejected
	}
	s.Metrics.request(req.Name(), result)
	log.Debugf("%s: %s", req.Name(), result)
	return rep.bytes(), true
}

// dispatch runs exactly one registry operation for an authorized
// request.
func (s *Server) dispatch(log *zap.SugaredLogger, req request.Request, peerIP net.IP) reply {
	reg := s.Registry
	switch r := req.(type) {
	case request.AdminGetByMAC:
		return lookupReply(reg.ByMAC(r.MAC))
	case request.ClientGetByMAC:
		return lookupReply(reg.ByMAC(r.MAC))
	case request.AdminGetByUsername:
		return okReply().with("clients", viewsOf(reg.ByUsername(r.Username, r.StartIndex)))
	case request.ClientGetByUsername:
		return okReply().with("clients", viewsOf(reg.ByUsername(r.Username, r.StartIndex)))
	case request.AdminGetByIndex:
		return okReply().with("clients", viewsOf(reg.ByIndex(r.StartIndex, r.EndIndex)))

	case request.AdminDrop:
		n := reg.AdminDrop(r.IP)
		if n > 0 {
			s.Metrics.evicted("admin", 1)
		}
		log.Infof("admin dropped %d client(s) at %s", n, r.IP)
		return okReply().with("removed", n)
	case request.ClientDrop:
		outcome := reg.ClientDrop(r.IP, peerIP)
		if outcome == directory.OutcomeEvicted {
			s.Metrics.evicted("vote", 1)
			log.Infof("clients at %s evicted by vote", r.IP)
		}
		return okReply().with("outcome", outcome.String()).with("votes", reg.Tally(r.IP))
	case request.ClientSignUp:
		err := reg.SignUp(directory.Client{
			MAC:          r.MAC,
			Username:     r.Username,
			IP:           peerIP,
			Port:         r.Port,
			GetOnlyByMAC: r.GetOnlyByMAC,
		})
		if err != nil {
			return errReply(err)
		}
		return okReply()

	case request.AdminSetCapacity:
		if err := reg.SetCapacity(r.Capacity); err != nil {
			return errReply(err)
		}
		return okReply().with("capacity", r.Capacity)
	case request.AdminSetListSize:
		reg.SetListSize(r.ListSize)
		return okReply().with("list_size", r.ListSize)
	case request.AdminSetDropVotes:
		evicted, err := reg.SetDropVotes(r.DropVotes)
		if err != nil {
			return errReply(err)
		}
		s.Metrics.evicted("threshold", len(evicted))
		if len(evicted) > 0 {
			log.Infof("lowering drop votes to %d evicted %v", r.DropVotes, evicted)
		}
		return okReply().with("drop_votes", r.DropVotes).with("evicted", ipStrings(evicted))
	case request.AdminSetDropVerification:
		reg.SetDropVerification(r.DropVerification)
		return okReply().with("drop_verification", r.DropVerification)
	case request.AdminSetKey:
		if err := reg.SetKey(r.NewKey); err != nil {
			return errReply(err)
		}
		log.Infof("admin key changed")
		return okReply()
	case request.AdminSetPassword:
		reg.SetPassword(r.NewPassword)
		log.Infof("client password changed")
		return okReply()
	}
	return errReply(fmt.Errorf("unsupported request %s", req.Name()))
}

func lookupReply(c directory.Client, found bool) reply {
	if !found {
		return okReply().with("found", false)
	}
	return okReply().with("found", true).with("client", viewOf(c))
}

package directory

import (
	"bytes"
	"net"
	"sort"

	"github.com/metal-stack/clientdir/addr"
)

// Outcome is the result of one eviction vote.
type Outcome int

const (
	// OutcomeAbsent means nothing is registered at the target; the
	// vote was not recorded.
	OutcomeAbsent Outcome = iota
	// OutcomeRecorded means the vote was counted and the target stays.
	OutcomeRecorded
	// OutcomeDuplicate means the voter had already voted for the
	// target.
	OutcomeDuplicate
	// OutcomeEvicted means this vote removed the target.
	OutcomeEvicted
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAbsent:
		return "absent"
	case OutcomeRecorded:
		return "recorded"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeEvicted:
		return "evicted"
	default:
		return "unknown"
	}
}

type evictor interface {
	Has(ip net.IP) bool
	Remove(ip net.IP) int
}

// Quorum tallies distinct voters per target IP.
type Quorum struct {
	votes   map[string]map[string]struct{}
	targets map[string]net.IP
}

// NewQuorum returns a tracker with no tallies.
func NewQuorum() *Quorum {
	return &Quorum{
		votes:   make(map[string]map[string]struct{}),
		targets: make(map[string]net.IP),
	}
}

// Vote records voter's vote to evict target from d. With verification
// off the target is evicted at once; otherwise it is evicted when
// threshold distinct voters have voted. A target's tally is discarded
// when it is evicted.
func (q *Quorum) Vote(d evictor, target, voter net.IP, threshold int, verification bool) Outcome {
	if !d.Has(target) {
		q.Clear(target)
		return OutcomeAbsent
	}
	if !verification {
		d.Remove(target)
		q.Clear(target)
		return OutcomeEvicted
	}

	key := addr.Key(target)
	voters := q.votes[key]
	if voters == nil {
		voters = make(map[string]struct{})
		q.votes[key] = voters
		q.targets[key] = target
	}
	if _, ok := voters[addr.Key(voter)]; ok {
		return OutcomeDuplicate
	}
	voters[addr.Key(voter)] = struct{}{}

	if len(voters) >= threshold {
		d.Remove(target)
		q.Clear(target)
		return OutcomeEvicted
	}
	return OutcomeRecorded
}

// Tally returns the number of distinct votes pending against target.
func (q *Quorum) Tally(target net.IP) int {
	return len(q.votes[addr.Key(target)])
}

// Clear discards every vote against target.
func (q *Quorum) Clear(target net.IP) {
	key := addr.Key(target)
	delete(q.votes, key)
	delete(q.targets, key)
}

// Reconcile evicts from d every target whose tally already meets
// threshold, and returns the evicted targets in address order.
func (q *Quorum) Reconcile(d evictor, threshold int) []net.IP {
	var met, evicted []net.IP
	for key, voters := range q.votes {
		if len(voters) < threshold {
			continue
		}
		target := q.targets[key]
		met = append(met, target)
		if d.Remove(target) > 0 {
			evicted = append(evicted, target)
		}
	}
	for _, target := range met {
		q.Clear(target)
	}
	sort.Slice(evicted, func(i, j int) bool {
		return bytes.Compare(evicted[i], evicted[j]) < 0
	})
	return evicted
}

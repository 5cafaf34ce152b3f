package ice

import (
	"fmt"
	"net"
	"time"
)

// PairState is the connectivity-check lifecycle state of a CandidatePair.
type PairState int

const (
	Waiting PairState = iota
	InProgress
	Succeeded
	Failed
)

func (s PairState) String() string {
	switch s {
	case Waiting:
		return "waiting"
	case InProgress:
		return "in-progress"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	default:
		return "state?"
	}
}

// CandidatePair is an ordered (local, remote) pairing tried by a
// connectivity check. See package doc for the sans-I/O event model these
// are driven through.
type CandidatePair struct {
	Local, Remote candidateID
	Component     Component
	Foundation    string
	Priority      uint64
	State         PairState

	// ReceivedUseCandidate records that the peer nominated this pair
	// (controlled side). Nominated records that this agent itself
	// committed to this pair, either by sending USE-CANDIDATE
	// (controlling) or by observing ReceivedUseCandidate on a succeeded
	// pair (controlled).
	ReceivedUseCandidate bool
	Nominated            bool

	// The following fields are only meaningful while State ==
	// InProgress, tracking the single outstanding STUN transaction.
	txID            [12]byte
	request         []byte
	nextRetransmit  time.Time
	retransmits     int
	sourceAddr      net.Addr // local socket the request was sent from
	targetAddr      net.Addr // remote address the request was sent to
}

func (p *CandidatePair) String() string {
	return fmt.Sprintf("pair{local=%d remote=%d comp=%d prio=%d state=%s nom=%v}",
		p.Local, p.Remote, p.Component, p.Priority, p.State, p.Nominated)
}

// pairPriority implements RFC 8445 16's 64-bit combining formula. G is
// the controlling side's candidate priority, D the controlled side's;
// unlike the teacher's version (which always treated remote as G), this
// explicitly takes the controlling flag so recomputePairPriorities can
// re-derive every pair correctly after a role switch.
func pairPriority(localPriority, remotePriority uint32, controlling bool) uint64 {
	var g, d uint64
	if controlling {
		g, d = uint64(localPriority), uint64(remotePriority)
	} else {
		g, d = uint64(remotePriority), uint64(localPriority)
	}
	lo, hi := g, d
	if lo > hi {
		lo, hi = hi, lo
	}
	var b uint64
	if g > d {
		b = 1
	}
	return lo<<32 + hi<<1 + b
}

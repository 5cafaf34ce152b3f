package ice

import "net"

// Event is implemented by every value the Agent hands to an OnEvent
// callback from AddHostAddr, Receive or Poll.
type Event interface {
	isEvent()
}

// OnEvent receives zero or more Events synchronously, in the order the
// Agent produced them, before the call that produced them returns.
type OnEvent func(Event)

// SendData instructs the caller to transmit raw bytes to Target. Source
// is the local address the Agent wants the packet to originate from, if
// it matters (nil lets the caller pick, e.g. for STUN server queries
// before any socket is bound to a specific local candidate). The Agent
// never owns a socket itself; this is how all outbound STUN traffic
// leaves sans-I/O.
type SendData struct {
	Component Component
	Source    net.Addr
	Target    net.Addr
	Data      []byte
}

func (SendData) isEvent() {}

// GatheringStateChanged reports a transition of GatheringState.
type GatheringStateChanged struct {
	State GatheringState
}

func (GatheringStateChanged) isEvent() {}

// ConnectionStateChanged reports a transition of ConnectionState.
type ConnectionStateChanged struct {
	State ConnectionState
}

func (ConnectionStateChanged) isEvent() {}

// CandidateDiscovered reports a new local candidate, including
// server-reflexive candidates discovered after gathering begins. The
// caller is expected to forward it to the remote peer out of band.
type CandidateDiscovered struct {
	Component Component
	Candidate Candidate
}

func (CandidateDiscovered) isEvent() {}

// UseAddr reports that a component now has a nominated, succeeded pair
// and application data for it should be sent to Target.
type UseAddr struct {
	Component Component
	Target    net.Addr
}

func (UseAddr) isEvent() {}

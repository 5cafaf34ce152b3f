// Package ice implements a sans-I/O ICE (Interactive Connectivity
// Establishment) agent: it gathers candidate transport addresses, pairs
// them, runs STUN connectivity checks, and nominates a working candidate
// pair per data-stream component ([RFC 8445]).
//
// The Agent performs no network I/O. It is driven entirely by the caller
// through Receive, Poll and Timeout, and reports outbound packets and
// state transitions through the events passed to OnEvent. Socket
// ownership and timers are the caller's responsibility: the Agent keeps
// its own pacing and retransmission deadlines and reports the next one
// through Timeout, and the caller calls Poll when it is due; see
// cmd/ice-probe for a complete caller-side loop.
//
// Only host, peer-reflexive and server-reflexive UDP/IPv4/IPv6 candidates
// are supported. TURN relay allocation and trickle-ICE restart are not
// implemented.
//
// [RFC 8445]: https://tools.ietf.org/html/rfc8445
package ice

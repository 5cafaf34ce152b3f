package ice

import (
	"bufio"
	"fmt"
	"hash/fnv"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// CandidateKind classifies how a Candidate's address was discovered.
// Relayed (TURN) candidates are not supported; see package doc.
type CandidateKind int

const (
	Host CandidateKind = iota
	PeerReflexive
	ServerReflexive
)

func (k CandidateKind) String() string {
	switch k {
	case Host:
		return "host"
	case PeerReflexive:
		return "prflx"
	case ServerReflexive:
		return "srflx"
	default:
		return "kind?"
	}
}

// typePreference values from RFC 8445 5.1.2.1.
func (k CandidateKind) typePreference() uint32 {
	switch k {
	case Host:
		return 126
	case PeerReflexive:
		return 110
	case ServerReflexive:
		return 100
	default:
		panic("ice: unknown candidate kind")
	}
}

// kindOffset spaces each kind's local-preference range so that any Host
// candidate outranks any PeerReflexive candidate, which outranks any
// ServerReflexive one, regardless of discovery order within a kind.
func (k CandidateKind) kindOffset() uint32 {
	switch k {
	case Host:
		return 3 * 16383
	case PeerReflexive:
		return 2 * 16383
	case ServerReflexive:
		return 16383
	default:
		panic("ice: unknown candidate kind")
	}
}

// Candidate is a transport address an agent is willing to use, local or
// remote. Candidates are referenced elsewhere (by CandidatePair) through
// the small integer ID returned when they're added to a candidateTable,
// never by pointer, so the table can be mutated freely without aliasing.
type Candidate struct {
	Addr       net.Addr
	Base       net.Addr
	Kind       CandidateKind
	Priority   uint32
	Foundation string
	Component  Component

	// RelAddr/RelPort are carried on the wire for server-reflexive and
	// peer-reflexive candidates for interop with SDP parsers that
	// require raddr/rport, but are otherwise unused locally.
	RelAddr net.IP
	RelPort int
}

// peerPriority is the PRIORITY value this agent advertises in an
// outgoing Binding Request: what its priority would be if the peer
// adopted this candidate as peer-reflexive. It does not depend on the
// candidate's actual kind.
func (c Candidate) peerPriority() uint32 {
	localPref := PeerReflexive.kindOffset()
	return computePriority(PeerReflexive, localPref, c.Component)
}

func (c Candidate) String() string {
	host, portStr, _ := net.SplitHostPort(c.Addr.String())
	s := fmt.Sprintf("candidate:%s %d udp %d %s %s typ %s",
		c.Foundation, c.Component, c.Priority, host, portStr, c.Kind)
	if c.RelAddr != nil {
		s += fmt.Sprintf(" raddr %s rport %d", c.RelAddr, c.RelPort)
	}
	return s
}

// candidateID is an opaque handle into a candidateTable.
type candidateID int

// candidateTable is a slot map: an ID is the index of its slot, and slots
// are never reused. Removing a candidate clears its slot (SetRemoteData
// does this for Rtcp locals), so a stale ID simply misses on lookup
// instead of aliasing a different candidate.
type candidateTable struct {
	slots []*Candidate
	next  candidateID
}

func (t *candidateTable) add(c Candidate) candidateID {
	id := t.next
	t.next++
	t.slots = append(t.slots, &c)
	return id
}

func (t *candidateTable) get(id candidateID) (*Candidate, bool) {
	i := int(id)
	if i < 0 || i >= len(t.slots) || t.slots[i] == nil {
		return nil, false
	}
	return t.slots[i], true
}

func (t *candidateTable) all() []candidateID {
	ids := make([]candidateID, 0, len(t.slots))
	for i, s := range t.slots {
		if s != nil {
			ids = append(ids, candidateID(i))
		}
	}
	return ids
}

// countByKind returns how many candidates of kind k already occupy the
// table for the given component, used to assign local_pref to the next
// candidate of that kind.
func (t *candidateTable) countByKind(k CandidateKind, comp Component) int {
	n := 0
	for _, s := range t.slots {
		if s != nil && s.Kind == k && s.Component == comp {
			n++
		}
	}
	return n
}

// computePriority implements RFC 8445 5.1.2.1's formula, generalized (per
// the spec this agent follows) to a live per-kind count rather than a
// fixed local preference, so multiple host addresses or STUN servers are
// ranked deterministically in discovery order.
func computePriority(kind CandidateKind, localPref uint32, component Component) uint32 {
	return (kind.typePreference() << 24) | (localPref << 8) | (256 - uint32(component))
}

// computeFoundation implements RFC 8445 5.1.1.3: identical for candidates
// sharing (kind, base IP, rel_addr, protocol). Protocol is always udp in
// this agent. Hashed with fnv64a and rendered as a decimal string rather than
// base32 since nothing downstream parses it as anything but an opaque
// equality token.
func computeFoundation(kind CandidateKind, base net.Addr, relAddr string) string {
	host, _, _ := net.SplitHostPort(base.String())
	s := fmt.Sprintf("%s/%s/%s/udp", kind, host, relAddr)
	h := fnv.New64a()
	h.Write([]byte(s))
	return fmt.Sprintf("%d", h.Sum64())
}

// peerReflexiveFoundation is the "~" placeholder foundation this agent
// assigns to peer-reflexive candidates: remote ones learned from an
// incoming check's source address, and local ones learned from a
// success response's XOR-MAPPED-ADDRESS.
const peerReflexiveFoundation = "~"

// ParseCandidateSDP parses an SDP a=candidate attribute value (the
// leading "a=" is optional; the "candidate:" prefix is required) of the
// form:
//
//	candidate:{foundation} {component} {transport} {priority} {address} {port} typ {type} ...
//
// Only udp transport and host/srflx/prflx types are accepted; anything
// else returns an error wrapping ErrMalformedCandidate.
func ParseCandidateSDP(line string) (Candidate, error) {
	var c Candidate
	line = strings.TrimPrefix(line, "a=")
	r := strings.NewReader(line)

	var foundation, transport, address, typ string
	var component, priority, port int
	n, err := fmt.Fscanf(r, "candidate:%s %d %s %d %s %d typ %s",
		&foundation, &component, &transport, &priority, &address, &port, &typ)
	if err != nil || n != 7 {
		return c, errors.Wrapf(ErrMalformedCandidate, "%q: %v", line, err)
	}
	if strings.ToLower(transport) != "udp" {
		return c, errors.Wrapf(ErrMalformedCandidate, "%q: non-udp transport %q", line, transport)
	}
	if component != 1 && component != 2 {
		return c, errors.Wrapf(ErrMalformedCandidate, "%q: component out of range", line)
	}

	ip := net.ParseIP(strings.Trim(address, "[]"))
	if ip == nil {
		if addrs, err := net.LookupIP(address); err == nil && len(addrs) > 0 {
			ip = addrs[0]
		} else {
			return c, errors.Wrapf(ErrMalformedCandidate, "%q: bad address %q", line, address)
		}
	}
	addr := &net.UDPAddr{IP: ip, Port: port}

	switch typ {
	case "host":
		c.Kind = Host
	case "srflx":
		c.Kind = ServerReflexive
	case "prflx":
		c.Kind = PeerReflexive
	default:
		return c, errors.Wrapf(ErrMalformedCandidate, "%q: unsupported type %q", line, typ)
	}

	c.Addr = addr
	c.Base = addr
	c.Priority = uint32(priority)
	c.Foundation = foundation
	c.Component = Component(component)

	scanner := bufio.NewScanner(r)
	scanner.Split(bufio.ScanWords)
	var name string
	for scanner.Scan() {
		if name == "" {
			name = scanner.Text()
			continue
		}
		value := scanner.Text()
		switch name {
		case "raddr":
			c.RelAddr = net.ParseIP(value)
		case "rport":
			c.RelPort, _ = strconv.Atoi(value)
		}
		name = ""
	}

	return c, nil
}

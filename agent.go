package ice

import (
	"crypto/rand"
	"net"
	"time"

	"github.com/pkg/errors"
)

// Agent composes the STUN codec, server bindings, candidate tables and
// checklist into one sans-I/O ICE state machine. It is the rewrite of
// the teacher's internal/ice.Agent (agent.go) with socket ownership,
// goroutines and channels stripped out: every method here is synchronous
// and returns only after emitting whatever events it produced through
// onEvent.
type Agent struct {
	localCreds  Credentials
	remoteCreds Credentials
	haveRemote  bool

	isControlling bool
	tieBreaker    uint64
	rtcpMux       bool

	gatheringState  GatheringState
	connectionState ConnectionState

	locals  candidateTable
	remotes candidateTable
	cl      *checklist

	bindings []*serverBinding
	stunAddr []net.Addr // configured STUN server addresses, appended via AddSTUNServer

	cfg RetransmitConfig

	hasLastTa     bool
	lastTaTrigger time.Time
}

// NewAgentForOffer constructs an agent before any SDP answer has been
// received: only local credentials and role are known.
func NewAgentForOffer(isControlling, rtcpMux bool) *Agent {
	return newAgent(newCredentials(), Credentials{}, false, isControlling, rtcpMux)
}

// NewAgentFromAnswer constructs an agent once the remote offer/answer
// exchange has completed and remote credentials are known.
func NewAgentFromAnswer(localCreds, remoteCreds Credentials, isControlling, rtcpMux bool) *Agent {
	return newAgent(localCreds, remoteCreds, true, isControlling, rtcpMux)
}

func newAgent(localCreds, remoteCreds Credentials, haveRemote, isControlling, rtcpMux bool) *Agent {
	cfg := DefaultRetransmitConfig()
	a := &Agent{
		localCreds:    localCreds,
		remoteCreds:   remoteCreds,
		haveRemote:    haveRemote,
		isControlling: isControlling,
		tieBreaker:    randomTieBreaker(),
		rtcpMux:       rtcpMux,
		cl:            newChecklist(cfg.MaxPairs),
		cfg:           cfg,
	}
	return a
}

func randomTieBreaker() uint64 {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		panic(err)
	}
	var v uint64
	for _, x := range b {
		v = v<<8 | uint64(x)
	}
	return v
}

// requiredComponents returns the components this agent must nominate
// before it can report Connected: Rtp always, Rtcp unless rtcp-mux.
func (a *Agent) requiredComponents() []Component {
	if a.rtcpMux {
		return []Component{ComponentRTP}
	}
	return []Component{ComponentRTP, ComponentRTCP}
}

// ---- Inputs -----------------------------------------------------------

// AddHostAddr registers a local host candidate for component at addr,
// filtering loopback, unspecified and IPv4-compatible IPv6 addresses
// (see isIPv4MappedOrCompat for how v4-mapped addresses are treated).
func (a *Agent) AddHostAddr(onEvent OnEvent, component Component, addr net.Addr) {
	ip, _ := addrIPPort(addr)
	if ip == nil || ip.IsLoopback() || ip.IsUnspecified() {
		return
	}
	if isIPv4MappedOrCompat(ip) {
		return
	}
	if a.localExists(Host, addr, addr) {
		return
	}
	localPref := Host.kindOffset() + uint32(a.locals.countByKind(Host, component))
	c := Candidate{
		Addr:       addr,
		Base:       addr,
		Kind:       Host,
		Priority:   computePriority(Host, localPref, component),
		Foundation: computeFoundation(Host, addr, ""),
		Component:  component,
	}
	a.locals.add(c)
	onEvent(CandidateDiscovered{Component: component, Candidate: c})
	a.formPairsAndAnnounce()
}

// isIPv4MappedOrCompat rejects IPv6 addresses whose first 80 bits are
// zero and which net.IP does not treat as IPv4, such as the deprecated
// v4-compatible form ::a.b.c.d. It does not reject v4-mapped addresses
// (::ffff:a.b.c.d): net.IP stores plain IPv4 addresses in that same
// form, so To4 reports them as IPv4 and they are accepted as IPv4.
func isIPv4MappedOrCompat(ip net.IP) bool {
	ip16 := ip.To16()
	if ip16 == nil || ip.To4() != nil {
		return false
	}
	for i := 0; i < 10; i++ {
		if ip16[i] != 0 {
			return false
		}
	}
	// ::a.b.c.d / ::0.0.0.x (v4-compatible) and other ::/80 addresses.
	return true
}

func (a *Agent) localExists(kind CandidateKind, base, addr net.Addr) bool {
	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		if c.Kind == kind && sameAddr(c.Base, base) && sameAddr(c.Addr, addr) {
			return true
		}
	}
	return false
}

func (a *Agent) remoteExists(addr net.Addr, component Component) bool {
	for _, id := range a.remotes.all() {
		c, _ := a.remotes.get(id)
		if c.Component == component && sameAddr(c.Addr, addr) {
			return true
		}
	}
	return false
}

func sameAddr(a, b net.Addr) bool {
	if a == nil || b == nil {
		return a == b
	}
	aIP, aPort := addrIPPort(a)
	bIP, bPort := addrIPPort(b)
	return aIP.Equal(bIP) && aPort == bPort
}

// AddSTUNServer appends a STUN server binding for discovering a
// server-reflexive candidate, one per required component unless
// rtcp-mux is set (in which case only Rtp is queried). A component
// gets a binding only if it already has a host address; components
// added later are not queried.
func (a *Agent) AddSTUNServer(now time.Time, serverAddr net.Addr) {
	a.stunAddr = append(a.stunAddr, serverAddr)
	for _, comp := range a.requiredComponents() {
		local := a.firstHostAddr(comp)
		if local == nil {
			continue
		}
		a.bindings = append(a.bindings, newServerBinding(serverAddr, local, comp, now))
	}
	if a.gatheringState == GatheringNew {
		a.gatheringState = GatheringInProgress
	}
}

func (a *Agent) firstHostAddr(comp Component) net.Addr {
	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		if c.Kind == Host && c.Component == comp {
			return c.Addr
		}
	}
	return nil
}

// AddRemoteCandidate implements add_remote_candidate (§6): only host and
// srflx types are accepted, non-udp ignored (ParseCandidateSDP already
// enforces that), and component 2 is ignored under rtcp-mux. It returns
// ErrUnknownComponent if c names a Component this agent doesn't
// recognize; callers that already produced c via ParseCandidateSDP will
// never see this, since that parser rejects out-of-range components
// itself.
func (a *Agent) AddRemoteCandidate(onEvent OnEvent, c Candidate) error {
	if c.Component != ComponentRTP && c.Component != ComponentRTCP {
		return errors.Wrapf(ErrUnknownComponent, "component %d", c.Component)
	}
	if c.Kind != Host && c.Kind != ServerReflexive {
		return nil
	}
	if a.rtcpMux && c.Component == ComponentRTCP {
		return nil
	}
	if a.remoteExists(c.Addr, c.Component) {
		return nil
	}
	a.remotes.add(c)
	a.formPairsAndAnnounce()
	return nil
}

// SetRemoteData applies the remote offer/answer atomically: credentials,
// the initial set of remote candidates, and rtcp-mux. If rtcp-mux flips
// to true, Rtcp-component local candidates and server bindings are
// dropped. It returns ErrBadCredentials if remoteCreds is incomplete, or
// a wrapped ErrUnknownComponent from the first candidate that names an
// unrecognized Component; candidates after the failing one are not
// applied.
func (a *Agent) SetRemoteData(remoteCreds Credentials, candidates []Candidate, rtcpMux bool) error {
	if remoteCreds.Ufrag == "" || remoteCreds.Pwd == "" {
		return ErrBadCredentials
	}

	a.remoteCreds = remoteCreds
	a.haveRemote = true

	if rtcpMux && !a.rtcpMux {
		for _, id := range a.locals.all() {
			c, _ := a.locals.get(id)
			if c.Component == ComponentRTCP {
				a.locals.slots[id] = nil
			}
		}
		var bindings []*serverBinding
		for _, b := range a.bindings {
			if b.component != ComponentRTCP {
				bindings = append(bindings, b)
			}
		}
		a.bindings = bindings
	}
	a.rtcpMux = rtcpMux

	for _, c := range candidates {
		if err := a.AddRemoteCandidate(func(Event) {}, c); err != nil {
			return err
		}
	}
	return nil
}

// Credentials returns this agent's local credentials.
func (a *Agent) Credentials() Credentials { return a.localCreds }

// GatheringState returns the current gathering state.
func (a *Agent) GatheringState() GatheringState { return a.gatheringState }

// ConnectionState returns the current connection state.
func (a *Agent) ConnectionState() ConnectionState { return a.connectionState }

// DiscoveredAddr returns the server-reflexive address discovered for
// component, per serverBinding's discovered_addr() (§4.2). It reports
// ok=false until some STUN server binding for that component has
// completed successfully.
func (a *Agent) DiscoveredAddr(component Component) (addr net.Addr, ok bool) {
	for _, b := range a.bindings {
		if b.component != component {
			continue
		}
		if addr := b.discoveredAddrOrNil(); addr != nil {
			return addr, true
		}
	}
	return nil, false
}

// ICECandidates returns host and server-reflexive local candidates
// (peer-reflexive excluded), per §6.
func (a *Agent) ICECandidates() []Candidate {
	var out []Candidate
	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		if c.Kind == Host || c.Kind == ServerReflexive {
			out = append(out, *c)
		}
	}
	return out
}

func (a *Agent) formPairsAndAnnounce() {
	a.cl.formPairs(&a.locals, &a.remotes, a.isControlling)
}

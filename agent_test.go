package ice

import (
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialsShapeAndAlphabet(t *testing.T) {
	for i := 0; i < 20; i++ {
		c := newCredentials()
		assert.Len(t, c.Ufrag, 8)
		assert.Len(t, c.Pwd, 32)
		assert.Regexp(t, "^[A-Za-z0-9]+$", c.Ufrag)
		assert.Regexp(t, "^[A-Za-z0-9]+$", c.Pwd)
	}
}

func TestAddHostAddrRejectsLoopbackAndUnspecified(t *testing.T) {
	a := NewAgentForOffer(true, true)
	var events []Event
	onEvent := func(e Event) { events = append(events, e) }

	a.AddHostAddr(onEvent, ComponentRTP, udpAddr("127.0.0.1", 1))
	a.AddHostAddr(onEvent, ComponentRTP, udpAddr("0.0.0.0", 1))

	assert.Empty(t, events)
	assert.Empty(t, a.locals.all())
}

func TestAddHostAddrAcceptsPrivateAddress(t *testing.T) {
	a := NewAgentForOffer(true, true)
	var events []Event
	a.AddHostAddr(func(e Event) { events = append(events, e) }, ComponentRTP, udpAddr("192.168.1.5", 1))

	assert.Len(t, a.locals.all(), 1)
	assert.Len(t, events, 1)
	_, ok := events[0].(CandidateDiscovered)
	assert.True(t, ok)
}

func TestAddHostAddrDeduplicates(t *testing.T) {
	a := NewAgentForOffer(true, true)
	var noop OnEvent = func(Event) {}
	addr := udpAddr("192.168.1.5", 1)
	a.AddHostAddr(noop, ComponentRTP, addr)
	a.AddHostAddr(noop, ComponentRTP, addr)

	assert.Len(t, a.locals.all(), 1)
}

func TestICECandidatesExcludesPeerReflexive(t *testing.T) {
	a := NewAgentForOffer(true, true)
	a.locals.add(Candidate{Kind: Host, Addr: udpAddr("192.168.1.5", 1), Component: ComponentRTP})
	a.locals.add(Candidate{Kind: PeerReflexive, Addr: udpAddr("192.168.1.6", 1), Component: ComponentRTP})

	out := a.ICECandidates()
	assert.Len(t, out, 1)
	assert.Equal(t, Host, out[0].Kind)
}

func TestTimeoutReturnsTaDeadlineWhenRemoteKnown(t *testing.T) {
	a := NewAgentFromAnswer(newCredentials(), newCredentials(), true, true)
	now := time.Now()
	d, ok := a.Timeout(now)
	assert.True(t, ok)
	assert.Equal(t, time.Duration(0), d)
}

func TestTimeoutNoneWithoutRemoteOrBindings(t *testing.T) {
	a := NewAgentForOffer(true, true)
	now := time.Now()
	_, ok := a.Timeout(now)
	assert.False(t, ok)
}

func TestSetRemoteDataStripsRtcpOnMuxFlip(t *testing.T) {
	a := NewAgentForOffer(true, false)
	var noop OnEvent = func(Event) {}
	a.AddHostAddr(noop, ComponentRTP, udpAddr("192.168.1.5", 1))
	a.AddHostAddr(noop, ComponentRTCP, udpAddr("192.168.1.5", 2))
	assert.Len(t, a.locals.all(), 2)

	require.NoError(t, a.SetRemoteData(newCredentials(), nil, true))

	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		assert.NotEqual(t, ComponentRTCP, c.Component)
	}
}

func TestSetRemoteDataRejectsIncompleteCredentials(t *testing.T) {
	a := NewAgentForOffer(true, true)
	err := a.SetRemoteData(Credentials{Ufrag: "onlyufrag"}, nil, true)
	assert.Equal(t, ErrBadCredentials, err)
	assert.False(t, a.haveRemote)
}

func TestAddRemoteCandidateRejectsUnknownComponent(t *testing.T) {
	a := NewAgentForOffer(true, true)
	err := a.AddRemoteCandidate(func(Event) {}, Candidate{
		Kind:      Host,
		Addr:      udpAddr("192.168.1.5", 1),
		Component: Component(7),
	})
	assert.Equal(t, ErrUnknownComponent, errors.Cause(err))
}

func TestRoleConflictSwitchesLosingSide(t *testing.T) {
	a := NewAgentFromAnswer(newCredentials(), newCredentials(), true, true)
	a.tieBreaker = 1

	msg := newStunMessage(stunRequest, stunBindingMethod, string(make([]byte, 12)))
	msg.addTieBreaker(stunAttrIceControlling, 2)

	conflict, respond := a.checkRoleConflict(msg)
	assert.True(t, conflict)
	assert.False(t, respond)
	assert.False(t, a.isControlling)
}

func TestRoleConflictWinningSideRespondsWithError(t *testing.T) {
	a := NewAgentFromAnswer(newCredentials(), newCredentials(), true, true)
	a.tieBreaker = 99

	msg := newStunMessage(stunRequest, stunBindingMethod, string(make([]byte, 12)))
	msg.addTieBreaker(stunAttrIceControlling, 2)

	conflict, respond := a.checkRoleConflict(msg)
	assert.True(t, conflict)
	assert.True(t, respond)
	assert.True(t, a.isControlling)
}

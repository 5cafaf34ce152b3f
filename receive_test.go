package ice

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestServerBindingSuccessPopulatesRelAddrAndDiscoveredAddr(t *testing.T) {
	a := NewAgentForOffer(true, true)
	localAddr := udpAddr("192.168.1.5", 4000)
	serverAddr := udpAddr("203.0.113.1", 3478)
	mapped := udpAddr("198.51.100.9", 55555)

	var noop OnEvent = func(Event) {}
	a.AddHostAddr(noop, ComponentRTP, localAddr)

	now := time.Now()
	a.AddSTUNServer(now, serverAddr)
	require.Len(t, a.bindings, 1)
	b := a.bindings[0]

	resp := newStunMessage(stunSuccessResponse, stunBindingMethod, b.txID)
	resp.setXorMappedAddress(mapped)
	resp.addFingerprint()

	var events []Event
	a.Receive(func(e Event) { events = append(events, e) }, ReceivedPkt{
		Data:        resp.Bytes(),
		Source:      serverAddr,
		Destination: localAddr,
		Component:   ComponentRTP,
	})

	var found *Candidate
	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		if c.Kind == ServerReflexive {
			found = c
		}
	}
	if assert.NotNil(t, found, "expected a server-reflexive candidate to be discovered") {
		assert.Equal(t, mapped.String(), found.Addr.String())
		assert.NotNil(t, found.RelAddr)
		ip, port := addrIPPort(localAddr)
		assert.Equal(t, ip, found.RelAddr)
		assert.Equal(t, port, found.RelPort)
	}

	addr, ok := a.DiscoveredAddr(ComponentRTP)
	assert.True(t, ok)
	assert.Equal(t, mapped.String(), addr.String())
}

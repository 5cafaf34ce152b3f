package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
)

func udpAddr(ip string, port int) net.Addr {
	return &net.UDPAddr{IP: net.ParseIP(ip), Port: port}
}

func TestFormPairsSkipsMismatchedComponent(t *testing.T) {
	var locals, remotes candidateTable
	locals.add(Candidate{Addr: udpAddr("10.0.0.1", 1), Component: ComponentRTP, Foundation: "l"})
	remotes.add(Candidate{Addr: udpAddr("10.0.0.2", 1), Component: ComponentRTCP, Foundation: "r"})

	cl := newChecklist(100)
	cl.formPairs(&locals, &remotes, true)

	assert.Len(t, cl.pairs, 0)
}

func TestFormPairsSkipsPeerReflexiveRemote(t *testing.T) {
	var locals, remotes candidateTable
	locals.add(Candidate{Addr: udpAddr("10.0.0.1", 1), Component: ComponentRTP, Foundation: "l"})
	remotes.add(Candidate{Addr: udpAddr("10.0.0.2", 1), Component: ComponentRTP, Kind: PeerReflexive, Foundation: "r"})

	cl := newChecklist(100)
	cl.formPairs(&locals, &remotes, true)

	assert.Len(t, cl.pairs, 0)
}

func TestFormPairsSkipsCrossFamily(t *testing.T) {
	var locals, remotes candidateTable
	locals.add(Candidate{Addr: udpAddr("10.0.0.1", 1), Component: ComponentRTP, Foundation: "l"})
	remotes.add(Candidate{Addr: udpAddr("2001:db8::1", 1), Component: ComponentRTP, Foundation: "r"})

	cl := newChecklist(100)
	cl.formPairs(&locals, &remotes, true)

	assert.Len(t, cl.pairs, 0)
}

func TestFormPairsCreatesCrossProduct(t *testing.T) {
	var locals, remotes candidateTable
	locals.add(Candidate{Addr: udpAddr("10.0.0.1", 1), Component: ComponentRTP, Foundation: "l1"})
	locals.add(Candidate{Addr: udpAddr("10.0.0.2", 1), Component: ComponentRTP, Foundation: "l2"})
	remotes.add(Candidate{Addr: udpAddr("10.0.1.1", 1), Component: ComponentRTP, Foundation: "r1"})

	cl := newChecklist(100)
	cl.formPairs(&locals, &remotes, true)

	assert.Len(t, cl.pairs, 2)
}

func TestRecomputePairPrioritiesKeepsListSorted(t *testing.T) {
	var locals, remotes candidateTable
	l1 := locals.add(Candidate{Priority: 10, Addr: udpAddr("10.0.0.1", 1), Component: ComponentRTP, Foundation: "l1"})
	l2 := locals.add(Candidate{Priority: 200, Addr: udpAddr("10.0.0.2", 1), Component: ComponentRTP, Foundation: "l2"})
	r1 := remotes.add(Candidate{Priority: 50, Addr: udpAddr("10.0.1.1", 1), Component: ComponentRTP, Foundation: "r1"})

	cl := newChecklist(100)
	cl.formPairs(&locals, &remotes, true)
	assert.Len(t, cl.pairs, 2)

	cl.recomputePairPriorities(&locals, &remotes, false)

	assert.True(t, cl.pairs[0].Priority >= cl.pairs[1].Priority)
	_ = l1
	_ = l2
	_ = r1
}

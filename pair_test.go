package ice

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPairPriorityControllingVsControlled(t *testing.T) {
	local := uint32(200)
	remote := uint32(100)

	controlling := pairPriority(local, remote, true)
	controlled := pairPriority(local, remote, false)

	// Swapping which side is G/D leaves min/max unchanged and only moves
	// the tie-break bit, so swapping both the inputs and the role gives
	// back the same priority.
	assert.Equal(t, controlling, pairPriority(remote, local, false))
	assert.Equal(t, controlled, pairPriority(remote, local, true))
}

func TestPairPriorityTieBreakBit(t *testing.T) {
	// G > D sets the low bit.
	p := pairPriority(200, 100, true)
	assert.Equal(t, uint64(1), p&1)

	p2 := pairPriority(100, 200, true)
	assert.Equal(t, uint64(0), p2&1)
}

func TestChecklistSortDescending(t *testing.T) {
	cl := newChecklist(100)
	var locals, remotes candidateTable
	l1 := locals.add(Candidate{Priority: 10, Component: ComponentRTP, Foundation: "l1"})
	l2 := locals.add(Candidate{Priority: 200, Component: ComponentRTP, Foundation: "l2"})
	r1 := remotes.add(Candidate{Priority: 50, Component: ComponentRTP, Foundation: "r1"})

	lc1, _ := locals.get(l1)
	lc2, _ := locals.get(l2)
	rc1, _ := remotes.get(r1)

	cl.addPair(l1, r1, lc1, rc1, true)
	cl.addPair(l2, r1, lc2, rc1, true)
	cl.sortAndPrune()

	assert.True(t, cl.pairs[0].Priority >= cl.pairs[1].Priority)
}

func TestChecklistPrunesToMaxPairs(t *testing.T) {
	cl := newChecklist(1)
	var locals, remotes candidateTable
	l1 := locals.add(Candidate{Priority: 10, Component: ComponentRTP, Foundation: "l1"})
	l2 := locals.add(Candidate{Priority: 200, Component: ComponentRTP, Foundation: "l2"})
	r1 := remotes.add(Candidate{Priority: 50, Component: ComponentRTP, Foundation: "r1"})

	lc1, _ := locals.get(l1)
	lc2, _ := locals.get(l2)
	rc1, _ := remotes.get(r1)

	cl.addPair(l1, r1, lc1, rc1, true)
	cl.addPair(l2, r1, lc2, rc1, true)
	cl.sortAndPrune()

	assert.Len(t, cl.pairs, 1)
	assert.Equal(t, l2, cl.pairs[0].Local)
}

func TestChecklistTriggeredQueueTakesPriorityOverWaiting(t *testing.T) {
	cl := newChecklist(100)
	var locals, remotes candidateTable
	l1 := locals.add(Candidate{Priority: 200, Component: ComponentRTP, Foundation: "l1"})
	l2 := locals.add(Candidate{Priority: 10, Component: ComponentRTP, Foundation: "l2"})
	r1 := remotes.add(Candidate{Priority: 50, Component: ComponentRTP, Foundation: "r1"})

	lc1, _ := locals.get(l1)
	lc2, _ := locals.get(l2)
	rc1, _ := remotes.get(r1)

	cl.addPair(l1, r1, lc1, rc1, true)
	cl.addPair(l2, r1, lc2, rc1, true)
	cl.sortAndPrune()

	cl.pushTriggered(l2, r1)
	next := cl.nextPair()
	assert.Equal(t, l2, next.Local)
}

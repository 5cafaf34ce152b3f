package ice

import (
	"net"
	"sort"
)

// triggeredEntry is one FIFO entry of the triggered-check queue: a pair
// referenced by its stable candidate IDs, resolved against the current
// pairs slice when dequeued (it may already have been pruned).
type triggeredEntry struct {
	local, remote candidateID
}

// checklist is the ordered set of candidate pairs for one agent, plus
// the FIFO of pairs awaiting an immediate (triggered) check. Grounded on
// the teacher's Checklist (checklist.go), generalized from its
// goroutine-driven run loop into plain synchronous methods the Agent
// calls from Receive/Poll.
type checklist struct {
	pairs     []*CandidatePair
	triggered []triggeredEntry
	maxPairs  int
}

func newChecklist(maxPairs int) *checklist {
	return &checklist{maxPairs: maxPairs}
}

func (cl *checklist) find(local, remote candidateID) *CandidatePair {
	for _, p := range cl.pairs {
		if p.Local == local && p.Remote == remote {
			return p
		}
	}
	return nil
}

func (cl *checklist) findByComponent(comp Component) []*CandidatePair {
	var out []*CandidatePair
	for _, p := range cl.pairs {
		if p.Component == comp {
			out = append(out, p)
		}
	}
	return out
}

func (cl *checklist) findInProgress(txID string) *CandidatePair {
	for _, p := range cl.pairs {
		if p.State == InProgress && string(p.txID[:]) == txID {
			return p
		}
	}
	return nil
}

// addPair appends a new pair in Waiting state, provided one does not
// already exist for (local, remote). Callers (formPairs and the
// peer-reflexive path in Receive) are responsible for calling
// sortAndPrune afterward.
func (cl *checklist) addPair(local, remote candidateID, localC, remoteC *Candidate, controlling bool) *CandidatePair {
	if cl.find(local, remote) != nil {
		return nil
	}
	p := &CandidatePair{
		Local:      local,
		Remote:     remote,
		Component:  localC.Component,
		Foundation: localC.Foundation + "/" + remoteC.Foundation,
		Priority:   pairPriority(localC.Priority, remoteC.Priority, controlling),
		State:      Waiting,
	}
	cl.pairs = append(cl.pairs, p)
	return p
}

// sortAndPrune orders pairs by descending priority (ties broken by lower
// component id, which the 256-component term folding into candidate
// priority already encodes at the candidate level, so a plain priority
// sort here is sufficient), then prunes the lowest-priority tail until
// at most maxPairs remain.
func (cl *checklist) sortAndPrune() {
	sort.SliceStable(cl.pairs, func(i, j int) bool {
		return cl.pairs[i].Priority > cl.pairs[j].Priority
	})
	if cl.maxPairs > 0 && len(cl.pairs) > cl.maxPairs {
		cl.pairs = cl.pairs[:cl.maxPairs]
	}
}

// recomputePairPriorities re-derives every pair's priority after a role
// switch, since G/D assignment is role-dependent, then re-sorts.
func (cl *checklist) recomputePairPriorities(table, remoteTable *candidateTable, controlling bool) {
	for _, p := range cl.pairs {
		lc, _ := table.get(p.Local)
		rc, _ := remoteTable.get(p.Remote)
		if lc == nil || rc == nil {
			continue
		}
		p.Priority = pairPriority(lc.Priority, rc.Priority, controlling)
	}
	cl.sortAndPrune()
}

func (cl *checklist) pushTriggered(local, remote candidateID) {
	cl.triggered = append(cl.triggered, triggeredEntry{local, remote})
}

func (cl *checklist) pushTriggeredFront(local, remote candidateID) {
	cl.triggered = append([]triggeredEntry{{local, remote}}, cl.triggered...)
}

// nextPair selects the next pair to check: the first triggered-queue
// entry that still resolves to a live pair, else the highest-priority
// Waiting pair (cl.pairs is kept sorted descending, so this is simply
// the first Waiting match).
func (cl *checklist) nextPair() *CandidatePair {
	for len(cl.triggered) > 0 {
		e := cl.triggered[0]
		cl.triggered = cl.triggered[1:]
		if p := cl.find(e.local, e.remote); p != nil {
			return p
		}
	}
	for _, p := range cl.pairs {
		if p.State == Waiting {
			return p
		}
	}
	return nil
}

// familiesCompatible rejects cross-family pairs and mismatched
// link-local partitions, per the pairing invariant.
func familiesCompatible(a, b net.Addr) bool {
	aIP, _ := addrIPPort(a)
	bIP, _ := addrIPPort(b)
	if aIP == nil || bIP == nil {
		return false
	}
	aIs4 := aIP.To4() != nil
	bIs4 := bIP.To4() != nil
	if aIs4 != bIs4 {
		return false
	}
	if aIs4 {
		return aIP.IsLinkLocalUnicast() == bIP.IsLinkLocalUnicast()
	}
	return aIP.IsLinkLocalUnicast() == bIP.IsLinkLocalUnicast()
}

// formPairs implements the pairing cross-product from §4.4: every
// (local, remote) combination sharing a component, passing the family
// checks, and not already paired becomes a new Waiting pair; remote
// peer-reflexive candidates are excluded since those are only ever
// paired explicitly at creation time.
func (cl *checklist) formPairs(locals *candidateTable, remotes *candidateTable, controlling bool) {
	changed := false
	for _, lid := range locals.all() {
		lc, _ := locals.get(lid)
		for _, rid := range remotes.all() {
			rc, _ := remotes.get(rid)
			if rc.Kind == PeerReflexive {
				continue
			}
			if lc.Component != rc.Component {
				continue
			}
			if cl.find(lid, rid) != nil {
				continue
			}
			if !familiesCompatible(lc.Addr, rc.Addr) {
				continue
			}
			if cl.addPair(lid, rid, lc, rc, controlling) != nil {
				changed = true
			}
		}
	}
	if changed {
		cl.sortAndPrune()
	}
}

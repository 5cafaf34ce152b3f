package ice

import (
	"crypto/rand"
	"time"
)

// Poll implements §4.10's eight-step sweep: retransmits, server-binding
// progress, state re-evaluation, pacing, nomination, and (at most) one
// new outbound check per call.
func (a *Agent) Poll(now time.Time, onEvent OnEvent) {
	a.retransmitSweep(now, onEvent)
	a.pollServerBindings(now, onEvent)
	a.reevaluateState(onEvent)

	if !a.haveRemote {
		return
	}

	if a.hasLastTa && a.lastTaTrigger.Add(a.cfg.Ta).After(now) {
		return
	}
	a.lastTaTrigger = now
	a.hasLastTa = true

	a.runNomination(onEvent)

	p := a.cl.nextPair()
	if p == nil {
		return
	}
	a.startCheck(now, onEvent, p)
}

func (a *Agent) retransmitSweep(now time.Time, onEvent OnEvent) {
	for _, p := range a.cl.pairs {
		if p.State != InProgress {
			continue
		}
		if now.Before(p.nextRetransmit) {
			continue
		}
		if p.retransmits >= a.cfg.MaxRetransmits {
			p.State = Failed
			continue
		}
		p.retransmits++
		p.nextRetransmit = p.nextRetransmit.Add(retransmitDelta(a.cfg, p.retransmits))
		onEvent(SendData{Component: p.Component, Source: p.sourceAddr, Target: p.targetAddr, Data: p.request})
	}
}

func (a *Agent) pollServerBindings(now time.Time, onEvent OnEvent) {
	for _, b := range a.bindings {
		refreshDue := b.completed() && b.succeeded && now.Sub(b.nextRetransmit) >= a.cfg.RefreshInterval
		b.poll(now, a.cfg, refreshDue, onEvent)
	}
}

func (a *Agent) startCheck(now time.Time, onEvent OnEvent, p *CandidatePair) {
	localC, _ := a.locals.get(p.Local)
	remoteC, _ := a.remotes.get(p.Remote)
	if localC == nil || remoteC == nil {
		p.State = Failed
		return
	}

	buf := make([]byte, 12)
	rand.Read(buf)
	txID := string(buf)

	req := makeBindingRequest(txID, a.localCreds.Ufrag, a.remoteCreds.Ufrag, a.remoteCreds.Pwd,
		localC.peerPriority(), a.isControlling, a.tieBreaker, p.Nominated)

	p.State = InProgress
	copy(p.txID[:], txID)
	p.request = req
	p.retransmits = 0
	p.nextRetransmit = now.Add(retransmitDelta(a.cfg, 0))
	p.sourceAddr = localC.Base
	p.targetAddr = remoteC.Addr

	onEvent(SendData{Component: p.Component, Source: localC.Base, Target: remoteC.Addr, Data: req})
}

// reevaluateState implements §4.11.
func (a *Agent) reevaluateState(onEvent OnEvent) {
	a.reevaluateGathering(onEvent)
	a.reevaluateConnection(onEvent)
}

func (a *Agent) reevaluateGathering(onEvent OnEvent) {
	old := a.gatheringState
	allDone := true
	for _, b := range a.bindings {
		if !b.completed() {
			allDone = false
			break
		}
	}
	var next GatheringState
	if allDone {
		next = GatheringComplete
	} else {
		next = GatheringInProgress
	}
	if next != old {
		a.gatheringState = next
		onEvent(GatheringStateChanged{State: next})
	}
}

func (a *Agent) hasNomination(comp Component) bool {
	for _, p := range a.cl.pairs {
		if p.Component == comp && p.Nominated && p.State == Succeeded {
			return true
		}
	}
	return false
}

func (a *Agent) allComponentsNominated() bool {
	for _, c := range a.requiredComponents() {
		if !a.hasNomination(c) {
			return false
		}
	}
	return true
}

func (a *Agent) componentFailed(comp Component) bool {
	any := false
	for _, p := range a.cl.pairs {
		if p.Component != comp {
			continue
		}
		any = true
		if p.State == Waiting || p.State == InProgress {
			return false
		}
		if p.State != Failed {
			return false
		}
	}
	return any
}

func (a *Agent) reevaluateConnection(onEvent OnEvent) {
	old := a.connectionState
	nominated := a.allComponentsNominated()

	var next ConnectionState
	switch old {
	case ConnectionNew:
		if nominated {
			next = ConnectionConnected
		} else if a.anyCheckStarted() {
			next = ConnectionChecking
		} else {
			return
		}
	case ConnectionChecking:
		if nominated {
			next = ConnectionConnected
		} else if a.anyRequiredComponentFailed() {
			next = ConnectionFailed
		} else {
			return
		}
	case ConnectionConnected:
		if !nominated {
			next = ConnectionDisconnected
		} else {
			return
		}
	case ConnectionDisconnected:
		if nominated {
			next = ConnectionConnected
		} else if a.anyRequiredComponentFailed() {
			next = ConnectionFailed
		} else {
			return
		}
	case ConnectionFailed:
		return
	default:
		return
	}

	if next != old {
		a.connectionState = next
		onEvent(ConnectionStateChanged{State: next})
	}
}

func (a *Agent) anyCheckStarted() bool {
	for _, p := range a.cl.pairs {
		if p.State != Waiting {
			return true
		}
	}
	return false
}

func (a *Agent) anyRequiredComponentFailed() bool {
	for _, c := range a.requiredComponents() {
		if a.componentFailed(c) {
			return true
		}
	}
	return false
}

// runNomination implements §4.12.
func (a *Agent) runNomination(onEvent OnEvent) {
	for _, comp := range a.requiredComponents() {
		if a.hasNomination(comp) {
			continue
		}
		if a.isControlling {
			p := a.highestPriority(comp, func(p *CandidatePair) bool { return p.State == Succeeded })
			if p == nil {
				continue
			}
			p.Nominated = true
			a.cl.pushTriggeredFront(p.Local, p.Remote)
		} else {
			p := a.highestPriority(comp, func(p *CandidatePair) bool {
				return p.ReceivedUseCandidate && p.State == Succeeded
			})
			if p == nil {
				continue
			}
			p.Nominated = true
			remoteC, _ := a.remotes.get(p.Remote)
			if remoteC != nil {
				onEvent(UseAddr{Component: comp, Target: remoteC.Addr})
			}
		}
	}
}

func (a *Agent) highestPriority(comp Component, pred func(*CandidatePair) bool) *CandidatePair {
	// cl.pairs is sorted descending by priority, so the first match
	// wins.
	for _, p := range a.cl.pairs {
		if p.Component == comp && pred(p) {
			return p
		}
	}
	return nil
}

// Timeout implements §4.13.
func (a *Agent) Timeout(now time.Time) (time.Duration, bool) {
	var best time.Duration = -1
	have := false

	if a.haveRemote {
		var taDeadline time.Time
		if a.hasLastTa {
			taDeadline = a.lastTaTrigger.Add(a.cfg.Ta)
		} else {
			taDeadline = now
		}
		d := taDeadline.Sub(now)
		if d < 0 {
			d = 0
		}
		best, have = d, true
	}

	for _, b := range a.bindings {
		d := b.timeout(now)
		if d < 0 {
			continue
		}
		if !have || d < best {
			best, have = d, true
		}
	}

	for _, p := range a.cl.pairs {
		if p.State != InProgress {
			continue
		}
		d := p.nextRetransmit.Sub(now)
		if d < 0 {
			d = 0
		}
		if !have || d < best {
			best, have = d, true
		}
	}

	return best, have
}

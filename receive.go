package ice

import "net"

// ReceivedPkt is one inbound UDP datagram, already demultiplexed to a
// component by the caller's socket layer.
type ReceivedPkt struct {
	Data        []byte
	Source      net.Addr
	Destination net.Addr
	Component   Component
}

// Receive implements §4.6: parse as STUN, discard anything malformed,
// and dispatch by class. Non-STUN and STUN Indications are ignored;
// this agent neither sends nor expects ICE Indications.
func (a *Agent) Receive(onEvent OnEvent, pkt ReceivedPkt) {
	msg, err := parseStunMessage(pkt.Data)
	if err != nil || msg == nil {
		return
	}

	switch msg.class {
	case stunRequest:
		if !verifyIntegrity(pkt.Data, msg, a.localCreds.Pwd) {
			log.Debug("ice: dropping request with bad integrity/fingerprint from %s", pkt.Source)
			return
		}
		a.handleRequest(onEvent, msg, pkt)
	case stunSuccessResponse:
		if b := a.findBindingForTxID(string(msg.transactionID)); b != nil {
			if b.wantsSTUNResponse(string(msg.transactionID)) {
				a.handleServerBindingSuccess(onEvent, b, msg)
			}
			return
		}
		if !verifyIntegrity(pkt.Data, msg, a.remoteCreds.Pwd) {
			log.Debug("ice: dropping success response with bad integrity/fingerprint from %s", pkt.Source)
			return
		}
		a.handleSuccess(onEvent, msg, pkt)
	case stunErrorResponse:
		if !verifyIntegrity(pkt.Data, msg, a.remoteCreds.Pwd) {
			log.Debug("ice: dropping error response with bad integrity/fingerprint from %s", pkt.Source)
			return
		}
		a.handleError(onEvent, msg, pkt)
	case stunIndication:
		// Ignored.
	}
}

func (a *Agent) findBindingForTxID(txID string) *serverBinding {
	for _, b := range a.bindings {
		if b.wantsSTUNResponse(txID) {
			return b
		}
	}
	return nil
}

func (a *Agent) handleServerBindingSuccess(onEvent OnEvent, b *serverBinding, msg *stunMessage) {
	mapped := b.receiveSTUNResponse(msg)
	if mapped == nil {
		return
	}
	if sameAddr(mapped, b.localAddr) {
		return
	}
	if a.localExists(ServerReflexive, b.localAddr, mapped) {
		return
	}
	localPref := ServerReflexive.kindOffset() + uint32(a.locals.countByKind(ServerReflexive, b.component))
	relAddr, relPort := addrIPPort(b.localAddr)
	c := Candidate{
		Addr:       mapped,
		Base:       b.localAddr,
		Kind:       ServerReflexive,
		Priority:   computePriority(ServerReflexive, localPref, b.component),
		Foundation: computeFoundation(ServerReflexive, b.localAddr, b.serverAddr.String()),
		Component:  b.component,
		RelAddr:    relAddr,
		RelPort:    relPort,
	}
	a.locals.add(c)
	onEvent(CandidateDiscovered{Component: b.component, Candidate: c})
	a.formPairsAndAnnounce()
}

// handleRequest implements §4.7.
func (a *Agent) handleRequest(onEvent OnEvent, msg *stunMessage, pkt ReceivedPkt) {
	priority, _ := msg.priority()
	useCandidate := msg.hasUseCandidate()

	if conflict, respond := a.checkRoleConflict(msg); respond {
		resp := makeRoleError(msg.transactionID, a.localCreds.Pwd, a.isControlling, a.tieBreaker)
		onEvent(SendData{Component: pkt.Component, Source: pkt.Destination, Target: pkt.Source, Data: resp})
		return
	} else if conflict {
		a.recomputeAllPairPriorities()
	}

	localID, localC := a.findLocalHostByAddr(pkt.Destination)
	if localC == nil {
		log.Debug("ice: incoming request to unknown local address %s", pkt.Destination)
		return
	}

	remoteID, remoteC := a.findRemoteByAddr(pkt.Source, pkt.Component)
	if remoteC == nil {
		rc := Candidate{
			Addr:       pkt.Source,
			Base:       pkt.Source,
			Kind:       PeerReflexive,
			Priority:   priority,
			Foundation: peerReflexiveFoundation,
			Component:  pkt.Component,
		}
		remoteID = a.remotes.add(rc)
		remoteC = &rc
		a.cl.addPair(localID, remoteID, localC, remoteC, a.isControlling)
		a.cl.sortAndPrune()
		a.cl.pushTriggered(localID, remoteID)
	}

	if p := a.cl.find(localID, remoteID); p != nil {
		p.ReceivedUseCandidate = p.ReceivedUseCandidate || useCandidate
	}

	resp := makeSuccessResponse(msg.transactionID, a.localCreds.Pwd, pkt.Source)
	onEvent(SendData{Component: pkt.Component, Source: localC.Base, Target: pkt.Source, Data: resp})

	if useCandidate {
		a.runNomination(onEvent)
	}
	a.reevaluateState(onEvent)
}

// checkRoleConflict implements the tie-breaker comparison from §4.7
// step 2. Returns (conflictDetected, shouldRespondWith487). When a
// conflict is detected but this agent's tie-breaker loses, it switches
// role instead of responding with an error.
func (a *Agent) checkRoleConflict(msg *stunMessage) (conflict, respond487 bool) {
	if remoteTie, ok := msg.tieBreaker(stunAttrIceControlling); ok && a.isControlling {
		if a.tieBreaker >= remoteTie {
			return true, true
		}
		a.isControlling = false
		return true, false
	}
	if remoteTie, ok := msg.tieBreaker(stunAttrIceControlled); ok && !a.isControlling {
		if a.tieBreaker >= remoteTie {
			return true, true
		}
		a.isControlling = true
		return true, false
	}
	return false, false
}

func (a *Agent) findLocalHostByAddr(addr net.Addr) (candidateID, *Candidate) {
	for _, id := range a.locals.all() {
		c, _ := a.locals.get(id)
		if c.Kind == Host && sameAddr(c.Addr, addr) {
			return id, c
		}
	}
	return 0, nil
}

func (a *Agent) findRemoteByAddr(addr net.Addr, component Component) (candidateID, *Candidate) {
	for _, id := range a.remotes.all() {
		c, _ := a.remotes.get(id)
		if c.Component == component && sameAddr(c.Addr, addr) {
			return id, c
		}
	}
	return 0, nil
}

func (a *Agent) recomputeAllPairPriorities() {
	a.cl.recomputePairPriorities(&a.locals, &a.remotes, a.isControlling)
}

// handleSuccess implements §4.8.
func (a *Agent) handleSuccess(onEvent OnEvent, msg *stunMessage, pkt ReceivedPkt) {
	p := a.cl.findInProgress(msg.transactionID)
	if p == nil {
		log.Debug("ice: success response with unmatched transaction id")
		return
	}

	symmetric := sameAddr(p.sourceAddr, pkt.Destination) && sameAddr(p.targetAddr, pkt.Source)
	if !symmetric {
		p.Nominated = false
		p.State = Failed
		a.reevaluateState(onEvent)
		return
	}

	p.State = Succeeded
	if p.Nominated {
		onEvent(UseAddr{Component: p.Component, Target: pkt.Source})
	}

	if mapped := msg.getXorMappedAddress(); mapped != nil {
		localC, _ := a.locals.get(p.Local)
		if localC != nil && !sameAddr(mapped, localC.Addr) {
			if !a.localExists(PeerReflexive, pkt.Destination, mapped) {
				localPref := PeerReflexive.kindOffset() + uint32(a.locals.countByKind(PeerReflexive, localC.Component))
				priority := computePriority(PeerReflexive, localPref, localC.Component)
				c := Candidate{
					Addr:       mapped,
					Base:       pkt.Destination,
					Kind:       PeerReflexive,
					Priority:   priority,
					Foundation: peerReflexiveFoundation,
					Component:  localC.Component,
				}
				a.locals.add(c)
			}
		}
	}
	a.reevaluateState(onEvent)
}

// handleError implements §4.9.
func (a *Agent) handleError(onEvent OnEvent, msg *stunMessage, pkt ReceivedPkt) {
	p := a.cl.findInProgress(msg.transactionID)
	if p == nil {
		return
	}
	code, ok := msg.errorCode()
	if !ok {
		return
	}
	if code == 487 {
		if _, ok := msg.tieBreaker(stunAttrIceControlling); ok {
			a.isControlling = false
		} else if _, ok := msg.tieBreaker(stunAttrIceControlled); ok {
			a.isControlling = true
		}
		p.State = Waiting
		a.cl.pushTriggered(p.Local, p.Remote)
		a.recomputeAllPairPriorities()
		return
	}
	log.Debug("ice: error response code %d for pair %s", code, p)
}

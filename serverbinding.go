package ice

import (
	"crypto/rand"
	"net"
	"time"
)

// serverBinding drives one outstanding Binding Request to a configured
// STUN server to discover a server-reflexive address for one component.
// It owns no socket; callers learn what to send via poll's SendData
// event. Grounded on the teacher's Base.queryStunServer, generalized
// from a blocking goroutine-and-channel call into the sans-I/O request/
// response bookkeeping the rest of the agent uses.
type serverBinding struct {
	serverAddr net.Addr
	localAddr  net.Addr
	component  Component

	txID           string
	retransmits    int
	nextRetransmit time.Time

	discoveredAddr net.Addr
	done           bool // true once Success received or retries exhausted
	succeeded      bool
}

func newServerBinding(serverAddr, localAddr net.Addr, component Component, now time.Time) *serverBinding {
	b := &serverBinding{serverAddr: serverAddr, localAddr: localAddr, component: component}
	b.startRequest(now)
	return b
}

func (b *serverBinding) startRequest(now time.Time) {
	buf := make([]byte, 12)
	rand.Read(buf)
	b.txID = string(buf)
	b.retransmits = 0
	b.nextRetransmit = now
	b.done = false
	b.succeeded = false
	b.discoveredAddr = nil
}

func (b *serverBinding) wantsSTUNResponse(txID string) bool {
	return !b.done && b.txID == txID
}

// receiveSTUNResponse consumes a Success response already confirmed to
// match b.txID, returning the discovered mapped address.
func (b *serverBinding) receiveSTUNResponse(msg *stunMessage) net.Addr {
	addr := msg.getXorMappedAddress()
	if addr == nil {
		return nil
	}
	b.discoveredAddr = addr
	b.succeeded = true
	b.done = true
	return addr
}

func (b *serverBinding) completed() bool {
	return b.done
}

func (b *serverBinding) discoveredAddrOrNil() net.Addr {
	return b.discoveredAddr
}

// timeout reports how long the caller may wait before calling poll
// again for this binding to make progress, or -1 if done (succeeded or
// retries exhausted); the refresh of a succeeded binding is scheduled by
// the agent's own interval check in poll, not reported here.
func (b *serverBinding) timeout(now time.Time) time.Duration {
	if b.done {
		return -1
	}
	if b.nextRetransmit.Before(now) {
		return 0
	}
	return b.nextRetransmit.Sub(now)
}

// poll emits a SendData event if a (re)transmission is due, and starts a
// refresh once a completed binding's RefreshInterval has elapsed.
func (b *serverBinding) poll(now time.Time, cfg RetransmitConfig, refreshDue bool, onEvent OnEvent) {
	if b.done {
		if b.succeeded && refreshDue {
			b.startRequest(now)
		} else {
			return
		}
	}
	if b.nextRetransmit.After(now) {
		return
	}
	// b.retransmits counts every request sent, the first one included.
	if b.retransmits > cfg.MaxRetransmits {
		b.done = true
		b.succeeded = false
		return
	}
	req := newStunMessage(stunRequest, stunBindingMethod, b.txID)
	req.addFingerprint()
	onEvent(SendData{
		Component: b.component,
		Target:    b.serverAddr,
		Data:      req.Bytes(),
	})
	b.retransmits++
	b.nextRetransmit = now.Add(retransmitDelta(cfg, b.retransmits))
}

// retransmitDelta returns cfg.RTO for attempts 0 and 1 and doubles it for
// each later attempt (RTO·2^(attempt-1)), the exponential backoff RFC 5389
// 7.2.1 recommends and the teacher approximated with a
// flat per-outstanding-pair multiple of Ta (checklist.go's rto()).
func retransmitDelta(cfg RetransmitConfig, attempt int) time.Duration {
	d := cfg.RTO
	for i := 1; i < attempt; i++ {
		d *= 2
	}
	return d
}

package ice

import "time"

// RetransmitConfig controls STUN check pacing and retry limits. The
// Agent itself owns no timers; these values only tell Poll/Timeout how
// many outstanding retransmits to allow and how to space them, following
// the Ta/Tr cadence the teacher's checklist goroutine used to drive with
// time.Ticker before the logic moved caller-side.
type RetransmitConfig struct {
	// Ta is the minimum pacing interval between originating two
	// consecutive STUN checks from the same checklist.
	Ta time.Duration

	// RTO is the base retransmission timeout for an individual STUN
	// request. Successive retransmits of the same request double this,
	// matching RFC 5389's backoff.
	RTO time.Duration

	// MaxRetransmits bounds the number of retransmits attempted for a
	// single STUN transaction (request or server binding refresh)
	// before it is considered to have failed.
	MaxRetransmits int

	// RefreshInterval is how often a completed server-reflexive binding
	// re-queries its STUN server to keep the mapping alive.
	RefreshInterval time.Duration

	// MaxPairs bounds the size of a checklist; once exceeded, the
	// lowest-priority pairs are pruned.
	MaxPairs int
}

// DefaultRetransmitConfig matches the pacing the teacher used for its
// Ta/Tr tickers (agent.go), generalized with an RFC 5389 7.2.1-style
// retransmit ceiling and the spec's default checklist size.
func DefaultRetransmitConfig() RetransmitConfig {
	return RetransmitConfig{
		Ta:              50 * time.Millisecond,
		RTO:             500 * time.Millisecond,
		MaxRetransmits:  7,
		RefreshInterval: 30 * time.Second,
		MaxPairs:        100,
	}
}

package ice

// Component identifies a distinct flow within a data stream.
type Component int

const (
	// ComponentRTP is the RTP component. It also carries RTCP when
	// rtcp-mux is in effect.
	ComponentRTP Component = 1

	// ComponentRTCP is the RTCP component. Unused when rtcp-mux is
	// enabled.
	ComponentRTCP Component = 2
)

func (c Component) String() string {
	switch c {
	case ComponentRTP:
		return "rtp"
	case ComponentRTCP:
		return "rtcp"
	default:
		return "component?"
	}
}

// GatheringState reflects progress gathering server-reflexive candidates.
type GatheringState int

const (
	// GatheringNew is the state immediately after construction.
	GatheringNew GatheringState = iota
	// GatheringInProgress means at least one STUN server binding has not
	// yet completed (succeeded or exhausted its retries).
	GatheringInProgress
	// GatheringComplete means every configured STUN server binding has
	// completed, or none were configured.
	GatheringComplete
)

func (s GatheringState) String() string {
	switch s {
	case GatheringNew:
		return "new"
	case GatheringInProgress:
		return "gathering"
	case GatheringComplete:
		return "complete"
	default:
		return "gathering?"
	}
}

// ConnectionState reflects progress establishing connectivity.
type ConnectionState int

const (
	// ConnectionNew is the state immediately after construction.
	ConnectionNew ConnectionState = iota
	// ConnectionChecking means connectivity checks are underway but not
	// every required component has a nominated, succeeded pair yet.
	ConnectionChecking
	// ConnectionConnected means every required component has a
	// nominated, succeeded pair.
	ConnectionConnected
	// ConnectionDisconnected means a previously Connected agent lost
	// nomination for some required component.
	ConnectionDisconnected
	// ConnectionFailed means some required component ran out of pairs
	// to try.
	ConnectionFailed
)

func (s ConnectionState) String() string {
	switch s {
	case ConnectionNew:
		return "new"
	case ConnectionChecking:
		return "checking"
	case ConnectionConnected:
		return "connected"
	case ConnectionDisconnected:
		return "disconnected"
	case ConnectionFailed:
		return "failed"
	default:
		return "connection?"
	}
}

package ice

import "github.com/pkg/errors"

// Sentinel errors returned by the Agent's public methods. Callers should
// compare with errors.Cause (github.com/pkg/errors) since internal call
// sites wrap these with additional context.
var (
	// ErrUnknownComponent is returned by AddRemoteCandidate and
	// SetRemoteData when a candidate names a Component other than Rtp
	// or Rtcp.
	ErrUnknownComponent = errors.New("ice: unknown component")

	// ErrMalformedCandidate is the cause wrapped by ParseCandidateSDP
	// when an a=candidate line cannot be parsed.
	ErrMalformedCandidate = errors.New("ice: malformed candidate string")

	// ErrBadCredentials is returned by SetRemoteData when remote
	// ufrag/pwd are empty.
	ErrBadCredentials = errors.New("ice: missing remote credentials")
)

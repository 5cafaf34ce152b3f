package ice

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestXorMappedAddressRoundTripIPv4(t *testing.T) {
	msg := newStunMessage(stunSuccessResponse, stunBindingMethod, "")
	addr := &net.UDPAddr{IP: net.ParseIP("203.0.113.5").To4(), Port: 54321}
	msg.setXorMappedAddress(addr)

	got := msg.getXorMappedAddress()
	require.NotNil(t, got)
	assert.True(t, got.IP.Equal(addr.IP))
	assert.Equal(t, addr.Port, got.Port)
}

func TestXorMappedAddressRoundTripIPv6(t *testing.T) {
	msg := newStunMessage(stunSuccessResponse, stunBindingMethod, "")
	addr := &net.UDPAddr{IP: net.ParseIP("2001:db8::1"), Port: 4242}
	msg.setXorMappedAddress(addr)

	got := msg.getXorMappedAddress()
	require.NotNil(t, got)
	assert.True(t, got.IP.Equal(addr.IP))
	assert.Equal(t, addr.Port, got.Port)
}

func TestMessageIntegrityRoundTrip(t *testing.T) {
	const pwd = "remote-password"
	req := makeBindingRequest(string(make([]byte, 12)), "lufrag", "rufrag", pwd, 12345, true, 0xABCD, false)

	msg, err := parseStunMessage(req)
	require.NoError(t, err)
	require.NotNil(t, msg)

	assert.True(t, verifyIntegrity(req, msg, pwd))
}

func TestMessageIntegrityFailsWithWrongKey(t *testing.T) {
	req := makeBindingRequest(string(make([]byte, 12)), "lufrag", "rufrag", "right-password", 12345, true, 0xABCD, false)

	msg, err := parseStunMessage(req)
	require.NoError(t, err)

	assert.False(t, verifyIntegrity(req, msg, "wrong-password"))
}

func TestFingerprintDetectsTamper(t *testing.T) {
	req := makeBindingRequest(string(make([]byte, 12)), "lufrag", "rufrag", "password", 12345, true, 0xABCD, false)
	req[0] ^= 0x01 // flip a bit in the message type field

	msg, err := parseStunMessage(req)
	if err == nil && msg != nil {
		assert.False(t, verifyIntegrity(req, msg, "password"))
	}
}

func TestFingerprintTamperInBody(t *testing.T) {
	req := makeBindingRequest(string(make([]byte, 12)), "lufrag", "rufrag", "password", 12345, true, 0xABCD, false)
	req[len(req)-10] ^= 0x01

	msg, err := parseStunMessage(req)
	require.NoError(t, err)
	require.NotNil(t, msg)
	assert.False(t, verifyIntegrity(req, msg, "password"))
}

func TestHasUseCandidate(t *testing.T) {
	withUseCandidate := makeBindingRequest(string(make([]byte, 12)), "l", "r", "p", 1, true, 1, true)
	without := makeBindingRequest(string(make([]byte, 12)), "l", "r", "p", 1, true, 1, false)

	msg1, _ := parseStunMessage(withUseCandidate)
	msg2, _ := parseStunMessage(without)

	assert.True(t, msg1.hasUseCandidate())
	assert.False(t, msg2.hasUseCandidate())
}

func TestRoleErrorCarries487(t *testing.T) {
	resp := makeRoleError(string(make([]byte, 12)), "pwd", true, 99)
	msg, err := parseStunMessage(resp)
	require.NoError(t, err)

	code, ok := msg.errorCode()
	require.True(t, ok)
	assert.Equal(t, 487, code)
}

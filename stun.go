package ice

import (
	"bytes"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"hash/crc32"
	"net"
	"strings"
)

// STUN (Session Traversal Utilities for NAT), RFC 5389.

type stunClass uint16

const (
	stunRequest         stunClass = 0
	stunIndication      stunClass = 1
	stunSuccessResponse stunClass = 2
	stunErrorResponse   stunClass = 3
)

const stunBindingMethod uint16 = 0x1

const stunHeaderLength = 20
const stunMagicCookie uint32 = 0x2112A442

const stunMagicCookieBytes = "\x21\x12\xA4\x42"
const stunFingerprintXor uint32 = 0x5354554e

const (
	stunAttrUsername         uint16 = 0x0006
	stunAttrMessageIntegrity uint16 = 0x0008
	stunAttrErrorCode        uint16 = 0x0009
	stunAttrXorMappedAddress uint16 = 0x0020
	stunAttrPriority         uint16 = 0x0024
	stunAttrUseCandidate     uint16 = 0x0025
	stunAttrFingerprint      uint16 = 0x8028
	stunAttrIceControlled    uint16 = 0x8029
	stunAttrIceControlling   uint16 = 0x802A
)

type stunAttribute struct {
	Type   uint16
	Length uint16
	Value  []byte
}

func (a *stunAttribute) numBytes() int {
	return 4 + int(a.Length) + pad4(a.Length)
}

// pad4 returns the padding, 0-3 bytes, needed to align n to a 4-byte
// boundary.
func pad4(n uint16) int {
	return -int(n) & 3
}

var zeroPad = make([]byte, 20)

type stunMessage struct {
	class         stunClass
	method        uint16
	length        uint16 // body length, excludes the 20-byte header
	transactionID string // 12 raw bytes
	attributes    []*stunAttribute
}

// parseStunMessage returns (nil, nil) if data does not look like STUN at
// all (wrong top bits, bad cookie): the caller should treat it as
// ordinary non-STUN traffic rather than an error.
func parseStunMessage(data []byte) (*stunMessage, error) {
	if len(data) < stunHeaderLength {
		return nil, nil
	}
	messageType := binary.BigEndian.Uint16(data[0:2])
	if messageType>>14 != 0 {
		return nil, nil
	}
	length := binary.BigEndian.Uint16(data[2:4])
	if length%4 != 0 {
		return nil, nil
	}
	if binary.BigEndian.Uint32(data[4:8]) != stunMagicCookie {
		return nil, nil
	}
	if len(data) < stunHeaderLength+int(length) {
		return nil, fmt.Errorf("ice: stun message truncated")
	}

	class, method := decomposeMessageType(messageType)
	msg := &stunMessage{
		class:         stunClass(class),
		method:        method,
		length:        length,
		transactionID: string(data[8:20]),
	}

	b := bytes.NewBuffer(data[stunHeaderLength : stunHeaderLength+int(length)])
	for b.Len() > 0 {
		attr, err := parseStunAttribute(b)
		if err != nil {
			return nil, err
		}
		msg.attributes = append(msg.attributes, attr)
	}
	return msg, nil
}

func parseStunAttribute(b *bytes.Buffer) (*stunAttribute, error) {
	if b.Len() < 4 {
		return nil, fmt.Errorf("ice: truncated stun attribute header")
	}
	typ := binary.BigEndian.Uint16(b.Next(2))
	length := binary.BigEndian.Uint16(b.Next(2))
	if int(length) > b.Len() {
		return nil, fmt.Errorf("ice: stun attribute %#x length %d exceeds message", typ, length)
	}
	value := make([]byte, length)
	copy(value, b.Next(int(length)))
	b.Next(pad4(length))
	return &stunAttribute{typ, length, value}, nil
}

// composeMessageType/decomposeMessageType implement RFC 5389 figure 3's
// split encoding of the 2-bit class across the message type field.
const classMask1 = 0x0100
const classMask2 = 0x0010
const methodMask1 = 0x3e00
const methodMask2 = 0x00e0
const methodMask3 = 0x000f

func composeMessageType(class uint16, method uint16) uint16 {
	t := (class<<7)&classMask1 | (class<<4)&classMask2
	t |= (method<<2)&methodMask1 | (method<<1)&methodMask2 | (method & methodMask3)
	return t
}

func decomposeMessageType(t uint16) (uint16, uint16) {
	class := (t&classMask1)>>7 | (t&classMask2)>>4
	method := (t&methodMask1)>>2 | (t&methodMask2)>>1 | (t & methodMask3)
	return class, method
}

func newStunMessage(class stunClass, method uint16, transactionID string) *stunMessage {
	if transactionID == "" {
		buf := make([]byte, 12)
		rand.Read(buf)
		transactionID = string(buf)
	}
	return &stunMessage{class: class, method: method, transactionID: transactionID}
}

func (msg *stunMessage) addAttribute(t uint16, v []byte) *stunAttribute {
	vcopy := make([]byte, len(v))
	copy(vcopy, v)
	attr := &stunAttribute{t, uint16(len(v)), vcopy}
	msg.attributes = append(msg.attributes, attr)
	msg.length += uint16(attr.numBytes())
	return attr
}

func (msg *stunMessage) attribute(t uint16) (*stunAttribute, bool) {
	for _, a := range msg.attributes {
		if a.Type == t {
			return a, true
		}
	}
	return nil, false
}

func (msg *stunMessage) Bytes() []byte {
	buf := make([]byte, stunHeaderLength+msg.length)
	b := bytes.NewBuffer(buf[:0])
	messageType := composeMessageType(uint16(msg.class), msg.method)
	var hdr [20]byte
	binary.BigEndian.PutUint16(hdr[0:2], messageType)
	binary.BigEndian.PutUint16(hdr[2:4], msg.length)
	binary.BigEndian.PutUint32(hdr[4:8], stunMagicCookie)
	copy(hdr[8:20], msg.transactionID)
	b.Write(hdr[:])
	for _, attr := range msg.attributes {
		var ah [4]byte
		binary.BigEndian.PutUint16(ah[0:2], attr.Type)
		binary.BigEndian.PutUint16(ah[2:4], attr.Length)
		b.Write(ah[:])
		b.Write(attr.Value)
		b.Write(zeroPad[:pad4(attr.Length)])
	}
	return b.Bytes()
}

func (msg *stunMessage) String() string {
	var b strings.Builder
	switch msg.class {
	case stunRequest:
		b.WriteString("STUN request")
	case stunIndication:
		b.WriteString("STUN indication")
	case stunSuccessResponse:
		b.WriteString("STUN success response")
	case stunErrorResponse:
		b.WriteString("STUN error response")
	}
	fmt.Fprintf(&b, ", tid=%s", hex.EncodeToString([]byte(msg.transactionID)))
	return b.String()
}

// xorBytes XORs dest in place with xor, which must be at least len(dest)
// bytes.
func xorBytes(dest []byte, xor string) {
	for i := range dest {
		dest[i] ^= xor[i]
	}
}

func addrIPPort(addr net.Addr) (net.IP, int) {
	switch a := addr.(type) {
	case *net.UDPAddr:
		return a.IP, a.Port
	case *net.TCPAddr:
		return a.IP, a.Port
	default:
		return nil, 0
	}
}

func (msg *stunMessage) setXorMappedAddress(addr net.Addr) {
	ip, port := addrIPPort(addr)
	var value []byte
	if ip4 := ip.To4(); ip4 != nil {
		value = make([]byte, 8)
		value[1] = 0x01
		copy(value[4:8], ip4)
	} else {
		value = make([]byte, 20)
		value[1] = 0x02
		copy(value[4:20], ip.To16())
	}
	binary.BigEndian.PutUint16(value[2:4], uint16(port))
	xorBytes(value[2:4], stunMagicCookieBytes[0:2])
	xorBytes(value[4:8], stunMagicCookieBytes)
	if len(value) == 20 {
		xorBytes(value[8:20], msg.transactionID)
	}
	msg.addAttribute(stunAttrXorMappedAddress, value)
}

func (msg *stunMessage) getXorMappedAddress() *net.UDPAddr {
	attr, ok := msg.attribute(stunAttrXorMappedAddress)
	if !ok || len(attr.Value) < 8 {
		return nil
	}
	addr := new(net.UDPAddr)
	port := binary.BigEndian.Uint16(attr.Value[2:4])
	port ^= uint16(stunMagicCookie >> 16)
	family := attr.Value[1]
	switch family {
	case 0x01:
		ip := make([]byte, 4)
		copy(ip, attr.Value[4:8])
		xorBytes(ip, stunMagicCookieBytes)
		addr.IP = ip
	case 0x02:
		if len(attr.Value) < 20 {
			return nil
		}
		ip := make([]byte, 16)
		copy(ip, attr.Value[4:20])
		xorBytes(ip[0:4], stunMagicCookieBytes)
		xorBytes(ip[4:16], msg.transactionID)
		addr.IP = ip
	default:
		return nil
	}
	addr.Port = int(port)
	return addr
}

func (msg *stunMessage) addErrorCode(code int, reason string) {
	v := make([]byte, 4+len(reason))
	v[2] = byte(code / 100)
	v[3] = byte(code % 100)
	copy(v[4:], reason)
	msg.addAttribute(stunAttrErrorCode, v)
}

func (msg *stunMessage) errorCode() (int, bool) {
	attr, ok := msg.attribute(stunAttrErrorCode)
	if !ok || len(attr.Value) < 4 {
		return 0, false
	}
	return int(attr.Value[2])*100 + int(attr.Value[3]), true
}

// addMessageIntegrity implements RFC 5389 15.4: HMAC-SHA1 over everything
// preceding this attribute, with the header length field set as if this
// were the last attribute in the message.
func (msg *stunMessage) addMessageIntegrity(key string) {
	attr := msg.addAttribute(stunAttrMessageIntegrity, zeroPad[0:20])
	b := msg.Bytes()
	prefix := len(b) - attr.numBytes()
	sig := hmac.New(sha1.New, []byte(key))
	sig.Write(b[0:prefix])
	copy(attr.Value, sig.Sum(nil))
}

func (msg *stunMessage) verifyMessageIntegrity(key string) bool {
	attr, ok := msg.attribute(stunAttrMessageIntegrity)
	if !ok || len(attr.Value) != 20 {
		return false
	}
	// Recompute over a message truncated and re-lengthed exactly as it
	// was when the sender signed it: everything up through, but not
	// including, MESSAGE-INTEGRITY, with FINGERPRINT (if present,
	// appended afterward) excluded as well.
	trimmed := &stunMessage{class: msg.class, method: msg.method, transactionID: msg.transactionID}
	for _, a := range msg.attributes {
		if a.Type == stunAttrMessageIntegrity || a.Type == stunAttrFingerprint {
			break
		}
		trimmed.addAttribute(a.Type, a.Value)
	}
	want := attr.Value
	sig := hmac.New(sha1.New, []byte(key))
	dummy := trimmed.addAttribute(stunAttrMessageIntegrity, zeroPad[0:20])
	b := trimmed.Bytes()
	prefix := len(b) - dummy.numBytes()
	sig.Write(b[0:prefix])
	got := sig.Sum(nil)
	return hmac.Equal(want, got)
}

// addFingerprint implements RFC 5389 15.5.
func (msg *stunMessage) addFingerprint() {
	attr := msg.addAttribute(stunAttrFingerprint, zeroPad[0:4])
	b := msg.Bytes()
	prefix := len(b) - attr.numBytes()
	crc := crc32.ChecksumIEEE(b[0:prefix])
	binary.BigEndian.PutUint32(attr.Value, crc^stunFingerprintXor)
}

func (msg *stunMessage) verifyFingerprint(raw []byte) bool {
	attr, ok := msg.attribute(stunAttrFingerprint)
	if !ok || len(attr.Value) != 4 {
		return false
	}
	// raw is the full wire message; FINGERPRINT must be its final
	// attribute, and the prefix is everything before it.
	prefix := len(raw) - attr.numBytes()
	if prefix < 0 {
		return false
	}
	crc := crc32.ChecksumIEEE(raw[0:prefix])
	want := binary.BigEndian.Uint32(attr.Value)
	return crc^stunFingerprintXor == want
}

func (msg *stunMessage) addPriority(p uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, p)
	msg.addAttribute(stunAttrPriority, v)
}

func (msg *stunMessage) priority() (uint32, bool) {
	attr, ok := msg.attribute(stunAttrPriority)
	if !ok || len(attr.Value) != 4 {
		return 0, false
	}
	return binary.BigEndian.Uint32(attr.Value), true
}

func (msg *stunMessage) addTieBreaker(attrType uint16, tieBreaker uint64) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, tieBreaker)
	msg.addAttribute(attrType, v)
}

func (msg *stunMessage) tieBreaker(attrType uint16) (uint64, bool) {
	attr, ok := msg.attribute(attrType)
	if !ok || len(attr.Value) != 8 {
		return 0, false
	}
	return binary.BigEndian.Uint64(attr.Value), true
}

func (msg *stunMessage) hasUseCandidate() bool {
	_, ok := msg.attribute(stunAttrUseCandidate)
	return ok
}

func (msg *stunMessage) username() (string, bool) {
	attr, ok := msg.attribute(stunAttrUsername)
	if !ok {
		return "", false
	}
	return string(attr.Value), true
}

// verifyIntegrity checks FINGERPRINT then MESSAGE-INTEGRITY, using key
// appropriate to the message class: a Request is signed with local pwd
// by the peer (so verified against local pwd); a Success/Error response
// to our own request is signed with remote pwd.
func verifyIntegrity(raw []byte, msg *stunMessage, key string) bool {
	if !msg.verifyFingerprint(raw) {
		return false
	}
	return msg.verifyMessageIntegrity(key)
}

// makeBindingRequest builds an outgoing STUN Binding Request per the
// fields the agent needs for a connectivity check.
func makeBindingRequest(txID string, localUfrag, remoteUfrag, remotePwd string, priority uint32, isControlling bool, tieBreaker uint64, useCandidate bool) []byte {
	msg := newStunMessage(stunRequest, stunBindingMethod, txID)
	msg.addAttribute(stunAttrUsername, []byte(usernamePair(remoteUfrag, localUfrag)))
	msg.addPriority(priority)
	if isControlling {
		msg.addTieBreaker(stunAttrIceControlling, tieBreaker)
	} else {
		msg.addTieBreaker(stunAttrIceControlled, tieBreaker)
	}
	if useCandidate {
		msg.addAttribute(stunAttrUseCandidate, nil)
	}
	msg.addMessageIntegrity(remotePwd)
	msg.addFingerprint()
	return msg.Bytes()
}

// makeSuccessResponse builds the Success response to an incoming Binding
// Request, reflecting the observed source address.
func makeSuccessResponse(txID string, localPwd string, source net.Addr) []byte {
	msg := newStunMessage(stunSuccessResponse, stunBindingMethod, txID)
	msg.setXorMappedAddress(source)
	msg.addMessageIntegrity(localPwd)
	msg.addFingerprint()
	return msg.Bytes()
}

// makeRoleError builds a 487 (Role Conflict) error response, echoing the
// agent's (possibly just-switched) role attribute back to the peer.
func makeRoleError(txID string, localPwd string, isControlling bool, tieBreaker uint64) []byte {
	msg := newStunMessage(stunErrorResponse, stunBindingMethod, txID)
	msg.addErrorCode(487, "Role Conflict")
	if isControlling {
		msg.addTieBreaker(stunAttrIceControlling, tieBreaker)
	} else {
		msg.addTieBreaker(stunAttrIceControlled, tieBreaker)
	}
	msg.addMessageIntegrity(localPwd)
	msg.addFingerprint()
	return msg.Bytes()
}

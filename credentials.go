package ice

import "crypto/rand"

// Credentials are the short-term ICE username fragment and password used
// to authenticate STUN connectivity checks for one agent.
type Credentials struct {
	Ufrag string
	Pwd   string
}

// iceChars is the subset of the ice-char alphabet (RFC 5245 15.1) used to
// generate local credentials: upper/lowercase letters and digits.
const iceChars = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// newCredentials generates fresh local credentials: an 8-character ufrag
// and a 32-character pwd, both alphanumeric.
func newCredentials() Credentials {
	return Credentials{
		Ufrag: randomICEString(8),
		Pwd:   randomICEString(32),
	}
}

func randomICEString(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		panic(err)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = iceChars[int(b)%len(iceChars)]
	}
	return string(out)
}

// usernamePair is the combined STUN USERNAME attribute value used on the
// wire: "<remote ufrag>:<local ufrag>" per RFC 8445 16.
func usernamePair(remoteUfrag, localUfrag string) string {
	return remoteUfrag + ":" + localUfrag
}

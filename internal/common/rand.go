package common

import "crypto/rand"

// GenerateRandBytes returns size bytes read from the system CSPRNG.
// An error here means the entropy source is unavailable.
func GenerateRandBytes(size int) ([]byte, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// WipeByteArray overwrites the slice with zeros. Used for plaintext
// password buffers once they have been hashed. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

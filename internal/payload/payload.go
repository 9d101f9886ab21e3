// Package payload builds incompressible upload bodies.
package payload

import (
	"crypto/rand"

	"github.com/pkg/errors"
)

// BlockSize is the size of the random block that larger payloads repeat.
const BlockSize = 1024 * 1024

// RandomBlock returns BlockSize bytes of random data.
func RandomBlock() ([]byte, error) {
	buf := make([]byte, BlockSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, errors.Wrap(err, "failed to read random bytes")
	}
	return buf, nil
}

// Generate returns a payload of exactly size bytes. One random block is
// generated and repeated, which keeps the payload incompressible at the
// granularity of a block without generating size bytes of randomness.
func Generate(size int64) ([]byte, error) {
	if size < 0 {
		return nil, errors.Errorf("payload size must not be negative, got %d", size)
	}

	block, err := RandomBlock()
	if err != nil {
		return nil, err
	}

	out := make([]byte, size)
	for off := int64(0); off < size; off += BlockSize {
		copy(out[off:], block)
	}
	return out, nil
}

package schema

import (
	"encoding/binary"
	"encoding/hex"
	"slices"

	"github.com/zeebo/blake3"
)

// Fingerprint identifies the canonical description of a Set.
type Fingerprint [32]byte

func (f Fingerprint) String() string {
	return hex.EncodeToString(f[:])
}

// IsZero reports whether f is the zero fingerprint.
func (f Fingerprint) IsZero() bool {
	return f == Fingerprint{}
}

// fingerprintKey is the BLAKE3 key for schema fingerprints. The key is the
// ASCII domain name zero-padded to 32 bytes.
var fingerprintKey = [32]byte{
	'b', 'l', 'o', 'c', 'k', 'r', 'e', 'p', '.', 's', 'c', 'h', 'e', 'm', 'a',
	'.', 'f', 'i', 'n', 'g', 'e', 'r', 'p', 'r', 'i', 'n', 't',
}

// Fingerprint returns the keyed BLAKE3 hash of the set's version and the
// canonical description of every definition, ordered by name. Sets that
// fingerprint equal encode every named type identically.
func (s *Set) Fingerprint() Fingerprint {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.sealed {
		return s.fp
	}
	return s.fingerprintLocked()
}

func (s *Set) fingerprintLocked() Fingerprint {
	hasher, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		panic("schema: fingerprint key rejected: " + err.Error())
	}

	var version [4]byte
	binary.LittleEndian.PutUint32(version[:], s.Version)
	_, _ = hasher.Write(version[:])

	names := make([]string, 0, len(s.defs))
	for name := range s.defs {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		_, _ = hasher.Write([]byte(name))
		_, _ = hasher.Write([]byte{0})
		_, _ = hasher.Write([]byte(s.defs[name].String()))
		_, _ = hasher.Write([]byte{0})
	}

	var fp Fingerprint
	copy(fp[:], hasher.Sum(nil))
	return fp
}

package types

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/iotaledger/hive.go/ierrors"
	"github.com/iotaledger/hive.go/core/marshalutil"
)

// Digest is an opaque 32-byte hash value.
type Digest [32]byte

func DigestFromBytes(b []byte) (Digest, error) {
	var d Digest
	if len(b) != len(d) {
		return d, ierrors.Errorf("digest must be %d bytes, got %d", len(d), len(b))
	}
	copy(d[:], b)

	return d, nil
}

func HashBytes(data []byte) Digest {
	return sha256.Sum256(data)
}

func (d Digest) Bytes() []byte {
	return append([]byte(nil), d[:]...)
}

func (d Digest) Empty() bool {
	return d == Digest{}
}

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

func DigestFromMarshalUtil(m *marshalutil.MarshalUtil) (Digest, error) {
	b, err := m.ReadBytes(32)
	if err != nil {
		return Digest{}, ierrors.Wrap(err, "failed to parse digest")
	}

	return DigestFromBytes(b)
}

// PublicKey is an opaque serialized key. The first byte carries the key
// type; signature verification happens outside this module.
type PublicKey []byte

// KeyType returns the key type discriminator. Keys are validated against
// the number of activated key types, not against curve parameters.
func (p PublicKey) KeyType() uint8 {
	if len(p) == 0 {
		return 0
	}

	return p[0]
}

func (p PublicKey) Bytes() []byte {
	return append([]byte(nil), p...)
}

func (p PublicKey) String() string {
	return hex.EncodeToString(p)
}

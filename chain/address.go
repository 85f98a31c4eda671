package chain

import (
	"crypto/ed25519"
	"fmt"

	"github.com/mr-tron/base58"

	"github.com/kinecosystem/kin-engine/types"
)

// Public addresses are the base58 encoding of a one-byte version prefix
// followed by the raw ed25519 public key.
const addressRawLen = 1 + ed25519.PublicKeySize

// EncodeAddress renders a public key as a version-prefixed address.
func EncodeAddress(version types.Version, pub ed25519.PublicKey) string {
	raw := make([]byte, 0, addressRawLen)
	raw = append(raw, byte(version))
	raw = append(raw, pub...)

	return base58.Encode(raw)
}

// DecodeAddress recovers the public key from an address, checking the
// version prefix.
func DecodeAddress(version types.Version, addr string) (ed25519.PublicKey, error) {
	raw, err := base58.Decode(addr)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPublicAddress, err)
	}

	if len(raw) != addressRawLen {
		return nil, fmt.Errorf("%w: bad length %d", ErrInvalidPublicAddress, len(raw))
	}

	if types.Version(raw[0]) != version {
		return nil, fmt.Errorf("%w: address is %s, want %s",
			ErrInvalidPublicAddress, types.Version(raw[0]), version)
	}

	return ed25519.PublicKey(raw[1:]), nil
}

// ValidateAddress reports whether addr is well formed for the given version.
func ValidateAddress(version types.Version, addr string) error {
	_, err := DecodeAddress(version, addr)
	return err
}

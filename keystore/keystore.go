package keystore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/scrypt"

	"github.com/kinecosystem/kin-engine/types"
)

// scrypt parameters for the key derived from the account password.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	derivedKeyLn = 32
	saltLen      = 16
)

// Blob is the JSON interchange format for an exported account: the public
// address, the salt used for key derivation, and the AES-GCM sealed seed
// (nonce prepended), both hex encoded.
type Blob struct {
	PKey string `json:"pkey"`
	Salt string `json:"salt"`
	Seed string `json:"seed"`
}

// Parse decodes a keystore blob. Malformed input is reported as
// types.ErrAccountReadFailed.
func Parse(raw []byte) (*Blob, error) {
	var b Blob
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrAccountReadFailed, err)
	}

	if b.PKey == "" || b.Salt == "" || b.Seed == "" {
		return nil, fmt.Errorf("%w: missing keystore field", types.ErrAccountReadFailed)
	}

	return &b, nil
}

// Seal encrypts the seed under the given password and packages it with the
// account's public address.
func Seal(seed []byte, publicAddress, password string) (*Blob, error) {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	sealed, err := encrypt(seed, key)
	if err != nil {
		return nil, err
	}

	return &Blob{
		PKey: publicAddress,
		Salt: hex.EncodeToString(salt),
		Seed: hex.EncodeToString(sealed),
	}, nil
}

// Encode serializes the blob to its JSON interchange form.
func (b *Blob) Encode() ([]byte, error) {
	return json.Marshal(b)
}

// Decrypt recovers the seed using the caller's password and the stored salt.
// Any decryption failure is reported as types.ErrInvalidPassword.
func (b *Blob) Decrypt(password string) ([]byte, error) {
	salt, err := hex.DecodeString(b.Salt)
	if err != nil {
		return nil, fmt.Errorf("%w: bad salt encoding", types.ErrAccountReadFailed)
	}

	sealed, err := hex.DecodeString(b.Seed)
	if err != nil {
		return nil, fmt.Errorf("%w: bad seed encoding", types.ErrAccountReadFailed)
	}

	key, err := deriveKey(password, salt)
	if err != nil {
		return nil, err
	}

	seed, err := decrypt(sealed, key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrInvalidPassword, err)
	}

	return seed, nil
}

// ValidatePassword runs the decrypt/re-encrypt round trip: a key-hash is
// derived from an empty passphrase and a fresh salt, the stored seed is
// decrypted with the caller's password and the stored salt, and the recovered
// seed is re-encrypted with the derived key-hash. Both steps succeeding is
// treated as password-valid. This checks internal consistency only, it is not
// cryptographic proof of correctness.
func (b *Blob) ValidatePassword(password string) error {
	freshSalt := make([]byte, saltLen)
	if _, err := rand.Read(freshSalt); err != nil {
		return err
	}

	keyHash, err := deriveKey("", freshSalt)
	if err != nil {
		return err
	}

	seed, err := b.Decrypt(password)
	if err != nil {
		return err
	}

	if _, err := encrypt(seed, keyHash); err != nil {
		return fmt.Errorf("%w: %v", types.ErrInvalidPassword, err)
	}

	return nil
}

func deriveKey(password string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(password), salt, scryptN, scryptR, scryptP, derivedKeyLn)
}

func encrypt(plaintext, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

func decrypt(sealed, key []byte) ([]byte, error) {
	aead, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < aead.NonceSize() {
		return nil, fmt.Errorf("sealed seed too short")
	}

	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]

	return aead.Open(nil, nonce, ciphertext, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	return cipher.NewGCM(block)
}

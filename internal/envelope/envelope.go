// Package envelope is the encryption boundary for privileged payloads.
// Plaintext never crosses it outward: Seal runs before persistence, Open runs
// after retrieval, and the authenticated-encryption associated data binds
// every ciphertext to its attorney-client pair so a record cannot be replayed
// under a different relationship.
package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	id "lexguard/pkg/domain"
)

var (
	// ErrDecryption indicates the ciphertext failed authentication, either
	// corrupted or opened under the wrong relationship context.
	ErrDecryption = errors.New("decryption failed")
	// ErrKeyUnavailable indicates the keyRef names a key version the keyring
	// cannot resolve. Fatal for that record, not for the service.
	ErrKeyUnavailable = errors.New("key unavailable")
)

const saltSize = 16

// Context binds a ciphertext to the attorney-client pair that owns it.
type Context struct {
	AttorneyID id.AttorneyID
	ClientID   id.ClientID
}

func (c Context) associatedData() []byte {
	return []byte(c.AttorneyID.String() + "|" + c.ClientID.String())
}

// Envelope seals and opens privileged payloads with per-record keys derived
// from the keyring. It holds no caller state and is safe for concurrent use.
type Envelope struct {
	keyring *Keyring
}

func New(keyring *Keyring) *Envelope {
	return &Envelope{keyring: keyring}
}

// Seal encrypts plaintext under a fresh per-record key and returns the
// ciphertext together with the keyRef ("version:salthex") needed to open it.
// Key material is referenced, never embedded in the record.
func (e *Envelope) Seal(plaintext []byte, ctx Context) ([]byte, string, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, "", fmt.Errorf("generate record salt: %w", err)
	}

	version := e.keyring.CurrentVersion()
	key, err := e.keyring.derive(version, salt)
	if err != nil {
		return nil, "", err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, "", fmt.Errorf("generate nonce: %w", err)
	}

	// Nonce is prepended so the record stays a single opaque blob.
	ciphertext := aead.Seal(nonce, nonce, plaintext, ctx.associatedData())
	keyRef := version + ":" + hex.EncodeToString(salt)
	return ciphertext, keyRef, nil
}

// Open decrypts a sealed payload. It fails with ErrKeyUnavailable when the
// keyRef's version is gone from the keyring and ErrDecryption when the
// ciphertext does not authenticate under the given relationship context.
func (e *Envelope) Open(ciphertext []byte, keyRef string, ctx Context) ([]byte, error) {
	version, salt, err := parseKeyRef(keyRef)
	if err != nil {
		return nil, err
	}
	key, err := e.keyring.derive(version, salt)
	if err != nil {
		return nil, err
	}

	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < aead.NonceSize() {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecryption)
	}
	nonce, sealed := ciphertext[:aead.NonceSize()], ciphertext[aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, sealed, ctx.associatedData())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryption, err)
	}
	return plaintext, nil
}

// SelfTest round-trips a probe payload, used by the health check.
func (e *Envelope) SelfTest() error {
	probe := []byte("envelope self-test")
	ctx := Context{}
	sealed, keyRef, err := e.Seal(probe, ctx)
	if err != nil {
		return err
	}
	opened, err := e.Open(sealed, keyRef, ctx)
	if err != nil {
		return err
	}
	if string(opened) != string(probe) {
		return errors.New("envelope self-test round-trip mismatch")
	}
	return nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

func parseKeyRef(keyRef string) (version string, salt []byte, err error) {
	version, saltHex, ok := strings.Cut(keyRef, ":")
	if !ok || version == "" {
		return "", nil, fmt.Errorf("%w: malformed keyRef", ErrKeyUnavailable)
	}
	salt, err = hex.DecodeString(saltHex)
	if err != nil || len(salt) != saltSize {
		return "", nil, fmt.Errorf("%w: malformed keyRef salt", ErrKeyUnavailable)
	}
	return version, salt, nil
}

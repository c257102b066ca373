package envelope

import (
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"
	"sort"
	"strings"

	"golang.org/x/crypto/hkdf"

	dErrors "lexguard/pkg/domainerrors"
)

// Keyring resolves key versions to master secrets. Sealing always uses the
// current version; opening resolves whichever version the record's keyRef
// names, so rotation never invalidates previously sealed records.
type Keyring struct {
	masters map[string][]byte
	current string
}

// NewKeyring builds a keyring from version -> master secret. The current
// version is the lexicographically highest, matching the "v1" < "v2"
// naming used in configuration.
func NewKeyring(masters map[string][]byte) (*Keyring, error) {
	if len(masters) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "keyring requires at least one master secret")
	}
	versions := make([]string, 0, len(masters))
	for v, secret := range masters {
		if v == "" || strings.Contains(v, ":") {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "key version must be non-empty and contain no colon")
		}
		if len(secret) < 16 {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "master secret must be at least 16 bytes")
		}
		versions = append(versions, v)
	}
	sort.Strings(versions)
	return &Keyring{masters: masters, current: versions[len(versions)-1]}, nil
}

// ParseKeyring parses the configuration form "v1:base64secret,v2:base64secret".
func ParseKeyring(spec string) (*Keyring, error) {
	if spec == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "empty keyring spec")
	}
	masters := make(map[string][]byte)
	for _, part := range strings.Split(spec, ",") {
		version, encoded, ok := strings.Cut(strings.TrimSpace(part), ":")
		if !ok {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "keyring entry must be version:secret")
		}
		secret, err := base64.RawStdEncoding.DecodeString(encoded)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "keyring secret is not valid base64")
		}
		masters[version] = secret
	}
	return NewKeyring(masters)
}

// CurrentVersion returns the version used for new seals.
func (k *Keyring) CurrentVersion() string { return k.current }

// derive produces the 32-byte record key for (version, salt) via HKDF-SHA256.
// Record keys are never stored; the keyRef carries version and salt instead.
func (k *Keyring) derive(version string, salt []byte) ([]byte, error) {
	master, ok := k.masters[version]
	if !ok {
		return nil, fmt.Errorf("%w: key version %q", ErrKeyUnavailable, version)
	}
	key := make([]byte, 32)
	r := hkdf.New(sha256.New, master, salt, []byte("lexguard/record-key"))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive record key: %w", err)
	}
	return key, nil
}

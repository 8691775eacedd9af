// Package cryptox seals small secrets (tenant database DSNs) at rest.
//
// A Keyring holds one or more named keys. The first key is primary and seals
// new values; the others can only open values sealed before a rotation.
// Sealed values have the form "<keyID>.<base64url(nonce||ciphertext)>".
package cryptox

import (
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dmitrijs2005/estatematch/internal/common"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

var (
	ErrNoKeys              = errors.New("keyring: no keys configured")
	ErrUnknownKey          = errors.New("keyring: unknown key id")
	ErrMalformedCiphertext = errors.New("keyring: malformed ciphertext")
)

const hkdfSalt = "estatematch/tenant-dsn"

type Keyring struct {
	primary string
	aeads   map[string]cipher.AEAD
}

// DeriveKey stretches a configured secret into a 32-byte key bound to id.
func DeriveKey(id string, secret []byte) ([]byte, error) {
	key := make([]byte, chacha20poly1305.KeySize)
	r := hkdf.New(sha256.New, secret, []byte(hkdfSalt), []byte(id))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, err
	}
	return key, nil
}

// NewKeyring parses "id:secret" specs. The first spec becomes primary.
func NewKeyring(specs []string) (*Keyring, error) {
	if len(specs) == 0 {
		return nil, ErrNoKeys
	}

	k := &Keyring{aeads: make(map[string]cipher.AEAD, len(specs))}
	for i, spec := range specs {
		id, secret, ok := strings.Cut(spec, ":")
		id = strings.TrimSpace(id)
		if !ok || id == "" || secret == "" || strings.Contains(id, ".") {
			return nil, fmt.Errorf("keyring: bad key spec #%d (want id:secret)", i+1)
		}
		if _, dup := k.aeads[id]; dup {
			return nil, fmt.Errorf("keyring: duplicate key id %q", id)
		}

		key, err := DeriveKey(id, []byte(secret))
		if err != nil {
			return nil, err
		}
		aead, err := chacha20poly1305.NewX(key)
		common.WipeByteArray(key)
		if err != nil {
			return nil, err
		}

		k.aeads[id] = aead
		if i == 0 {
			k.primary = id
		}
	}
	return k, nil
}

// PrimaryID returns the id of the key used by Seal.
func (k *Keyring) PrimaryID() string {
	return k.primary
}

// Seal encrypts plaintext with the primary key. The key id is bound as
// additional data so a value cannot be relabelled to another key.
func (k *Keyring) Seal(plaintext string) (string, error) {
	aead := k.aeads[k.primary]

	nonce := common.GenerateRandByteArray(aead.NonceSize())
	out := aead.Seal(nonce, nonce, []byte(plaintext), []byte(k.primary))

	return k.primary + "." + base64.RawURLEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal with any key in the ring.
func (k *Keyring) Open(sealed string) (string, error) {
	id, payload, err := splitSealed(sealed)
	if err != nil {
		return "", err
	}

	aead, ok := k.aeads[id]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownKey, id)
	}

	raw, err := base64.RawURLEncoding.DecodeString(payload)
	if err != nil || len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformedCiphertext
	}

	nonce, ct := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	pt, err := aead.Open(nil, nonce, ct, []byte(id))
	if err != nil {
		return "", ErrMalformedCiphertext
	}
	return string(pt), nil
}

// NeedsRotation reports whether sealed was produced by a non-primary key.
func (k *Keyring) NeedsRotation(sealed string) bool {
	id, _, err := splitSealed(sealed)
	return err == nil && id != k.primary
}

// Reseal opens sealed and seals it again under the primary key.
func (k *Keyring) Reseal(sealed string) (string, error) {
	pt, err := k.Open(sealed)
	if err != nil {
		return "", err
	}
	return k.Seal(pt)
}

func splitSealed(sealed string) (id, payload string, err error) {
	id, payload, ok := strings.Cut(sealed, ".")
	if !ok || id == "" || payload == "" {
		return "", "", ErrMalformedCiphertext
	}
	return id, payload, nil
}

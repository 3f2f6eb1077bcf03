package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/alexedwards/argon2id"
	"github.com/awnumar/memguard"
	"golang.org/x/crypto/hkdf"
)

// Token prefixes identify credential kinds in logs and tooling without
// revealing material.
const (
	TokenPrefix   = "sw_sess_"
	RefreshPrefix = "sw_ref_"
)

const (
	idBytes    = 32
	tokenBytes = 32
	keyBytes   = 32
	seedBytes  = 64
)

// ErrKeysWiped is returned when key material is accessed after erasure.
var ErrKeysWiped = errors.New("session keys wiped")

// GenerateID returns a cryptographically random session identifier,
// 32 bytes hex-encoded.
func GenerateID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// newToken returns a prefixed random bearer credential.
func newToken(prefix string) (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return prefix + hex.EncodeToString(b), nil
}

// HashToken returns the hex SHA-256 of a bearer token. The token index
// stores only this hash, never the token itself.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// KeyStrategy produces the enhanced key material attached to a session's
// key set. Strategies reporting PostQuantum()=true unlock the Quantum
// security level.
type KeyStrategy interface {
	Name() string
	PostQuantum() bool
	EnhancedMaterial() ([]byte, error)
}

// SimulatedPQStrategy is a stand-in for a real key-encapsulation
// mechanism. The material it produces is plain random bytes with no
// post-quantum properties; it exists so the slot, wiping, and rotation
// paths are exercised until a real KEM is integrated.
type SimulatedPQStrategy struct{}

func (SimulatedPQStrategy) Name() string { return "simulated-pq-hybrid" }

func (SimulatedPQStrategy) PostQuantum() bool { return false }

func (SimulatedPQStrategy) EnhancedMaterial() ([]byte, error) {
	b := make([]byte, seedBytes)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("generate enhanced material: %w", err)
	}
	return b, nil
}

// KeySet holds a session's credential material. The encryption and
// signing keys live in sealed enclaves and are only exposed through
// short-lived locked buffers; bearer credentials are stored as hash or
// verifier only.
type KeySet struct {
	TokenHash       string    `json:"-"`
	RefreshVerifier string    `json:"-"`
	Strategy        string    `json:"strategy"`
	RotationCount   int       `json:"rotation_count"`
	RotatedAt       time.Time `json:"rotated_at"`

	encKey   *memguard.Enclave
	sigKey   *memguard.Enclave
	enhanced []byte
}

// IssuedKeys pairs a key set with the bearer cleartexts. The cleartexts
// are returned exactly once and never stored.
type IssuedKeys struct {
	Keys         *KeySet
	Token        string
	RefreshToken string
}

// GenerateKeys creates a fresh key set: a bearer token (indexed by
// SHA-256 only), a one-time refresh token (stored as an Argon2id
// verifier), HKDF-derived encryption and signing keys sealed in
// enclaves, and the strategy's enhanced material.
func GenerateKeys(strategy KeyStrategy) (*IssuedKeys, error) {
	seed := make([]byte, seedBytes)
	if _, err := rand.Read(seed); err != nil {
		return nil, fmt.Errorf("generate key seed: %w", err)
	}
	defer memguard.WipeBytes(seed)

	encKey, err := deriveKey(seed, "swaggo/session enc v1")
	if err != nil {
		return nil, err
	}
	sigKey, err := deriveKey(seed, "swaggo/session sig v1")
	if err != nil {
		memguard.WipeBytes(encKey)
		return nil, err
	}

	token, err := newToken(TokenPrefix)
	if err != nil {
		return nil, err
	}
	refresh, err := newToken(RefreshPrefix)
	if err != nil {
		return nil, err
	}
	verifier, err := argon2id.CreateHash(refresh, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("hash refresh token: %w", err)
	}

	enhanced, err := strategy.EnhancedMaterial()
	if err != nil {
		return nil, err
	}

	ks := &KeySet{
		TokenHash:       HashToken(token),
		RefreshVerifier: verifier,
		Strategy:        strategy.Name(),
		RotatedAt:       time.Now().UTC(),
		encKey:          memguard.NewEnclave(encKey),
		sigKey:          memguard.NewEnclave(sigKey),
		enhanced:        enhanced,
	}
	return &IssuedKeys{Keys: ks, Token: token, RefreshToken: refresh}, nil
}

// deriveKey expands the seed into a labeled subkey.
func deriveKey(seed []byte, info string) ([]byte, error) {
	r := hkdf.New(sha256.New, seed, nil, []byte(info))
	key := make([]byte, keyBytes)
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("derive %q: %w", info, err)
	}
	return key, nil
}

// Rotate regenerates the internal key material in place: fresh
// encryption and signing keys from a new seed, and fresh strategy
// material. The bearer hash and refresh verifier are untouched, so the
// credentials the client holds stay valid. Replaced enhanced bytes are
// zeroed before release.
func (k *KeySet) Rotate(strategy KeyStrategy, now time.Time) error {
	if k.Wiped() {
		return ErrKeysWiped
	}
	seed := make([]byte, seedBytes)
	if _, err := rand.Read(seed); err != nil {
		return fmt.Errorf("generate key seed: %w", err)
	}
	defer memguard.WipeBytes(seed)

	encKey, err := deriveKey(seed, "swaggo/session enc v1")
	if err != nil {
		return err
	}
	sigKey, err := deriveKey(seed, "swaggo/session sig v1")
	if err != nil {
		memguard.WipeBytes(encKey)
		return err
	}
	enhanced, err := strategy.EnhancedMaterial()
	if err != nil {
		memguard.WipeBytes(encKey)
		memguard.WipeBytes(sigKey)
		return err
	}

	memguard.WipeBytes(k.enhanced)
	k.enhanced = enhanced
	k.encKey = memguard.NewEnclave(encKey)
	k.sigKey = memguard.NewEnclave(sigKey)
	k.Strategy = strategy.Name()
	k.RotationCount++
	k.RotatedAt = now
	return nil
}

// OpenEncryptionKey returns the encryption key in a locked buffer the
// caller must Destroy after use.
func (k *KeySet) OpenEncryptionKey() (*memguard.LockedBuffer, error) {
	if k.encKey == nil {
		return nil, ErrKeysWiped
	}
	return k.encKey.Open()
}

// OpenSigningKey returns the signing key in a locked buffer the caller
// must Destroy after use.
func (k *KeySet) OpenSigningKey() (*memguard.LockedBuffer, error) {
	if k.sigKey == nil {
		return nil, ErrKeysWiped
	}
	return k.sigKey.Open()
}

// VerifyRefreshToken checks a presented refresh token against the stored
// verifier.
func (k *KeySet) VerifyRefreshToken(refresh string) (bool, error) {
	if k.RefreshVerifier == "" {
		return false, ErrKeysWiped
	}
	match, err := argon2id.ComparePasswordAndHash(refresh, k.RefreshVerifier)
	if err != nil {
		return false, fmt.Errorf("verify refresh token: %w", err)
	}
	return match, nil
}

// SetRefreshVerifier replaces the refresh verifier after a rotation.
func (k *KeySet) SetRefreshVerifier(verifier string) {
	k.RefreshVerifier = verifier
}

// Wipe erases the key material: the enhanced bytes are zeroed in place,
// the enclaves are dropped, and the bearer hash and verifier are
// cleared. Wipe is idempotent.
func (k *KeySet) Wipe() {
	memguard.WipeBytes(k.enhanced)
	k.enhanced = nil
	k.encKey = nil
	k.sigKey = nil
	k.TokenHash = ""
	k.RefreshVerifier = ""
}

// Wiped reports whether the key material has been erased.
func (k *KeySet) Wiped() bool {
	return k.encKey == nil && k.sigKey == nil && k.enhanced == nil
}

// Clone returns a copy of the key set. Sealed enclaves are immutable and
// shared; the enhanced material is copied.
func (k *KeySet) Clone() *KeySet {
	cp := *k
	if k.enhanced != nil {
		cp.enhanced = append([]byte(nil), k.enhanced...)
	}
	return &cp
}

// NewBearerToken issues a replacement bearer token.
func NewBearerToken() (string, error) {
	return newToken(TokenPrefix)
}

// NewRefreshToken issues a replacement refresh token and its verifier.
func NewRefreshToken() (token, verifier string, err error) {
	token, err = newToken(RefreshPrefix)
	if err != nil {
		return "", "", err
	}
	verifier, err = argon2id.CreateHash(token, argon2id.DefaultParams)
	if err != nil {
		return "", "", fmt.Errorf("hash refresh token: %w", err)
	}
	return token, verifier, nil
}

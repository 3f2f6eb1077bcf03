package session

import (
	"bytes"
	"encoding/hex"
	"errors"
	"strings"
	"testing"
)

func TestGenerateID(t *testing.T) {
	a, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: %v", err)
	}
	if len(a) != 64 {
		t.Errorf("id length = %d, want 64 hex chars", len(a))
	}
	if _, err := hex.DecodeString(a); err != nil {
		t.Errorf("id is not hex: %v", err)
	}
	b, err := GenerateID()
	if err != nil {
		t.Fatalf("GenerateID: %v", err)
	}
	if a == b {
		t.Error("two generated ids collided")
	}
}

func TestHashToken(t *testing.T) {
	h1 := HashToken("sw_sess_abc")
	h2 := HashToken("sw_sess_abc")
	h3 := HashToken("sw_sess_abd")
	if h1 != h2 {
		t.Error("hash is not deterministic")
	}
	if h1 == h3 {
		t.Error("distinct tokens hashed identically")
	}
	if len(h1) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(h1))
	}
}

func TestGenerateKeys(t *testing.T) {
	ik, err := GenerateKeys(SimulatedPQStrategy{})
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	if !strings.HasPrefix(ik.Token, TokenPrefix) {
		t.Errorf("token %q missing %q prefix", ik.Token, TokenPrefix)
	}
	if !strings.HasPrefix(ik.RefreshToken, RefreshPrefix) {
		t.Errorf("refresh token %q missing %q prefix", ik.RefreshToken, RefreshPrefix)
	}
	if ik.Keys.TokenHash != HashToken(ik.Token) {
		t.Error("stored token hash does not match issued token")
	}
	if ik.Keys.Strategy != "simulated-pq-hybrid" {
		t.Errorf("strategy = %q", ik.Keys.Strategy)
	}
	if ik.Keys.RotationCount != 0 {
		t.Errorf("fresh key set has rotation count %d", ik.Keys.RotationCount)
	}
	if len(ik.Keys.enhanced) != seedBytes {
		t.Errorf("enhanced material = %d bytes, want %d", len(ik.Keys.enhanced), seedBytes)
	}

	match, err := ik.Keys.VerifyRefreshToken(ik.RefreshToken)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if !match {
		t.Error("issued refresh token did not verify")
	}
	match, err = ik.Keys.VerifyRefreshToken("sw_ref_wrong")
	if err != nil {
		t.Fatalf("VerifyRefreshToken(wrong): %v", err)
	}
	if match {
		t.Error("wrong refresh token verified")
	}

	enc, err := ik.Keys.OpenEncryptionKey()
	if err != nil {
		t.Fatalf("OpenEncryptionKey: %v", err)
	}
	defer enc.Destroy()
	sig, err := ik.Keys.OpenSigningKey()
	if err != nil {
		t.Fatalf("OpenSigningKey: %v", err)
	}
	defer sig.Destroy()
	if len(enc.Bytes()) != keyBytes || len(sig.Bytes()) != keyBytes {
		t.Errorf("derived key sizes = %d/%d, want %d", len(enc.Bytes()), len(sig.Bytes()), keyBytes)
	}
	if bytes.Equal(enc.Bytes(), sig.Bytes()) {
		t.Error("encryption and signing keys are identical")
	}
}

func TestKeySetWipe(t *testing.T) {
	ik, err := GenerateKeys(SimulatedPQStrategy{})
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	ks := ik.Keys
	enhanced := ks.enhanced

	ks.Wipe()
	if !ks.Wiped() {
		t.Fatal("Wiped() = false after Wipe")
	}
	for i, b := range enhanced {
		if b != 0 {
			t.Fatalf("enhanced material byte %d not zeroed", i)
		}
	}
	if ks.TokenHash != "" || ks.RefreshVerifier != "" {
		t.Error("bearer hash or verifier survived wipe")
	}
	if _, err := ks.OpenEncryptionKey(); !errors.Is(err, ErrKeysWiped) {
		t.Errorf("OpenEncryptionKey after wipe: %v, want ErrKeysWiped", err)
	}
	if _, err := ks.VerifyRefreshToken("x"); !errors.Is(err, ErrKeysWiped) {
		t.Errorf("VerifyRefreshToken after wipe: %v, want ErrKeysWiped", err)
	}

	// Wipe is idempotent.
	ks.Wipe()
}

func TestKeySetClone(t *testing.T) {
	ik, err := GenerateKeys(SimulatedPQStrategy{})
	if err != nil {
		t.Fatalf("GenerateKeys: %v", err)
	}
	cp := ik.Keys.Clone()

	cp.enhanced[0] ^= 0xff
	if ik.Keys.enhanced[0] == cp.enhanced[0] {
		t.Error("clone shares enhanced material backing array")
	}

	// Sealed enclaves are shared and still open from the clone.
	buf, err := cp.OpenSigningKey()
	if err != nil {
		t.Fatalf("clone OpenSigningKey: %v", err)
	}
	buf.Destroy()
}

func TestNewRefreshToken(t *testing.T) {
	token, verifier, err := NewRefreshToken()
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if !strings.HasPrefix(token, RefreshPrefix) {
		t.Errorf("token %q missing %q prefix", token, RefreshPrefix)
	}
	ks := &KeySet{}
	ks.SetRefreshVerifier(verifier)
	match, err := ks.VerifyRefreshToken(token)
	if err != nil {
		t.Fatalf("VerifyRefreshToken: %v", err)
	}
	if !match {
		t.Error("fresh refresh token did not verify against its verifier")
	}
}

package poa

import (
	"crypto/ed25519"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVerifyValidSignature(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)
	g, err := NewFromKeys(pub)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, Message(42))
	require.True(t, g.Verify(42, sig, hexEncode(pub)))
}

func TestVerifyUnknownKey(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	otherPub, _, _ := ed25519.GenerateKey(nil)
	g, err := NewFromKeys(otherPub)
	require.NoError(t, err)

	// The signature is valid for pub, but pub is not in the authorized set.
	sig := ed25519.Sign(priv, Message(1))
	require.False(t, g.Verify(1, sig, hexEncode(pub)))
}

func TestVerifyWrongSeq(t *testing.T) {
	pub, priv, _ := ed25519.GenerateKey(nil)
	g, err := NewFromKeys(pub)
	require.NoError(t, err)

	sig := ed25519.Sign(priv, Message(1))
	require.False(t, g.Verify(2, sig, hexEncode(pub)))
}

func TestAuthorizedDistinguishesUnknownKeys(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	stranger, _, _ := ed25519.GenerateKey(nil)
	g, err := NewFromKeys(pub)
	require.NoError(t, err)

	require.True(t, g.Authorized(hexEncode(pub)))
	require.False(t, g.Authorized(hexEncode(stranger)))
	require.False(t, g.Authorized("zz-not-hex"))
}

func TestVerifyMalformedInputsNeverPanics(t *testing.T) {
	pub, _, _ := ed25519.GenerateKey(nil)
	g, err := NewFromKeys(pub)
	require.NoError(t, err)

	require.False(t, g.Verify(1, []byte("not-a-signature"), hexEncode(pub)))
	require.False(t, g.Verify(1, nil, "not-hex-at-all"))
}

func TestLoadRejectsEmptyKeySet(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys.txt")
	require.NoError(t, os.WriteFile(path, []byte("\n\n"), 0o600))

	_, err := Load(path)
	require.ErrorIs(t, err, ErrNoAuthorizedKeys)
}

func TestLoadParsesNewlineSeparatedHexKeys(t *testing.T) {
	pub1, _, _ := ed25519.GenerateKey(nil)
	pub2, _, _ := ed25519.GenerateKey(nil)
	dir := t.TempDir()
	path := filepath.Join(dir, "authorized_keys.txt")
	content := hexEncode(pub1) + "\n\n" + hexEncode(pub2) + "\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	g, err := Load(path)
	require.NoError(t, err)
	require.Len(t, g.keys, 2)
}

func hexEncode(k ed25519.PublicKey) string {
	return hex.EncodeToString(k)
}

// Copyright 2025 Esteban Alvarez. All Rights Reserved.
//
// Created: October 2025
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package poa implements the proof-of-authority gate that guards every
// committed state transition: a COMMIT is only honored if it carries a
// valid Ed25519 signature, from a pre-enrolled key, over the ASCII
// decimal encoding of the cycle's seq.
package poa

import (
	"bufio"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ErrNoAuthorizedKeys is returned by Load when the keys file contains
// no keys at all (only blank lines). Operating with zero authorized keys means no COMMIT
// can ever be accepted, so callers should treat this as process-fatal.
var ErrNoAuthorizedKeys = errors.New("poa: no authorized keys loaded")

// Gate holds the immutable set of Ed25519 verification keys authorized
// to approve state transitions. It is read-only after Load.
type Gate struct {
	keys map[string]ed25519.PublicKey // hex-encoded key -> parsed key
}

// Load reads a newline-separated file of hex-encoded Ed25519 public
// keys (blank lines ignored) and returns a Gate. A file with no keys
// returns ErrNoAuthorizedKeys; any non-blank line that is not a
// hex-encoded 32-byte key fails the whole load with a malformed-key
// error.
func Load(path string) (*Gate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("poa: open authorized keys: %w", err)
	}
	defer f.Close()

	g := &Gate{keys: make(map[string]ed25519.PublicKey)}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil || len(raw) != ed25519.PublicKeySize {
			return nil, fmt.Errorf("poa: malformed authorized key %q", line)
		}
		g.keys[strings.ToLower(line)] = ed25519.PublicKey(raw)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("poa: read authorized keys: %w", err)
	}
	if len(g.keys) == 0 {
		return nil, ErrNoAuthorizedKeys
	}
	return g, nil
}

// NewFromKeys builds a Gate directly from a set of public keys,
// bypassing file I/O. Used by tests and by callers that already hold
// parsed keys.
func NewFromKeys(keys ...ed25519.PublicKey) (*Gate, error) {
	g := &Gate{keys: make(map[string]ed25519.PublicKey, len(keys))}
	for _, k := range keys {
		g.keys[strings.ToLower(hex.EncodeToString(k))] = k
	}
	if len(g.keys) == 0 {
		return nil, ErrNoAuthorizedKeys
	}
	return g, nil
}

// Authorized reports whether claimedPubkeyHex names a key in the
// authorized set, without checking any signature. Callers use it to
// distinguish an unknown key from a bad signature when reporting a
// rejection.
func (g *Gate) Authorized(claimedPubkeyHex string) bool {
	_, ok := g.keys[strings.ToLower(strings.TrimSpace(claimedPubkeyHex))]
	return ok
}

// Verify checks sig over the ASCII decimal encoding of seq against the
// key named by claimedPubkeyHex. It never panics and never returns an
// error to the caller: an unknown key, a bad signature, or a malformed
// hex string are all simply "not verified".
func (g *Gate) Verify(seq uint64, sig []byte, claimedPubkeyHex string) bool {
	key, ok := g.keys[strings.ToLower(strings.TrimSpace(claimedPubkeyHex))]
	if !ok {
		return false
	}
	if len(sig) != ed25519.SignatureSize {
		return false
	}
	message := []byte(strconv.FormatUint(seq, 10))
	return ed25519.Verify(key, message, sig)
}

// Message returns the canonical byte string signed for a given seq,
// exposed so tooling (tests, a future operator collaborator) can
// construct valid COMMIT signatures without duplicating the encoding.
func Message(seq uint64) []byte {
	return []byte(strconv.FormatUint(seq, 10))
}

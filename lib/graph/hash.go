// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package graph

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"

	"github.com/riskwire/kwire/lib/codec"
)

// Hash is the 32-byte BLAKE3 identity of a graph.
type Hash [32]byte

// String returns the hex encoding of the hash.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// Short returns the first 12 hex digits, for display.
func (h Hash) Short() string {
	return h.String()[:12]
}

// ParseHash parses a hex-encoded graph hash.
func ParseHash(text string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return hash, fmt.Errorf("parsing graph hash: %w", err)
	}
	if len(decoded) != len(hash) {
		return hash, fmt.Errorf("graph hash is %d bytes, want %d", len(decoded), len(hash))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// hashDomainKey separates graph hashes from any other BLAKE3 use. The
// bytes are the ASCII domain name, zero-padded to 32 bytes.
var hashDomainKey = [32]byte{
	'k', 'w', 'i', 'r', 'e', '.', 'g', 'r', 'a', 'p', 'h',
}

// Hash returns the keyed BLAKE3 hash of the graph's deterministic CBOR
// encoding. Graphs that differ in any field hash differently.
func (g *Graph) Hash() (Hash, error) {
	data, err := g.Encode()
	if err != nil {
		return Hash{}, err
	}

	hasher, err := blake3.NewKeyed(hashDomainKey[:])
	if err != nil {
		return Hash{}, fmt.Errorf("initializing graph hasher: %w", err)
	}
	hasher.Write(data)

	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash, nil
}

// Encode returns the deterministic CBOR encoding of the graph.
func (g *Graph) Encode() ([]byte, error) {
	data, err := codec.Marshal(g)
	if err != nil {
		return nil, fmt.Errorf("encoding graph %q: %w", g.Name, err)
	}
	return data, nil
}

// Decode parses a CBOR-encoded graph.
func Decode(data []byte) (*Graph, error) {
	var g Graph
	if err := codec.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("decoding graph: %w", err)
	}
	return &g, nil
}

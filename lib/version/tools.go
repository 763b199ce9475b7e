// Copyright 2026 The Kwire Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// Tool describes one resolved external program.
type Tool struct {
	Name   string `json:"name"`
	Path   string `json:"path,omitempty"`
	Digest string `json:"digest,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Tools resolves each name with resolve and fingerprints the binary.
// Failures are recorded per tool rather than returned.
func Tools(names []string, resolve func(string) (string, error)) []Tool {
	tools := make([]Tool, 0, len(names))
	for _, name := range names {
		tool := Tool{Name: name}
		path, err := resolve(name)
		if err != nil {
			tool.Error = err.Error()
			tools = append(tools, tool)
			continue
		}
		tool.Path = path
		digest, err := HashFile(path)
		if err != nil {
			tool.Error = err.Error()
		} else {
			tool.Digest = FormatDigest(digest)
		}
		tools = append(tools, tool)
	}
	return tools
}

// HashFile returns the BLAKE3 digest of the file at path, streamed in
// chunks.
func HashFile(path string) ([32]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return [32]byte{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()

	hasher := blake3.New()
	if _, err := io.Copy(hasher, file); err != nil {
		return [32]byte{}, fmt.Errorf("hashing %s: %w", path, err)
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// FormatDigest hex-encodes a digest.
func FormatDigest(digest [32]byte) string {
	return hex.EncodeToString(digest[:])
}

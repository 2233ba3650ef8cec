// Package fingerprint computes content hashes used as import idempotency
// keys. Hashing is streamed so large spreadsheets are never held in memory.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
)

const chunkSize = 64 * 1024

// Reader hashes everything readable from r and returns the hex digest and
// the number of bytes consumed.
func Reader(r io.Reader) (string, int64, error) {
	hasher := sha256.New()
	buf := make([]byte, chunkSize)
	size, err := io.CopyBuffer(hasher, r, buf)
	if err != nil {
		return "", 0, fmt.Errorf("failed to hash stream: %w", err)
	}
	return hex.EncodeToString(hasher.Sum(nil)), size, nil
}

// File hashes the file at path.
func File(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	hash, size, err := Reader(f)
	if err != nil {
		return "", 0, fmt.Errorf("failed to fingerprint %s: %w", path, err)
	}
	return hash, size, nil
}

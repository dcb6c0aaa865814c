// Package dedup detects duplicate documents and duplicate transactions.
//
// Documents are identified by a SHA-256 digest of their raw bytes.
// Transactions are identified by a fingerprint of their business key
// (date, amount, employee ID, family); see model.Fingerprint. A duplicate
// is a distinguished successful result, never an error: callers decide
// whether to reject, skip, or force re-processing.
package dedup

import (
	"crypto/sha256"
	"fmt"
	"io"
	"os"
)

// hashChunkSize is the read size for streaming hashes.
const hashChunkSize = 8192

// HashBytes returns the SHA-256 hex digest of a byte slice.
func HashBytes(content []byte) string {
	sum := sha256.Sum256(content)
	return fmt.Sprintf("%x", sum)
}

// HashReader streams a reader through SHA-256 in fixed-size chunks and
// returns the hex digest.
func HashReader(r io.Reader) (string, error) {
	h := sha256.New()
	buf := make([]byte, hashChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			h.Write(buf[:n])
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("failed to read content: %w", err)
		}
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// HashFile returns the SHA-256 hex digest of a file's contents.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return HashReader(f)
}

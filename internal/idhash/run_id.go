package idhash

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/mr-tron/base58"
)

// runIDBytes is the hash prefix length kept in a run_id.
const runIDBytes = 16

// ComputeRunID derives a short run identifier.
// Formula: base58(SHA256(config_fingerprint|started_at_unix_nano)[:16])
// The same configuration started at the same instant yields the same ID.
func ComputeRunID(configFingerprint string, startedAt time.Time) string {
	data := fmt.Sprintf("%s|%d", configFingerprint, startedAt.UnixNano())
	hash := sha256.Sum256([]byte(data))
	return base58.Encode(hash[:runIDBytes])
}

// DecodeRunID returns the raw hash prefix of a run_id.
func DecodeRunID(runID string) ([]byte, error) {
	raw, err := base58.Decode(runID)
	if err != nil {
		return nil, fmt.Errorf("decode run id: %w", err)
	}
	if len(raw) != runIDBytes {
		return nil, fmt.Errorf("decode run id: expected %d bytes, got %d", runIDBytes, len(raw))
	}
	return raw, nil
}

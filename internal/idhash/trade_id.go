package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// ComputeTradeID computes a deterministic trade_id using SHA256.
// Formula: SHA256(run_id|subset|ticker|listing_date|buy|sell)
// Returns hex-encoded hash (64 characters).
func ComputeTradeID(
	runID string,
	subset string,
	ticker string,
	listingDate string,
	window string,
) string {
	data := fmt.Sprintf("%s|%s|%s|%s|%s",
		runID,
		subset,
		ticker,
		listingDate,
		window,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

package idhash

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mrterryt40/yahuti-trade-engine-sub000/internal/domain"
)

// ComputeCandidateID computes a deterministic candidate_id using SHA256.
// Formula: SHA256(source|sku|kind|cost_cents)
// Returns hex-encoded hash (64 characters).
//
// The same deal rediscovered on a later scan hashes to the same ID, so the
// store's duplicate-key error dedupes it for free.
func ComputeCandidateID(source domain.SupplySource, sku string, kind domain.InventoryKind, cost float64) string {
	costCents := int64(cost*100 + 0.5)

	data := fmt.Sprintf("%s|%s|%s|%d",
		string(source),
		sku,
		string(kind),
		costCents,
	)

	hash := sha256.Sum256([]byte(data))
	return hex.EncodeToString(hash[:])
}

// Package hashing implements the domain-separated hash functions that
// keep the four collections (users, interactions, notifications,
// reports) cryptographically unlinkable from a raw uid alone.
//
// Each function prefixes a distinct salt before hashing, so
// H_I(uid), H_N(uid), H_R(uid) land in disjoint output spaces even
// though they're all derived from the same underlying identity. H_C is
// the odd one out: it hashes an already-hashed interaction id, never a
// raw uid directly — see ChainLink below.
package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

func sum(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Interaction computes H_I(uid) = SHA256(upper(uid)). This is the hash
// stored as Interaction.OwnerID / Interaction.PartnerAnonymousID and as
// User.HashedInteractionID.
func Interaction(uid string) string {
	return sum(strings.ToUpper(uid))
}

// Notification computes H_N(uid) = SHA256("notification:" + upper(uid)).
// This is the hash stored as Notification.RecipientID and as
// User.HashedNotificationID.
func Notification(uid string) string {
	return sum("notification:", strings.ToUpper(uid))
}

// Report computes H_R(uid) = SHA256("report:" + upper(uid)), stored as
// Report.ReporterID.
func Report(uid string) string {
	return sum("report:", strings.ToUpper(uid))
}

// ChainLink computes H_C(h) = SHA256("chain:" + h) over an
// already-computed H_I hash, never over a raw uid. Notification.ChainPath
// entries are ChainLink(Interaction(uid)), not ChainLink(uid).
func ChainLink(hashedInteractionID string) string {
	return sum("chain:", hashedInteractionID)
}

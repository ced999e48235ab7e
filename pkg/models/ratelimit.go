package models

// OperationKind identifies which sliding-window limit applies (C5).
type OperationKind string

const (
	OpPositiveReport  OperationKind = "positive_report"
	OpNegativeTest    OperationKind = "negative_test"
	OpDataExport      OperationKind = "data_export"
	OpAccountRecovery OperationKind = "account_recovery"
)

// Limits are the per-hour ceilings from spec.md §4.5, keyed by
// operation kind.
var Limits = map[OperationKind]int{
	OpPositiveReport:  5,
	OpNegativeTest:    10,
	OpDataExport:      3,
	OpAccountRecovery: 5,
}

// RateLimit is the sliding-window counter document for one (uid, op)
// pair. Document id is "<uid>_<opKind>".
type RateLimit struct {
	Count       int   `json:"count" firestore:"count"`
	WindowStart int64 `json:"windowStart" firestore:"windowStart"`
	ExpiresAt   int64 `json:"expiresAt" firestore:"expiresAt"`
}

// DocID builds the RateLimit document id for a (uid, op) pair.
func DocID(uid string, op OperationKind) string {
	return uid + "_" + string(op)
}

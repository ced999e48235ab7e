package models

// Interaction is a single proximity record, written exclusively by the
// owning client device from an on-device BLE encounter.
//
// It is discoverable by the propagation engine in one direction only:
// queries filter on partnerAnonymousId, never on ownerId. See C8 in
// spec.md §4.8 — "unidirectional discovery" is the privacy gate that
// keeps a user from being notified about contacts they never recorded
// themselves.
type Interaction struct {
	OwnerID                 string `json:"ownerId" firestore:"ownerId"`
	PartnerAnonymousID      string `json:"partnerAnonymousId" firestore:"partnerAnonymousId"`
	PartnerUsernameSnapshot string `json:"partnerUsernameSnapshot,omitempty" firestore:"partnerUsernameSnapshot,omitempty"`
	RecordedAt              int64  `json:"recordedAt" firestore:"recordedAt"`
}

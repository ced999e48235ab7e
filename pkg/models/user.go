package models

// User is the account document backing a single mobile-client identity.
//
// The two hash fields are computed once by the server at account creation
// and never recomputed from client input afterwards — see
// internal/hashing for the domain-separated functions that produce them.
type User struct {
	UID                  string `json:"uid" firestore:"uid"`
	AnonymousID           string `json:"anonymousId" firestore:"anonymousId"`
	Username              string `json:"username,omitempty" firestore:"username,omitempty"`
	CreatedAt             int64  `json:"createdAt" firestore:"createdAt"`
	FCMToken              string `json:"fcmToken,omitempty" firestore:"fcmToken,omitempty"`
	HashedInteractionID   string `json:"hashedInteractionId" firestore:"hashedInteractionId"`
	HashedNotificationID  string `json:"hashedNotificationId" firestore:"hashedNotificationId"`
}

// MaxUsernameLen is the display-name length cap from the data model.
const MaxUsernameLen = 50

// Package push is the C3 Push Dispatcher: it turns a pending
// notification into an FCM multicast, builds localization-key-only
// payloads (lock-screen privacy — see spec.md §6), and classifies
// invalid-token errors so the caller can clear them from the owning
// user document.
package push

import (
	"context"
	"strings"

	"firebase.google.com/go/v4/messaging"
)

// LocKey identifies a push title/body pair, localized client-side.
// The body of a push notification never carries STI or date data.
type LocKey string

const (
	TitleExposure LocKey = "notification_exposure_title"
	BodyExposure  LocKey = "notification_exposure_body"
	TitleUpdate   LocKey = "notification_update_title"
	BodyUpdate    LocKey = "notification_update_body"
	TitleDeleted  LocKey = "notification_report_deleted_title"
	BodyDeleted   LocKey = "notification_report_deleted_body"
)

// androidChannel is the fixed notification channel id for the Android
// client; see spec.md §4.3.
const androidChannel = "exposure_notifications"

// FCM error codes that classify a token as permanently invalid, per
// the Firebase Admin SDK messaging error taxonomy.
const (
	errInvalidRegistrationToken   = "messaging/invalid-registration-token"
	errRegistrationTokenNotRegistered = "messaging/registration-token-not-registered"
)

// Record is one pending push: the destination token plus the
// localization keys and opaque data payload to send.
type Record struct {
	Token         string
	NotificationID string
	Type          string
	TitleLocKey   LocKey
	BodyLocKey    LocKey
	Data          map[string]string
}

// Signature groups records that can be sent in the same multicast
// call, per spec.md §4.7's "grouped by payload signature".
func (r Record) Signature() [3]LocKey {
	return [3]LocKey{r.TitleLocKey, r.BodyLocKey, LocKey(r.Type)}
}

// Result is the outcome of a single or multicast send: how many
// succeeded, how many failed, and the indices (within the slice that
// was sent) of tokens that were classified invalid and should be
// cleared from their owning user document.
type Result struct {
	SuccessCount        int
	FailureCount        int
	InvalidTokenIndices []int
}

// Sender abstracts the Firebase Cloud Messaging client so the
// propagation and report-processing packages can be tested without a
// live FCM credential.
type Sender interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Dispatcher sends single and multicast pushes via an FCM Sender.
type Dispatcher struct {
	client Sender
}

func NewDispatcher(client Sender) *Dispatcher {
	return &Dispatcher{client: client}
}

func mergeData(rec Record) map[string]string {
	data := map[string]string{
		"notificationId": rec.NotificationID,
		"type":           rec.Type,
	}
	for k, v := range rec.Data {
		data[k] = v
	}
	return data
}

// SendOne sends a single push and classifies its outcome.
func (d *Dispatcher) SendOne(ctx context.Context, rec Record) Result {
	return d.SendMulticast(ctx, []Record{rec})
}

// SendMulticast groups recs by payload signature is the caller's
// responsibility (see internal/batch's FCMBatcher); SendMulticast
// itself sends exactly the slice it's given, which must already be
// ≤500 tokens and share one signature.
func (d *Dispatcher) SendMulticast(ctx context.Context, recs []Record) Result {
	if len(recs) == 0 {
		return Result{}
	}

	tokens := make([]string, len(recs))
	for i, r := range recs {
		tokens[i] = r.Token
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Data:   mergeData(recs[0]),
		Android: &messaging.AndroidConfig{
			Notification: &messaging.AndroidNotification{
				TitleLocKey: string(recs[0].TitleLocKey),
				BodyLocKey:  string(recs[0].BodyLocKey),
				ChannelID:   androidChannel,
			},
		},
		APNS: &messaging.APNSConfig{
			Payload: &messaging.APNSPayload{
				Aps: &messaging.Aps{
					Alert: &messaging.ApsAlert{
						TitleLocKey: string(recs[0].TitleLocKey),
						LocKey:      string(recs[0].BodyLocKey),
					},
				},
			},
		},
	}

	resp, err := d.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		// Transport-level failure: every token counts as a failure,
		// none are classified invalid (we can't tell which, if any).
		return Result{FailureCount: len(recs)}
	}

	result := Result{
		SuccessCount: resp.SuccessCount,
		FailureCount: resp.FailureCount,
	}
	for i, r := range resp.Responses {
		if r.Success {
			continue
		}
		if isInvalidToken(r.Error) {
			result.InvalidTokenIndices = append(result.InvalidTokenIndices, i)
		}
	}
	return result
}

// isInvalidToken classifies a per-token send error by the FCM error
// code string it carries. The Admin SDK wraps these as plain errors
// whose message embeds the code, so we match on substring rather than
// a typed error — see spec.md §4.3 for the two classified codes.
func isInvalidToken(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, errInvalidRegistrationToken) || strings.Contains(msg, errRegistrationTokenNotRegistered)
}

package push

import (
	"context"
	"errors"
	"testing"

	"firebase.google.com/go/v4/messaging"
)

type fakeSender struct {
	resp *messaging.BatchResponse
	err  error
}

func (f *fakeSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	return f.resp, f.err
}

func TestSendMulticastAllSuccess(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		SuccessCount: 2,
		Responses: []*messaging.SendResponse{
			{Success: true},
			{Success: true},
		},
	}}
	d := NewDispatcher(sender)

	result := d.SendMulticast(context.Background(), []Record{
		{Token: "t1", NotificationID: "n1", Type: "EXPOSURE", TitleLocKey: TitleExposure, BodyLocKey: BodyExposure},
		{Token: "t2", NotificationID: "n1", Type: "EXPOSURE", TitleLocKey: TitleExposure, BodyLocKey: BodyExposure},
	})

	if result.SuccessCount != 2 || result.FailureCount != 0 {
		t.Errorf("unexpected result: %+v", result)
	}
	if len(result.InvalidTokenIndices) != 0 {
		t.Errorf("expected no invalid tokens, got %v", result.InvalidTokenIndices)
	}
}

func TestSendMulticastClassifiesInvalidToken(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		SuccessCount: 1,
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: true},
			{Success: false, Error: errors.New("messaging/registration-token-not-registered: token is no longer valid")},
		},
	}}
	d := NewDispatcher(sender)

	result := d.SendMulticast(context.Background(), []Record{
		{Token: "good", NotificationID: "n1", Type: "EXPOSURE"},
		{Token: "stale", NotificationID: "n1", Type: "EXPOSURE"},
	})

	if len(result.InvalidTokenIndices) != 1 || result.InvalidTokenIndices[0] != 1 {
		t.Errorf("expected index 1 classified invalid, got %v", result.InvalidTokenIndices)
	}
}

func TestSendMulticastOtherErrorNotClassifiedInvalid(t *testing.T) {
	sender := &fakeSender{resp: &messaging.BatchResponse{
		FailureCount: 1,
		Responses: []*messaging.SendResponse{
			{Success: false, Error: errors.New("internal-error: try again later")},
		},
	}}
	d := NewDispatcher(sender)

	result := d.SendMulticast(context.Background(), []Record{
		{Token: "t1", NotificationID: "n1", Type: "EXPOSURE"},
	})

	if len(result.InvalidTokenIndices) != 0 {
		t.Errorf("expected no invalid-token classification, got %v", result.InvalidTokenIndices)
	}
	if result.FailureCount != 1 {
		t.Errorf("expected failure counted, got %+v", result)
	}
}

func TestSendMulticastTransportErrorFailsAll(t *testing.T) {
	sender := &fakeSender{err: errors.New("connection reset")}
	d := NewDispatcher(sender)

	result := d.SendMulticast(context.Background(), []Record{
		{Token: "t1"}, {Token: "t2"}, {Token: "t3"},
	})

	if result.FailureCount != 3 {
		t.Errorf("expected all 3 tokens counted failed, got %+v", result)
	}
}

func TestSendMulticastEmptyIsNoop(t *testing.T) {
	d := NewDispatcher(&fakeSender{})
	result := d.SendMulticast(context.Background(), nil)
	if result.SuccessCount != 0 || result.FailureCount != 0 {
		t.Errorf("expected zero-value result for empty input, got %+v", result)
	}
}

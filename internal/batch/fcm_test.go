package batch

import (
	"context"
	"testing"

	"firebase.google.com/go/v4/messaging"
	"github.com/lighthouse-health/exposure-relay/internal/push"
)

type fakeSender struct {
	calls [][]string
}

func (f *fakeSender) SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error) {
	f.calls = append(f.calls, msg.Tokens)
	responses := make([]*messaging.SendResponse, len(msg.Tokens))
	for i := range responses {
		responses[i] = &messaging.SendResponse{Success: true}
	}
	return &messaging.BatchResponse{SuccessCount: len(msg.Tokens), Responses: responses}, nil
}

func TestFCMBatcherDropsEmptyTokens(t *testing.T) {
	b := NewFCMBatcher(push.NewDispatcher(&fakeSender{}))
	b.Add(push.Record{Token: ""})
	b.Add(push.Record{Token: "t1", Type: "EXPOSURE"})
	if b.Len() != 1 {
		t.Errorf("expected 1 queued record after dropping empty token, got %d", b.Len())
	}
}

func TestFCMBatcherGroupsBySignature(t *testing.T) {
	sender := &fakeSender{}
	b := NewFCMBatcher(push.NewDispatcher(sender))
	b.Add(push.Record{Token: "t1", TitleLocKey: push.TitleExposure, BodyLocKey: push.BodyExposure, Type: "EXPOSURE"})
	b.Add(push.Record{Token: "t2", TitleLocKey: push.TitleExposure, BodyLocKey: push.BodyExposure, Type: "EXPOSURE"})
	b.Add(push.Record{Token: "t3", TitleLocKey: push.TitleUpdate, BodyLocKey: push.BodyUpdate, Type: "UPDATE"})

	result := b.Send(context.Background())
	if result.SuccessCount != 3 {
		t.Errorf("expected 3 successes, got %d", result.SuccessCount)
	}
	if len(sender.calls) != 2 {
		t.Errorf("expected 2 multicast calls (one per signature group), got %d", len(sender.calls))
	}
}

func TestFCMBatcherChunksAtCap(t *testing.T) {
	sender := &fakeSender{}
	b := NewFCMBatcher(push.NewDispatcher(sender))
	for i := 0; i < 510; i++ {
		b.Add(push.Record{Token: "tok", TitleLocKey: push.TitleExposure, BodyLocKey: push.BodyExposure, Type: "EXPOSURE"})
	}
	b.Send(context.Background())
	if len(sender.calls) != 2 {
		t.Errorf("expected 510 tokens split into 2 multicast calls, got %d", len(sender.calls))
	}
}

package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/engine"
)

type fakeSQS struct {
	sent     []*sqs.SendMessageInput
	inbox    []types.Message
	deleted  []string
	sendErr  error
	visibled map[string]int32
}

func (f *fakeSQS) SendMessage(ctx context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	if f.sendErr != nil {
		return nil, f.sendErr
	}
	f.sent = append(f.sent, in)
	return &sqs.SendMessageOutput{MessageId: aws.String("msg-1")}, nil
}

func (f *fakeSQS) ReceiveMessage(ctx context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	if len(f.inbox) == 0 {
		return &sqs.ReceiveMessageOutput{}, nil
	}
	m := f.inbox[0]
	f.inbox = f.inbox[1:]
	return &sqs.ReceiveMessageOutput{Messages: []types.Message{m}}, nil
}

func (f *fakeSQS) DeleteMessage(ctx context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) ChangeMessageVisibility(ctx context.Context, in *sqs.ChangeMessageVisibilityInput, _ ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error) {
	if f.visibled == nil {
		f.visibled = map[string]int32{}
	}
	f.visibled[aws.ToString(in.ReceiptHandle)] = in.VisibilityTimeout
	return &sqs.ChangeMessageVisibilityOutput{}, nil
}

func TestProducer_Enqueue(t *testing.T) {
	fake := &fakeSQS{}
	p := &Producer{client: fake, queueURL: "https://sqs.local/q", logger: zap.NewNop()}
	off := false

	id, err := p.Enqueue(context.Background(), engine.Tick{Job: engine.JobOutbox, Limit: 20, SMS: &off})
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if id != "msg-1" {
		t.Errorf("message id = %q, want msg-1", id)
	}
	if len(fake.sent) != 1 {
		t.Fatalf("sent %d messages, want 1", len(fake.sent))
	}

	var body map[string]any
	if err := json.Unmarshal([]byte(aws.ToString(fake.sent[0].MessageBody)), &body); err != nil {
		t.Fatalf("body is not json: %v", err)
	}
	if body["job"] != "outbox" || body["limit"] != float64(20) || body["sms"] != false {
		t.Errorf("unexpected body %v", body)
	}
	if _, ok := body["emails"]; ok {
		t.Errorf("unset emails flag should be omitted")
	}
}

func TestProducer_EnqueueError(t *testing.T) {
	p := &Producer{client: &fakeSQS{sendErr: errors.New("throttled")}, queueURL: "q", logger: zap.NewNop()}

	if _, err := p.Enqueue(context.Background(), engine.Tick{Job: engine.JobReminders}); err == nil {
		t.Fatal("expected error")
	}
}

func TestConsumer_Receive(t *testing.T) {
	fake := &fakeSQS{inbox: []types.Message{
		{Body: aws.String(`{"job":"reminders","limit":50}`), ReceiptHandle: aws.String("h1")},
		{Body: aws.String(`not json`), ReceiptHandle: aws.String("h2")},
	}}
	c := &Consumer{client: fake, queueURL: "q", logger: zap.NewNop()}
	ctx := context.Background()

	msg, handle, err := c.ReceiveMessage(ctx)
	if err != nil {
		t.Fatalf("ReceiveMessage() error = %v", err)
	}
	if msg.Job != engine.JobReminders || msg.Limit != 50 || handle != "h1" {
		t.Errorf("got %+v handle %q", msg, handle)
	}

	_, handle, err = c.ReceiveMessage(ctx)
	if !errors.Is(err, ErrInvalidMessage) {
		t.Errorf("err = %v, want ErrInvalidMessage", err)
	}
	if handle != "h2" {
		t.Errorf("invalid message should still return its handle, got %q", handle)
	}

	msg, _, err = c.ReceiveMessage(ctx)
	if err != nil || msg != nil {
		t.Errorf("empty poll = (%v, %v), want (nil, nil)", msg, err)
	}

	if err := c.DeleteMessage(ctx, "h1"); err != nil {
		t.Fatalf("DeleteMessage() error = %v", err)
	}
	if err := c.ChangeVisibility(ctx, "h2", 30); err != nil {
		t.Fatalf("ChangeVisibility() error = %v", err)
	}
	if len(fake.deleted) != 1 || fake.visibled["h2"] != 30 {
		t.Errorf("deleted=%v visibility=%v", fake.deleted, fake.visibled)
	}
}

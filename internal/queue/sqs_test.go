package queue

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

type fakeSQS struct {
	received  *sqs.ReceiveMessageInput
	deleted   []string
	deleteErr error
}

func (f *fakeSQS) SendMessage(_ context.Context, in *sqs.SendMessageInput, _ ...func(*sqs.Options)) (*sqs.SendMessageOutput, error) {
	return &sqs.SendMessageOutput{MessageId: aws.String("m-" + aws.ToString(in.MessageBody))}, nil
}

func (f *fakeSQS) ReceiveMessage(_ context.Context, in *sqs.ReceiveMessageInput, _ ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error) {
	f.received = in
	return &sqs.ReceiveMessageOutput{Messages: []types.Message{{
		MessageId:     aws.String("m-1"),
		Body:          aws.String(`{"url":"u","title":"t","email":"e"}`),
		ReceiptHandle: aws.String("rh-1"),
		Attributes: map[string]string{
			"ApproximateReceiveCount": "3",
			"SentTimestamp":           "1767225600000",
		},
	}}}, nil
}

func (f *fakeSQS) DeleteMessage(_ context.Context, in *sqs.DeleteMessageInput, _ ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error) {
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	f.deleted = append(f.deleted, aws.ToString(in.ReceiptHandle))
	return &sqs.DeleteMessageOutput{}, nil
}

func (f *fakeSQS) GetQueueAttributes(_ context.Context, _ *sqs.GetQueueAttributesInput, _ ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error) {
	return &sqs.GetQueueAttributesOutput{Attributes: map[string]string{
		"ApproximateNumberOfMessages":           "4",
		"ApproximateNumberOfMessagesNotVisible": "2",
	}}, nil
}

func TestSQSReceiveMapsAttributes(t *testing.T) {
	api := &fakeSQS{}
	q := &SQSQueue{client: api, url: "https://sqs.test/q", waitTime: 10}

	msgs, err := q.Receive(context.Background(), 50, 15*time.Minute)
	if err != nil {
		t.Fatalf("Receive: %v", err)
	}
	if api.received.MaxNumberOfMessages != 10 || api.received.VisibilityTimeout != 900 || api.received.WaitTimeSeconds != 10 {
		t.Fatalf("unexpected receive input %+v", api.received)
	}
	if len(msgs) != 1 || msgs[0].ReceiveCount != 3 || msgs[0].Receipt != "rh-1" {
		t.Fatalf("unexpected messages %+v", msgs)
	}
	if !msgs[0].SentAt.Equal(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected sent time %s", msgs[0].SentAt)
	}

	if err := q.Ack(context.Background(), msgs[0]); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	if len(api.deleted) != 1 || api.deleted[0] != "rh-1" {
		t.Fatalf("unexpected deletes %v", api.deleted)
	}
}

func TestSQSAckStaleReceipt(t *testing.T) {
	api := &fakeSQS{deleteErr: &smithy.GenericAPIError{Code: "ReceiptHandleIsInvalid"}}
	q := &SQSQueue{client: api, url: "https://sqs.test/q"}
	if err := q.Ack(context.Background(), Message{ID: "m", Receipt: "old"}); !errors.Is(err, ErrStaleReceipt) {
		t.Fatalf("expected ErrStaleReceipt, got %v", err)
	}
}

func TestSQSStats(t *testing.T) {
	q := &SQSQueue{client: &fakeSQS{}, url: "https://sqs.test/q"}
	stats, err := q.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Ready != 4 || stats.InFlight != 2 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	id, err := q.Send(context.Background(), []byte("x"))
	if err != nil || id != "m-x" {
		t.Fatalf("Send: %q %v", id, err)
	}
}

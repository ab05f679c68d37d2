package queue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/aws/smithy-go"
)

// sqsMaxBatch is the SQS limit on messages per ReceiveMessage call.
const sqsMaxBatch = 10

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	GetQueueAttributes(ctx context.Context, params *sqs.GetQueueAttributesInput, optFns ...func(*sqs.Options)) (*sqs.GetQueueAttributesOutput, error)
}

// SQSQueue consumes an Amazon SQS queue with long polling.
type SQSQueue struct {
	client   sqsAPI
	url      string
	waitTime int32
}

// SQSOptions configures NewSQSQueue.
type SQSOptions struct {
	URL             string
	Endpoint        string
	WaitTimeSeconds int
}

// NewSQSQueue builds a queue client from a loaded AWS configuration.
func NewSQSQueue(awsCfg aws.Config, opts SQSOptions) (*SQSQueue, error) {
	if opts.URL == "" {
		return nil, errors.New("sqs queue requires a queue url")
	}
	client := sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if opts.Endpoint != "" {
			o.BaseEndpoint = aws.String(opts.Endpoint)
		}
	})
	return &SQSQueue{client: client, url: opts.URL, waitTime: int32(opts.WaitTimeSeconds)}, nil
}

func (q *SQSQueue) Send(ctx context.Context, body []byte) (string, error) {
	out, err := q.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(q.url),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		return "", fmt.Errorf("sqs send: %w", err)
	}
	return aws.ToString(out.MessageId), nil
}

func (q *SQSQueue) Receive(ctx context.Context, limit int, visibility time.Duration) ([]Message, error) {
	limit = min(max(limit, 1), sqsMaxBatch)
	out, err := q.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(q.url),
		MaxNumberOfMessages: int32(limit),
		VisibilityTimeout:   int32(visibility / time.Second),
		WaitTimeSeconds:     q.waitTime,
		MessageSystemAttributeNames: []types.MessageSystemAttributeName{
			types.MessageSystemAttributeNameApproximateReceiveCount,
			types.MessageSystemAttributeNameSentTimestamp,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("sqs receive: %w", err)
	}

	messages := make([]Message, 0, len(out.Messages))
	for _, m := range out.Messages {
		msg := Message{
			ID:      aws.ToString(m.MessageId),
			Body:    []byte(aws.ToString(m.Body)),
			Receipt: aws.ToString(m.ReceiptHandle),
		}
		if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameApproximateReceiveCount)]; ok {
			msg.ReceiveCount, _ = strconv.Atoi(raw)
		}
		if raw, ok := m.Attributes[string(types.MessageSystemAttributeNameSentTimestamp)]; ok {
			if millis, err := strconv.ParseInt(raw, 10, 64); err == nil {
				msg.SentAt = time.UnixMilli(millis).UTC()
			}
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (q *SQSQueue) Ack(ctx context.Context, msg Message) error {
	_, err := q.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(q.url),
		ReceiptHandle: aws.String(msg.Receipt),
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) && apiErr.ErrorCode() == "ReceiptHandleIsInvalid" {
			return fmt.Errorf("ack %s: %w", msg.ID, ErrStaleReceipt)
		}
		return fmt.Errorf("sqs delete: %w", err)
	}
	return nil
}

// Stats reports approximate counts. Dead messages live on a separate queue and
// are not counted.
func (q *SQSQueue) Stats(ctx context.Context) (Stats, error) {
	out, err := q.client.GetQueueAttributes(ctx, &sqs.GetQueueAttributesInput{
		QueueUrl: aws.String(q.url),
		AttributeNames: []types.QueueAttributeName{
			types.QueueAttributeNameApproximateNumberOfMessages,
			types.QueueAttributeNameApproximateNumberOfMessagesNotVisible,
		},
	})
	if err != nil {
		return Stats{}, fmt.Errorf("sqs attributes: %w", err)
	}
	var stats Stats
	stats.Ready, _ = strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessages)], 10, 64)
	stats.InFlight, _ = strconv.ParseInt(out.Attributes[string(types.QueueAttributeNameApproximateNumberOfMessagesNotVisible)], 10, 64)
	return stats, nil
}

func (q *SQSQueue) Close() error { return nil }

// Package sqs carries job ticks over an SQS queue, so a scheduler that can
// only publish messages can still trigger reminder runs.
package sqs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"go.uber.org/zap"

	"github.com/lalithlochan/remindr/internal/engine"
)

// Config holds SQS configuration.
type Config struct {
	Region   string
	QueueURL string
	DLQURL   string
	// Endpoint overrides the SQS endpoint (LocalStack).
	Endpoint string
}

// Message is the tick payload on the queue.
type Message struct {
	engine.Tick
	EnqueuedAt int64 `json:"enqueued_at,omitempty"`
}

type sqsAPI interface {
	SendMessage(ctx context.Context, params *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
	ReceiveMessage(ctx context.Context, params *sqs.ReceiveMessageInput, optFns ...func(*sqs.Options)) (*sqs.ReceiveMessageOutput, error)
	DeleteMessage(ctx context.Context, params *sqs.DeleteMessageInput, optFns ...func(*sqs.Options)) (*sqs.DeleteMessageOutput, error)
	ChangeMessageVisibility(ctx context.Context, params *sqs.ChangeMessageVisibilityInput, optFns ...func(*sqs.Options)) (*sqs.ChangeMessageVisibilityOutput, error)
}

func newClient(ctx context.Context, cfg Config) (*sqs.Client, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return sqs.NewFromConfig(awsCfg, func(o *sqs.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	}), nil
}

// Producer publishes ticks.
type Producer struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// NewProducer creates a new SQS producer.
func NewProducer(ctx context.Context, cfg Config, logger *zap.Logger) (*Producer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("sqs producer initialized", zap.String("queue_url", cfg.QueueURL))

	return &Producer{
		client:   client,
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// Enqueue publishes one tick and returns the SQS message id.
func (p *Producer) Enqueue(ctx context.Context, tick engine.Tick) (string, error) {
	body, err := json.Marshal(Message{Tick: tick, EnqueuedAt: time.Now().UnixNano()})
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(p.queueURL),
		MessageBody: aws.String(string(body)),
	})
	if err != nil {
		p.logger.Error("failed to send tick to sqs", zap.Error(err), zap.String("job", tick.Job))
		return "", fmt.Errorf("sqs send failed: %w", err)
	}

	return aws.ToString(result.MessageId), nil
}

// Consumer reads ticks.
type Consumer struct {
	client   sqsAPI
	queueURL string
	logger   *zap.Logger
}

// NewConsumer creates a new SQS consumer.
func NewConsumer(ctx context.Context, cfg Config, logger *zap.Logger) (*Consumer, error) {
	client, err := newClient(ctx, cfg)
	if err != nil {
		return nil, err
	}

	logger.Info("sqs consumer initialized", zap.String("queue_url", cfg.QueueURL))

	return &Consumer{
		client:   client,
		queueURL: cfg.QueueURL,
		logger:   logger,
	}, nil
}

// ErrInvalidMessage marks a body that is not a tick. Such messages are
// deleted rather than redelivered.
var ErrInvalidMessage = errors.New("invalid message format")

// ReceiveMessage long-polls for one tick. A nil message means the poll was empty.
func (c *Consumer) ReceiveMessage(ctx context.Context) (*Message, string, error) {
	result, err := c.client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
		QueueUrl:            aws.String(c.queueURL),
		MaxNumberOfMessages: 1,
		WaitTimeSeconds:     20,
		VisibilityTimeout:   300,
	})
	if err != nil {
		return nil, "", fmt.Errorf("sqs receive failed: %w", err)
	}

	if len(result.Messages) == 0 {
		return nil, "", nil
	}

	raw := result.Messages[0]
	handle := aws.ToString(raw.ReceiptHandle)

	var msg Message
	if err := json.Unmarshal([]byte(aws.ToString(raw.Body)), &msg); err != nil {
		c.logger.Error("failed to unmarshal tick", zap.Error(err))
		return nil, handle, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	return &msg, handle, nil
}

// DeleteMessage removes a message after it was handled.
func (c *Consumer) DeleteMessage(ctx context.Context, receiptHandle string) error {
	_, err := c.client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
		QueueUrl:      aws.String(c.queueURL),
		ReceiptHandle: aws.String(receiptHandle),
	})
	if err != nil {
		return fmt.Errorf("sqs delete failed: %w", err)
	}
	return nil
}

// ChangeVisibility sets how long until a failed tick is redelivered.
func (c *Consumer) ChangeVisibility(ctx context.Context, receiptHandle string, seconds int32) error {
	_, err := c.client.ChangeMessageVisibility(ctx, &sqs.ChangeMessageVisibilityInput{
		QueueUrl:          aws.String(c.queueURL),
		ReceiptHandle:     aws.String(receiptHandle),
		VisibilityTimeout: seconds,
	})
	if err != nil {
		return fmt.Errorf("sqs change visibility failed: %w", err)
	}
	return nil
}

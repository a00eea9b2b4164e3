package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/aws/aws-sdk-go-v2/service/sns/types"
	"go.uber.org/zap"
)

type snsAPI interface {
	Publish(ctx context.Context, params *sns.PublishInput, optFns ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// SNSSender sends SMS through AWS SNS direct publish.
type SNSSender struct {
	client   snsAPI
	senderID string
	logger   *zap.Logger
}

type SNSConfig struct {
	Region   string
	SenderID string
}

func NewSNSSender(ctx context.Context, cfg SNSConfig, logger *zap.Logger) (*SNSSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config for SNS: %w", err)
	}

	return &SNSSender{
		client:   sns.NewFromConfig(awsCfg),
		senderID: cfg.SenderID,
		logger:   logger,
	}, nil
}

func (s *SNSSender) Name() string { return "sns" }

func (s *SNSSender) SendSMS(ctx context.Context, msg SMSMessage) Outcome {
	if msg.To == "" {
		return Skip(SkipNoPhone)
	}
	phone, ok := NormalizePhone(msg.To)
	if !ok {
		return Failed(ErrInvalidPhone)
	}

	input := &sns.PublishInput{
		PhoneNumber: aws.String(phone),
		Message:     aws.String(msg.Body),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"AWS.SNS.SMS.SMSType": {
				DataType:    aws.String("String"),
				StringValue: aws.String("Transactional"),
			},
		},
	}
	if s.senderID != "" {
		input.MessageAttributes["AWS.SNS.SMS.SenderID"] = types.MessageAttributeValue{
			DataType:    aws.String("String"),
			StringValue: aws.String(s.senderID),
		}
	}

	result, err := s.client.Publish(ctx, input)
	if err != nil {
		return Failed(fmt.Errorf("sns publish failed: %w", err))
	}

	id := aws.ToString(result.MessageId)
	s.logger.Debug("SMS sent via SNS", zap.String("message_id", id))
	return Sent(id)
}

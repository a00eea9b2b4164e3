package provider

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
	"go.uber.org/zap"
)

type sesAPI interface {
	SendEmail(ctx context.Context, params *ses.SendEmailInput, optFns ...func(*ses.Options)) (*ses.SendEmailOutput, error)
}

// SESSender sends email through AWS SES.
type SESSender struct {
	client sesAPI
	from   string
	logger *zap.Logger
}

type SESConfig struct {
	Region    string
	FromEmail string
}

func NewSESSender(ctx context.Context, cfg SESConfig, logger *zap.Logger) (*SESSender, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(cfg.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load default AWS config: %w", err)
	}
	return &SESSender{
		client: ses.NewFromConfig(awsCfg),
		from:   cfg.FromEmail,
		logger: logger,
	}, nil
}

func (s *SESSender) Name() string { return "ses" }

// SendEmail sends msg with both HTML and text parts when a text part is set.
func (s *SESSender) SendEmail(ctx context.Context, msg EmailMessage) Outcome {
	if s.from == "" {
		return Skip(SkipMissingSender)
	}
	if msg.To == "" {
		return Skip(SkipNoEmail)
	}

	body := &types.Body{
		Html: &types.Content{
			Data:    aws.String(msg.HTML),
			Charset: aws.String("UTF-8"),
		},
	}
	if msg.Text != "" {
		body.Text = &types.Content{
			Data:    aws.String(msg.Text),
			Charset: aws.String("UTF-8"),
		}
	}

	input := &ses.SendEmailInput{
		Source: aws.String(s.from),
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(msg.Subject),
				Charset: aws.String("UTF-8"),
			},
			Body: body,
		},
	}

	result, err := s.client.SendEmail(ctx, input)
	if err != nil {
		return Failed(fmt.Errorf("ses send failed: %w", err))
	}

	id := aws.ToString(result.MessageId)
	s.logger.Debug("email sent via SES", zap.String("message_id", id))
	return Sent(id)
}

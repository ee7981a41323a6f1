package providers

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
)

const charsetUTF8 = "UTF-8"

type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport sends email through Amazon SES v2.
type SESTransport struct {
	client        sesAPI
	configSetName string
	senderARN     string
	logger        *logging.Logger
}

// NewSESTransport loads the default AWS credential chain for cfg.Email.Region.
func NewSESTransport(ctx context.Context, cfg config.Config, logger *logging.Logger) (*SESTransport, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.Email.Region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	logger.Infof("SES email transport initialized in %s", cfg.Email.Region)
	return newSESTransport(sesv2.NewFromConfig(awsCfg), cfg, logger), nil
}

func newSESTransport(client sesAPI, cfg config.Config, logger *logging.Logger) *SESTransport {
	return &SESTransport{
		client:        client,
		configSetName: cfg.Email.ConfigSetName,
		senderARN:     cfg.Email.SenderARN,
		logger:        logger,
	}
}

func (t *SESTransport) Name() string {
	return "ses"
}

// Send uses simple content, or raw MIME when the request has attachments.
func (t *SESTransport) Send(ctx context.Context, req *EmailRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}

	input := &sesv2.SendEmailInput{
		FromEmailAddress: aws.String(req.From),
		Destination:      &types.Destination{ToAddresses: req.To},
	}
	if t.configSetName != "" {
		input.ConfigurationSetName = aws.String(t.configSetName)
	}
	if t.senderARN != "" {
		input.FromEmailAddressIdentityArn = aws.String(t.senderARN)
	}

	if len(req.Attachments) > 0 {
		raw, err := BuildMIME(req)
		if err != nil {
			return err
		}
		input.Content = &types.EmailContent{Raw: &types.RawMessage{Data: raw}}
	} else {
		input.Content = &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: aws.String(req.Subject), Charset: aws.String(charsetUTF8)},
				Body: &types.Body{
					Html: &types.Content{Data: aws.String(req.HTML), Charset: aws.String(charsetUTF8)},
				},
			},
		}
	}

	out, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("SES send to %v failed: %w", req.To, err)
	}
	t.logger.Debugf("SES message %s sent to %v", aws.ToString(out.MessageId), req.To)
	return nil
}

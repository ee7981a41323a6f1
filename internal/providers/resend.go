package providers

import (
	"context"
	"fmt"

	"github.com/resend/resend-go/v2"
	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
)

type resendAPI interface {
	Send(params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendTransport sends email through the Resend API.
type ResendTransport struct {
	client resendAPI
	logger *logging.Logger
}

// NewResendTransport requires cfg.Email.ResendAPIKey.
func NewResendTransport(cfg config.Config, logger *logging.Logger) (*ResendTransport, error) {
	if cfg.Email.ResendAPIKey == "" {
		return nil, fmt.Errorf("resend_api_key is required for the resend provider")
	}
	client := resend.NewClient(cfg.Email.ResendAPIKey)
	logger.Info("Resend email transport initialized")
	return &ResendTransport{client: client.Emails, logger: logger}, nil
}

func (t *ResendTransport) Name() string {
	return "resend"
}

func (t *ResendTransport) Send(ctx context.Context, req *EmailRequest) error {
	if err := validateRequest(req); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	params := &resend.SendEmailRequest{
		From:    req.From,
		To:      req.To,
		Subject: req.Subject,
		Html:    req.HTML,
	}
	for _, a := range req.Attachments {
		params.Attachments = append(params.Attachments, &resend.Attachment{
			Content:  a.Data,
			Filename: a.Filename,
		})
	}

	result, err := t.client.Send(params)
	if err != nil {
		return fmt.Errorf("Resend send to %v failed: %w", req.To, err)
	}
	t.logger.Debugf("Resend email %s sent to %v", result.Id, req.To)
	return nil
}

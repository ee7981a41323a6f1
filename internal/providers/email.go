package providers

import (
	"context"
	"fmt"

	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
)

// Attachment is a file attached to an outbound email.
type Attachment struct {
	Filename    string
	ContentType string
	Data        []byte
}

// EmailRequest describes one outbound email.
type EmailRequest struct {
	From        string
	To          []string
	Subject     string
	HTML        string
	Attachments []Attachment
}

// EmailTransport delivers emails. Errors are returned to the caller untouched
// by retries.
type EmailTransport interface {
	Name() string
	Send(ctx context.Context, req *EmailRequest) error
}

// NewEmailTransport builds the transport selected by cfg.Email.Provider.
func NewEmailTransport(ctx context.Context, cfg config.Config, logger *logging.Logger) (EmailTransport, error) {
	switch cfg.Email.Provider {
	case "", "ses":
		return NewSESTransport(ctx, cfg, logger)
	case "resend":
		return NewResendTransport(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}
}

func validateRequest(req *EmailRequest) error {
	if len(req.To) == 0 {
		return fmt.Errorf("no recipients specified")
	}
	if req.From == "" {
		return fmt.Errorf("no sender specified")
	}
	return nil
}

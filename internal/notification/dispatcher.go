package notification

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"time"

	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
	"sigevent-service/internal/providers"
)

//go:embed templates/notification.html
var templateFS embed.FS

var notificationTemplate = template.Must(template.ParseFS(templateFS, "templates/notification.html"))

const dateLayout = "2006-01-02"

type notificationView struct {
	Category       string
	CollectionName string
	Level          models.EventLevel
	Subject        string
	RawMessage     string
}

// Dispatcher fans a single event out to every configured recipient.
type Dispatcher struct {
	email      providers.EmailTransport
	chat       providers.ChatTransport
	recipients []string
	chatIDs    []int64
	from       string
	logger     *logging.Logger
	now        func() time.Time
}

// NewDispatcher creates a Dispatcher. chat may be nil, in which case no chat
// messages are sent regardless of configured chat ids.
func NewDispatcher(email providers.EmailTransport, chat providers.ChatTransport, cfg config.Config, logger *logging.Logger) *Dispatcher {
	return &Dispatcher{
		email:      email,
		chat:       chat,
		recipients: cfg.NotificationEmails,
		chatIDs:    cfg.Telegram.ChatIDs,
		from:       cfg.FromHeader(),
		logger:     logger,
		now:        time.Now,
	}
}

func (d *Dispatcher) WithClock(now func() time.Time) *Dispatcher {
	d.now = now
	return d
}

// Subject formats the email subject for msg on the given UTC day.
func Subject(msg models.EventMessage, day time.Time) string {
	return fmt.Sprintf("[%s] %s %s", msg.Category, day.UTC().Format(dateLayout), msg.CollectionName)
}

// RenderNotification renders the HTML body embedding the escaped message JSON.
func RenderNotification(msg models.EventMessage) (string, error) {
	raw, err := msg.JSON()
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	err = notificationTemplate.Execute(&buf, notificationView{
		Category:       msg.Category,
		CollectionName: msg.CollectionName,
		Level:          msg.EventLevel,
		Subject:        msg.Subject,
		RawMessage:     raw,
	})
	if err != nil {
		return "", fmt.Errorf("failed to render notification: %w", err)
	}
	return buf.String(), nil
}

func chatText(msg models.EventMessage, subject string) string {
	return fmt.Sprintf("%s\n%s: %s\n%s", subject, msg.EventLevel, msg.Subject, msg.Description)
}

// SendNotification sends one email per recipient, then one chat message per
// chat id. The first failure stops the fan-out and is returned.
func (d *Dispatcher) SendNotification(ctx context.Context, msg models.EventMessage) error {
	log := d.logger.FromContext(ctx)

	body, err := RenderNotification(msg)
	if err != nil {
		return err
	}
	subject := Subject(msg, d.now())

	for _, address := range d.recipients {
		log.Debugf("Sending email to: %s", address)
		req := &providers.EmailRequest{
			From:    d.from,
			To:      []string{address},
			Subject: subject,
			HTML:    body,
		}
		if err := d.email.Send(ctx, req); err != nil {
			return fmt.Errorf("notify %s via %s: %w", address, d.email.Name(), err)
		}
	}

	if d.chat != nil {
		text := chatText(msg, subject)
		for _, chatID := range d.chatIDs {
			if err := d.chat.SendChat(ctx, chatID, text); err != nil {
				return fmt.Errorf("notify chat %d: %w", chatID, err)
			}
		}
	}

	log.Debug("Sending finished")
	return nil
}

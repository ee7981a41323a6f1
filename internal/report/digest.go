package report

import (
	"context"
	"fmt"
	"time"

	"sigevent-service/internal/config"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
	"sigevent-service/internal/providers"
)

const dateLayout = "2006-01-02"

// LogSearcher pages through logged events of a group within a time window.
type LogSearcher interface {
	FilterEvents(ctx context.Context, group string, startMs, endMs int64, token string) (models.LogPage, error)
}

// Digest produces and mails the daily summary of logged events.
type Digest struct {
	logs       LogSearcher
	email      providers.EmailTransport
	logGroup   string
	recipients []string
	from       string
	logger     *logging.Logger
	now        func() time.Time
}

func NewDigest(logs LogSearcher, email providers.EmailTransport, cfg config.Config, logger *logging.Logger) *Digest {
	return &Digest{
		logs:       logs,
		email:      email,
		logGroup:   cfg.LogGroup,
		recipients: cfg.NotificationEmails,
		from:       cfg.FromHeader(),
		logger:     logger,
		now:        time.Now,
	}
}

func (d *Digest) WithClock(now func() time.Time) *Digest {
	d.now = now
	return d
}

// Window returns the first and last millisecond of the UTC day containing t.
func Window(t time.Time) (startMs, endMs int64) {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 0, 1).Add(-time.Millisecond)
	return start.UnixMilli(), end.UnixMilli()
}

func (d *Digest) today() string {
	return d.now().UTC().Format(dateLayout)
}

// SearchErrorLogs returns every message logged today. A message that no
// longer parses aborts the search.
func (d *Digest) SearchErrorLogs(ctx context.Context) ([]models.EventMessage, error) {
	startMs, endMs := Window(d.now())
	d.logger.Debugf("Searching %s between %d and %d", d.logGroup, startMs, endMs)

	var messages []models.EventMessage
	token := ""
	for {
		page, err := d.logs.FilterEvents(ctx, d.logGroup, startMs, endMs, token)
		if err != nil {
			return nil, fmt.Errorf("search logs: %w", err)
		}
		for _, ev := range page.Events {
			msg, err := models.ParseEventMessage([]byte(ev.Message))
			if err != nil {
				return nil, fmt.Errorf("parse logged event %d: %w", ev.ID, err)
			}
			messages = append(messages, msg)
		}
		if page.NextToken == "" {
			return messages, nil
		}
		token = page.NextToken
	}
}

// Summary returns today's per-collection analysis.
func (d *Digest) Summary(ctx context.Context) ([]models.CollectionAnalysis, error) {
	messages, err := d.SearchErrorLogs(ctx)
	if err != nil {
		return nil, err
	}
	return AnalyzeMessages(messages), nil
}

// CSV returns today's analysis rendered as CSV.
func (d *Digest) CSV(ctx context.Context) (string, []byte, error) {
	analyses, err := d.Summary(ctx)
	if err != nil {
		return "", nil, err
	}
	data, err := GenerateCSV(analyses)
	if err != nil {
		return "", nil, err
	}
	return CSVFilename(d.today()), data, nil
}

// CSVFilename is the attachment name of the report for day.
func CSVFilename(day string) string {
	return day + "-sigevent-daily.csv"
}

// Run builds today's report and mails it to every recipient. Nothing is sent
// unless the whole report was built.
func (d *Digest) Run(ctx context.Context) error {
	today := d.today()

	d.logger.Info("Searching logs for errors")
	analyses, err := d.Summary(ctx)
	if err != nil {
		return err
	}

	d.logger.Info("Generating csv")
	csvData, err := GenerateCSV(analyses)
	if err != nil {
		return err
	}

	d.logger.Info("Generating html")
	html, err := GenerateHTML(analyses, today)
	if err != nil {
		return err
	}

	attachment := providers.Attachment{
		Filename:    CSVFilename(today),
		ContentType: "text/csv",
		Data:        csvData,
	}
	for _, address := range d.recipients {
		d.logger.Infof("Sending emails to: %s", address)
		err := d.email.Send(ctx, &providers.EmailRequest{
			From:        d.from,
			To:          []string{address},
			Subject:     today + " Daily Report",
			HTML:        html,
			Attachments: []providers.Attachment{attachment},
		})
		if err != nil {
			return fmt.Errorf("send daily report to %s: %w", address, err)
		}
	}
	d.logger.Debug("Finished sending emails")
	return nil
}

package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"sigevent-service/internal/logging"
	"sigevent-service/internal/models"
	"sigevent-service/internal/tail"
)

const maxEventBody = 1 << 20

type EventProcessor interface {
	ProcessEventMessage(ctx context.Context, msg models.EventMessage) error
}

// Reporter builds today's digest data on demand.
type Reporter interface {
	Summary(ctx context.Context) ([]models.CollectionAnalysis, error)
	CSV(ctx context.Context) (string, []byte, error)
}

type Handler struct {
	processor EventProcessor
	reporter  Reporter
	hub       *tail.Hub
	logger    *logging.Logger
	upgrader  websocket.Upgrader
	now       func() time.Time
}

func NewHandler(processor EventProcessor, reporter Reporter, hub *tail.Hub, logger *logging.Logger) *Handler {
	return &Handler{
		processor: processor,
		reporter:  reporter,
		hub:       hub,
		logger:    logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		now: time.Now,
	}
}

// SubmitEvent accepts one event message, the HTTP twin of the Kafka trigger.
func (h *Handler) SubmitEvent(c *gin.Context) {
	ctx := c.Request.Context()
	log := h.logger.FromContext(ctx)

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBody))
	if err != nil {
		log.Errorf("Failed to read request body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	msg, err := models.ParseEventMessage(body)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			log.Errorf("Rejected invalid event %q: %s", verr.Raw, verr.Reason)
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Reason})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	msg = msg.WithTimestamp(h.now())

	if err := h.processor.ProcessEventMessage(ctx, msg); err != nil {
		log.Errorf("Failed to process event for %s: %v", msg.CollectionName, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to process event"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"status":     "accepted",
		"request_id": logging.RequestID(ctx),
	})
}

func (h *Handler) DailyReport(c *gin.Context) {
	analyses, err := h.reporter.Summary(c.Request.Context())
	if err != nil {
		h.logger.FromContext(c.Request.Context()).Errorf("Failed to build daily report: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build daily report"})
		return
	}
	events := 0
	for _, a := range analyses {
		events += a.Total()
	}
	c.JSON(http.StatusOK, gin.H{
		"total_collections": len(analyses),
		"total_events":      events,
		"collections":       analyses,
	})
}

func (h *Handler) DailyReportCSV(c *gin.Context) {
	filename, data, err := h.reporter.CSV(c.Request.Context())
	if err != nil {
		h.logger.FromContext(c.Request.Context()).Errorf("Failed to build daily csv: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to build daily report"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "text/csv; charset=utf-8", data)
}

// LiveTail upgrades to a websocket and streams events, optionally filtered
// by the collection query parameter, until the client goes away.
func (h *Handler) LiveTail(c *gin.Context) {
	log := h.logger.FromContext(c.Request.Context())
	collection := c.Query("collection")

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}

	if !h.hub.Add(collection, conn) {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "too many connections"))
		_ = conn.Close()
		return
	}
	// the hub's writer closes conn once it is removed
	defer h.hub.Remove(collection, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			log.Debugf("Live tail client left: %v", err)
			return
		}
	}
}

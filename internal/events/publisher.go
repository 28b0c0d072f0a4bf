package events

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"catalog-service/internal/models"
)

// Event subjects
const (
	SubjectProductCreated  = "catalog.product.created"
	SubjectProductUpdated  = "catalog.product.updated"
	SubjectImportCompleted = "catalog.import.completed"
)

// Envelope is the wire format shared by all catalog events.
type Envelope struct {
	EventID   string      `json:"eventId"`
	Subject   string      `json:"subject"`
	TenantID  string      `json:"tenantId"`
	Timestamp time.Time   `json:"timestamp"`
	Source    string      `json:"source"`
	Data      interface{} `json:"data"`
}

// Publisher emits catalog lifecycle events over NATS. Event delivery is best
// effort: a publish failure is logged, never surfaced to the request path.
type Publisher struct {
	conn *nats.Conn
	log  *logrus.Entry
}

// NewPublisher connects to NATS using NATS_URL. Returns an error when the
// connection cannot be established; callers may choose to run without events.
func NewPublisher() (*Publisher, error) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = nats.DefaultURL
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("catalog-service"),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &Publisher{
		conn: conn,
		log:  logrus.WithField("component", "catalog-events"),
	}, nil
}

// Close drains the NATS connection.
func (p *Publisher) Close() {
	if p.conn != nil {
		_ = p.conn.Drain()
	}
}

func (p *Publisher) publish(subject, tenantID string, data interface{}) {
	envelope := Envelope{
		EventID:   uuid.New().String(),
		Subject:   subject,
		TenantID:  tenantID,
		Timestamp: time.Now().UTC(),
		Source:    "catalog-service",
		Data:      data,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		p.log.WithError(err).WithField("subject", subject).Error("Failed to marshal event")
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.log.WithError(err).WithField("subject", subject).Warn("Failed to publish event")
	}
}

// ProductCreated publishes a catalog.product.created event.
func (p *Publisher) ProductCreated(tenantID string, product *models.Product) {
	p.publish(SubjectProductCreated, tenantID, product)
}

// ProductUpdated publishes a catalog.product.updated event.
func (p *Publisher) ProductUpdated(tenantID string, product *models.Product) {
	p.publish(SubjectProductUpdated, tenantID, product)
}

// ImportCompleted publishes a catalog.import.completed event with the run's
// final stats.
func (p *Publisher) ImportCompleted(tenantID string, result *models.ImportResult) {
	p.publish(SubjectImportCompleted, tenantID, map[string]interface{}{
		"success":      result.Success,
		"format":       result.Format,
		"totalRows":    result.TotalRows,
		"stats":        result.Stats,
		"errorCount":   len(result.Errors),
		"processingMs": result.ProcessingMs,
	})
}

package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/okian/zonetrust/internal/domain/model"
	"github.com/okian/zonetrust/pkg/logger"
	"github.com/okian/zonetrust/pkg/metrics"
)

// MessageWriter is the part of *kafkago.Writer the publisher uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// NewWriter builds a writer that keeps every zone on one partition.
func NewWriter(brokers []string, topic string) (*kafkago.Writer, error) {
	if len(brokers) == 0 {
		return nil, ErrNoBrokers
	}
	if topic == "" {
		return nil, ErrNoTopic
	}
	return &kafkago.Writer{
		Addr:         kafkago.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}, nil
}

// ConfidenceUpdate is the message published after every confidence change.
type ConfidenceUpdate struct {
	ZoneID       string                  `json:"zone_id"`
	AuditID      string                  `json:"audit_id"`
	Trigger      model.Trigger           `json:"trigger"`
	SubmissionID string                  `json:"submission_id,omitempty"`
	Score        float64                 `json:"score"`
	Level        model.ConfidenceLevel   `json:"level"`
	State        model.OperationalState  `json:"state"`
	HazardActive bool                    `json:"hazard_active"`
	Anomaly      bool                    `json:"anomaly_detected"`
	Factors      model.ConfidenceFactors `json:"factors"`
	At           time.Time               `json:"at"`
}

// Publisher writes confidence updates, keyed by zone id.
type Publisher struct {
	writer MessageWriter
	logger logger.Logger
}

// NewPublisher creates a publisher over writer.
func NewPublisher(writer MessageWriter, opts ...PublisherOption) *Publisher {
	p := &Publisher{
		writer: writer,
		logger: logger.Get().Named("kafka-publisher"),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PublishUpdate sends the state produced by the audited update e.
func (p *Publisher) PublishUpdate(ctx context.Context, s model.ZoneConfidenceState, e model.AuditEntry) error { //nolint:gocritic // hugeParam: states are values
	body, err := json.Marshal(ConfidenceUpdate{
		ZoneID:       s.ZoneID,
		AuditID:      e.ID,
		Trigger:      e.Trigger,
		SubmissionID: e.SubmissionID,
		Score:        s.Score,
		Level:        s.Level,
		State:        s.State,
		HazardActive: s.HazardActive,
		Anomaly:      s.AnomalyDetected,
		Factors:      e.Factors,
		At:           e.At,
	})
	if err != nil {
		return fmt.Errorf("encode update %s: %w", s.ZoneID, err)
	}

	err = p.writer.WriteMessages(ctx, kafkago.Message{
		Key:   []byte(s.ZoneID),
		Value: body,
		Time:  e.At,
	})
	if err != nil {
		metrics.RecordKafkaError("publish")
		p.logger.Warn(ctx, "publish failed", logger.String("zone_id", s.ZoneID), logger.Error(err))
		return fmt.Errorf("publish update %s: %w", s.ZoneID, err)
	}
	metrics.RecordKafkaPublished(1)
	return nil
}

// Close flushes and closes the writer.
func (p *Publisher) Close() error {
	return p.writer.Close()
}

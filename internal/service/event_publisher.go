package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Session event types consumed by notification collaborators.
const (
	EventSessionGenerated     = "session.generated"
	EventSessionStatusChanged = "session.status_changed"
	EventMakeupBooked         = "makeup.booked"
	EventExtensionApproved    = "extension.approved"
)

// SessionEvent is the outbound payload published on session lifecycle
// changes. Delivery is best effort; the engine's own state never depends on
// a subscriber seeing it.
type SessionEvent struct {
	Type         string    `json:"type"`
	SessionID    string    `json:"session_id,omitempty"`
	EnrollmentID string    `json:"enrollment_id,omitempty"`
	StudentID    string    `json:"student_id,omitempty"`
	TutorID      string    `json:"tutor_id,omitempty"`
	Status       string    `json:"status,omitempty"`
	SessionDate  string    `json:"session_date,omitempty"`
	EmittedAt    time.Time `json:"emitted_at"`
}

// EventPublisher fans session events out on a redis channel.
type EventPublisher struct {
	client  *redis.Client
	channel string
	logger  *zap.Logger
}

// NewEventPublisher wires the publisher. A nil client disables publishing.
func NewEventPublisher(client *redis.Client, channel string, logger *zap.Logger) *EventPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if channel == "" {
		channel = "session.events"
	}
	return &EventPublisher{client: client, channel: channel, logger: logger}
}

// Publish emits one event. Failures are logged and swallowed: notification
// delivery must never roll back a committed scheduling write.
func (p *EventPublisher) Publish(ctx context.Context, event SessionEvent) {
	if p == nil || p.client == nil {
		return
	}
	if event.EmittedAt.IsZero() {
		event.EmittedAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("failed to encode session event", zap.String("type", event.Type), zap.Error(err))
		return
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		p.logger.Warn("failed to publish session event",
			zap.String("type", event.Type),
			zap.String("channel", p.channel),
			zap.Error(err))
	}
}

func sessionEventFrom(eventType string, sessionID, enrollmentID, studentID, tutorID string, status string, date time.Time) SessionEvent {
	return SessionEvent{
		Type:         eventType,
		SessionID:    sessionID,
		EnrollmentID: enrollmentID,
		StudentID:    studentID,
		TutorID:      tutorID,
		Status:       status,
		SessionDate:  date.Format("2006-01-02"),
		EmittedAt:    time.Now().UTC(),
	}
}

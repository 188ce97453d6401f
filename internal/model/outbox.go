package model

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

type OutboxStatus string

const (
	OutboxStatusPending OutboxStatus = "pending"
	// OutboxStatusProcessing marks an event a relay has claimed but not
	// yet settled.
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Domain event types written to the outbox.
const (
	EventPatientDeleted       = "patient.deleted"
	EventSessionCreated       = "session.created"
	EventAppointmentCreated   = "appointment.created"
	EventAppointmentCompleted = "appointment.completed"
	EventAppointmentCancelled = "appointment.cancelled"
)

type OutboxEvent struct {
	ID           uuid.UUID       `db:"id" json:"id"`
	OwnerID      uuid.UUID       `db:"owner_id" json:"owner_id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       OutboxStatus    `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// NewOutboxEvent marshals payload into a pending event.
func NewOutboxEvent(ownerID uuid.UUID, eventType string, payload interface{}) (*OutboxEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return &OutboxEvent{
		OwnerID:   ownerID,
		EventType: eventType,
		Payload:   data,
		Status:    OutboxStatusPending,
	}, nil
}

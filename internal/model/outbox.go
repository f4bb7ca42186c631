package model

import (
	"encoding/json"
	"time"
)

type OutboxStatus string

const (
	OutboxStatusPending    OutboxStatus = "pending"
	OutboxStatusProcessing OutboxStatus = "processing"
	OutboxStatusProcessed  OutboxStatus = "processed"
	OutboxStatusFailed     OutboxStatus = "failed"
)

// Event types emitted by the domain services.
const (
	EventPatientCreate = "PATIENT_CREATE"
	EventPatientUpdate = "PATIENT_UPDATE"
	EventPatientDelete = "PATIENT_DELETE"
	EventPaymentCreate = "PAYMENT_CREATE"
	EventPaymentUpdate = "PAYMENT_UPDATE"
	EventPaymentDelete = "PAYMENT_DELETE"
)

type OutboxEvent struct {
	ID           string          `db:"id" json:"id"`
	EventType    string          `db:"event_type" json:"event_type"`
	Payload      json.RawMessage `db:"payload" json:"payload"`
	Status       string          `db:"status" json:"status"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	RetryCount   int             `db:"retry_count" json:"retry_count"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	ProcessedAt  *time.Time      `db:"processed_at" json:"processed_at,omitempty"`
	UpdatedAt    time.Time       `db:"updated_at" json:"updated_at"`
}

// Copyright 2025 James Ross
package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Operation enumerates the known (queue, operation) pairs from the wire
// contract. Unknown operations must be rejected by callers, not by the
// envelope codec itself — see internal/errors.
type Operation string

const (
	OpWakeUp            Operation = "wake_up"
	OpProcessTopic      Operation = "process_topic"
	OpGenerateMarkdown  Operation = "generate_markdown"
	OpPublishSiteReq    Operation = "publish_site_request"
)

// ContractVersion is carried on every inter-service payload.
const ContractVersion = "1.0.0"

// Envelope is the common wrapper carried on every queue message.
type Envelope struct {
	MessageID     string          `json:"message_id"`
	CorrelationID string          `json:"correlation_id"`
	Timestamp     time.Time       `json:"timestamp"`
	ServiceName   string          `json:"service_name"`
	Operation     Operation       `json:"operation"`
	Payload       json.RawMessage `json:"payload"`
	DequeueCount  int             `json:"dequeue_count"`
	TraceID       string          `json:"trace_id,omitempty"`
	SpanID        string          `json:"span_id,omitempty"`
}

// NewEnvelope builds an envelope with a fresh message id and the given
// (or propagated) correlation id. Pass an empty correlationID to mint a
// new one, for a unit of work that has no upstream trace.
func NewEnvelope(service string, op Operation, correlationID string, payload any) (Envelope, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, err
	}
	if correlationID == "" {
		correlationID = uuid.NewString()
	}
	return Envelope{
		MessageID:     uuid.NewString(),
		CorrelationID: correlationID,
		Timestamp:     time.Now().UTC(),
		ServiceName:   service,
		Operation:     op,
		Payload:       raw,
		DequeueCount:  0,
	}, nil
}

// Decode unmarshals the envelope payload into v. Unknown extra fields in
// the payload are tolerated (forward compatibility); missing required
// fields surface through whatever v's own validation does.
func (e Envelope) Decode(v any) error {
	return json.Unmarshal(e.Payload, v)
}

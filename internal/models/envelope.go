package models

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

var ErrMissingType = errors.New("envelope has no type")

// Envelope is the wire unit exchanged over the push channel.
type Envelope struct {
	Type EventType       `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ParseEnvelope decodes a raw text frame.
func ParseEnvelope(frame []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return Envelope{}, fmt.Errorf("invalid frame: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrMissingType
	}
	return env, nil
}

// Decode unmarshals the payload into v. A field whose JSON type does not
// match is left at its zero value and the rest of the payload is kept;
// only a payload of the wrong shape altogether is an error.
func (e Envelope) Decode(v interface{}) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("%s envelope has no data", e.Type)
	}
	err := json.Unmarshal(e.Data, v)
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", e.Type, err)
	}
	return nil
}

// IsList reports whether the payload is a JSON array.
func (e Envelope) IsList() bool {
	d := bytes.TrimSpace(e.Data)
	return len(d) > 0 && d[0] == '['
}

// Payload decodes the data into the schema registered for the envelope
// type. Types without a schema return the raw JSON unchanged.
func (e Envelope) Payload() (interface{}, error) {
	switch e.Type {
	case EmergencyAlert, InventoryAlert:
		var a Alert
		if err := e.Decode(&a); err != nil {
			return nil, err
		}
		return a, nil
	case ReadyForSlaughter:
		var b ReadyBatch
		if err := e.Decode(&b); err != nil {
			return nil, err
		}
		return b, nil
	case ProductionReport:
		var r ProductionReportEntry
		if err := e.Decode(&r); err != nil {
			return nil, err
		}
		return r, nil
	case LowInventoryUpdate:
		if !e.IsList() {
			return nil, fmt.Errorf("%s payload is not a list", e.Type)
		}
		var items []InventoryItem
		if err := e.Decode(&items); err != nil {
			return nil, err
		}
		return items, nil
	case TaskAssigned, TaskUpdated, TaskStatusChanged:
		var t ManagementTask
		if err := e.Decode(&t); err != nil {
			return nil, err
		}
		return t, nil
	case TaskCommentAdded:
		var c TaskCommentEvent
		if err := e.Decode(&c); err != nil {
			return nil, err
		}
		return c, nil
	case TaskDeadlineApproaching:
		var d TaskDeadline
		if err := e.Decode(&d); err != nil {
			return nil, err
		}
		return d, nil
	default:
		return e.Data, nil
	}
}

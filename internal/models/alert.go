package models

type Severity string

const (
	SeverityHigh   Severity = "high"
	SeverityMedium Severity = "medium"
	SeverityLow    Severity = "low"
)

// Alert is a notification shown in the console drawer. Alerts are created
// from alert envelopes or synthesized from task events.
type Alert struct {
	ID        ID       `json:"id"`
	Type      string   `json:"type"`
	Title     string   `json:"title"`
	Message   string   `json:"message"`
	Timestamp Time     `json:"timestamp"`
	Severity  Severity `json:"severity"`
	Read      bool     `json:"read,omitempty"`
	TaskID    ID       `json:"taskId,omitempty"`
}

package audit

import "time"

// Outcome is the final state of an answered request.
type Outcome string

const (
	OutcomeDone   Outcome = "DONE"
	OutcomeFailed Outcome = "FAILED"
)

// Channel identifies the surface a request arrived on.
type Channel string

const (
	ChannelHTTP Channel = "http"
	ChannelMCP  Channel = "mcp"
)

// Entry records one question and how the pipeline handled it.
type Entry struct {
	ID             int64     `json:"id"`
	RequestID      string    `json:"request_id"`
	ClientID       string    `json:"client_id"`
	Channel        Channel   `json:"channel"`
	Question       string    `json:"question"`
	Outcome        Outcome   `json:"outcome"`
	Code           string    `json:"code,omitempty"`
	Attempts       int       `json:"attempts"`
	Matched        int       `json:"matched"`
	Returned       int       `json:"returned"`
	Repairs        int       `json:"repairs"`
	Degraded       bool      `json:"degraded"`
	Query          string    `json:"query,omitempty"` // JSON string
	DatasetVersion string    `json:"dataset_version,omitempty"`
	DurationMS     int64     `json:"duration_ms"`
	CreatedAt      time.Time `json:"created_at"`
}

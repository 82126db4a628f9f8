package api

import (
	"github.com/mkarlsen/geocoin/internal/game"
	"github.com/mkarlsen/geocoin/internal/survey"
)

// APIError represents a structured error response with context
type APIError struct {
	Type      string                 `json:"type"`
	Message   string                 `json:"message"`
	Context   map[string]interface{} `json:"context,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp,omitempty"`
}

// Error implements the error interface
func (e APIError) Error() string {
	return e.Message
}

// Error types with proper categorization
const (
	ErrTypeValidation = "validation_error"
	ErrTypeNotVisible = "cache_not_visible"
	ErrTypeTimeout    = "timeout"
	ErrTypeInternal   = "internal_error"
)

// MoveRequest carries either a direction step or an absolute coordinate fix.
// Exactly one form must be present; geolocation updates use the coordinate
// form.
type MoveRequest struct {
	Direction string   `json:"direction,omitempty"`
	Lat       *float64 `json:"lat,omitempty"`
	Lng       *float64 `json:"lng,omitempty"`
}

// CellRequest addresses one grid cell for withdraw/deposit.
type CellRequest struct {
	I int64 `json:"i"`
	J int64 `json:"j"`
}

// StateResponse is the full observable game state.
type StateResponse struct {
	State   game.Snapshot `json:"state"`
	Version string        `json:"version"`
}

// MutationResponse reports a mutation outcome plus the resulting state.
// Changed is false for the silent no-ops (empty cache, empty inventory).
type MutationResponse struct {
	Changed bool          `json:"changed"`
	State   game.Snapshot `json:"state"`
	Version string        `json:"version"`
}

// CellsResponse lists neighborhood cells with their tile bounds.
type CellsResponse struct {
	Cells   []game.CacheView `json:"cells"`
	Version string           `json:"version"`
}

// EventsResponse carries state-change events newer than the requested
// sequence. LatestSeq is the cursor for the next poll.
type EventsResponse struct {
	Events    []game.Event `json:"events"`
	LatestSeq uint64       `json:"latest_seq"`
	Version   string       `json:"version"`
}

// SurveyResponse carries a region scan summary.
type SurveyResponse struct {
	Survey  *survey.Result `json:"survey"`
	Version string         `json:"version"`
}

// HealthResponse represents a basic health check response
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	Timestamp string `json:"timestamp"`
	Uptime    string `json:"uptime,omitempty"`
}

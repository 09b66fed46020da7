package services

import "time"

// ProgressEvent represents a progress update emitted during key validation.
// The streaming handler relays these to clients via SSE; non-streaming
// callers pass no callback and get none.
type ProgressEvent struct {
	Type      string    `json:"type"`  // "progress", "complete", "error"
	Phase     string    `json:"phase"` // Current validation phase
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressCallback receives progress events synchronously, in order, before
// the service proceeds to the next phase. Return an error to abort.
type ProgressCallback func(ProgressEvent) error

package session

import "time"

// Status identifies a pipeline stage reported to the observer.
type Status string

const (
	StatusCalibrating   Status = "calibrating"
	StatusRecording     Status = "recording"
	StatusSilence       Status = "silence"
	StatusProcessing    Status = "processing"
	StatusDocLoading    Status = "doc_loading"
	StatusDocProcessing Status = "doc_processing"
	StatusStreaming     Status = "streaming"
	StatusComplete      Status = "complete"
	StatusError         Status = "error"
)

// Terminal reports whether the status ends a session's status feed.
func (s Status) Terminal() bool {
	return s == StatusComplete || s == StatusError
}

// EventName maps a status onto its wire-level SSE event name.
func (s Status) EventName() string {
	switch s {
	case StatusCalibrating:
		return "calibration"
	case StatusRecording, StatusSilence, StatusProcessing:
		return "recording"
	case StatusDocLoading, StatusDocProcessing:
		return "processing"
	case StatusStreaming, StatusComplete, StatusError:
		return string(s)
	}
	return "recording"
}

// Event is one status update on a session's feed.
type Event struct {
	SessionID string    `json:"session_id"`
	Status    Status    `json:"status"`
	Message   string    `json:"message"`
	Progress  *int      `json:"progress"`
	DocPath   string    `json:"doc_path,omitempty"`
	Timestamp time.Time `json:"-"`
}

// Notifier is the callback pipeline stages report progress through. A nil
// progress means the stage has no meaningful percentage to show.
type Notifier func(status Status, message string, progress *int)

// Progress boxes a progress percentage for an Event.
func Progress(p int) *int {
	return &p
}

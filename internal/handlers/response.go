package handlers

// Error taxonomy used in response envelopes.
const (
	ErrTypeInvalidParameter = "invalid_parameter"
	ErrTypeChatError        = "chat_error"
	ErrTypeTranscription    = "transcription_error"
	ErrTypeServerError      = "server_error"
	ErrTypeDocumentError    = "document_error"
)

// ErrorInfo describes a request failure.
type ErrorInfo struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// Envelope is the standard response shape for every non-streaming endpoint.
type Envelope struct {
	Status  string         `json:"status"`
	Message string         `json:"message"`
	Data    map[string]any `json:"data,omitempty"`
	Error   *ErrorInfo     `json:"error,omitempty"`
}

func successResponse(message string, data map[string]any) Envelope {
	return Envelope{Status: "success", Message: message, Data: data}
}

func errorResponse(message, errType, description string) Envelope {
	return Envelope{
		Status:  "error",
		Message: message,
		Error:   &ErrorInfo{Type: errType, Description: description},
	}
}

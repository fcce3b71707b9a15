// Package models defines the core data structures for CareRouter.
//
// It includes the handler and intent enums, per-user conversation state, the response
// envelope with its card types, and the API request/response shapes shared across modules.
package models

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// Validation constants for input validation
const (
	// MaxMessageLength defines the maximum allowed length for an inbound chat message
	MaxMessageLength = 4096
	// DefaultUserID is used when a caller does not identify the user
	DefaultUserID = "anonymous-user"
)

// Error variables for better error handling and testability
var (
	ErrMissingMessage = errors.New("No message provided")
	ErrMessageTooLong = errors.New("message exceeds maximum length")
)

// ChatRequest is the inbound payload for a single conversational turn.
type ChatRequest struct {
	Message string `json:"message"`
	UserID  string `json:"user_id,omitempty"`
}

// Validate checks the request for boundary-level errors.
func (r ChatRequest) Validate() error {
	msg := strings.TrimSpace(r.Message)
	if msg == "" {
		return ErrMissingMessage
	}
	if utf8.RuneCountInString(msg) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// TruncateMessage cuts msg to at most MaxMessageLength characters without splitting a rune.
func TruncateMessage(msg string) string {
	n := 0
	for i := range msg {
		if n == MaxMessageLength {
			return msg[:i]
		}
		n++
	}
	return msg
}

// EffectiveUserID returns the request's user id or DefaultUserID.
func (r ChatRequest) EffectiveUserID() string {
	if id := strings.TrimSpace(r.UserID); id != "" {
		return id
	}
	return DefaultUserID
}

// APIStatus represents the status of an API response.
type APIStatus string

const (
	// APIStatusOK indicates an API request completed successfully.
	APIStatusOK APIStatus = "ok"
	// APIStatusError indicates an API request failed with an error.
	APIStatusError APIStatus = "error"
	// APIStatusHealthy is reported by the health endpoint.
	APIStatusHealthy APIStatus = "healthy"
)

// APIResponse represents a standard API response with a status and optional data.
type APIResponse struct {
	Status  string      `json:"status"`            // status of the API response
	Message string      `json:"message,omitempty"` // optional message for error responses or additional info
	Result  interface{} `json:"result,omitempty"`  // optional result data for successful responses
}

// Success creates a successful API response with optional result data.
func Success(result interface{}) APIResponse {
	return APIResponse{Status: string(APIStatusOK), Result: result}
}

// Error creates an error API response with a message.
func Error(message string) APIResponse {
	return APIResponse{Status: string(APIStatusError), Message: message}
}

// Healthy is the body returned by the health endpoint.
func Healthy() APIResponse {
	return APIResponse{Status: string(APIStatusHealthy)}
}

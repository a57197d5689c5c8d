// Package domain declares outbox action types and ports
package domain

import "stakegate/internal/adapters/backend"

// Failure codes reported with non-success outcomes
const (
	FailureInvalidPayload       = "INVALID_ACTION_PAYLOAD"
	FailureInstallationNotFound = "INSTALLATION_NOT_FOUND"
	FailureUnsupportedAction    = "UNSUPPORTED_ACTION"
	FailureExecutionError       = "EXECUTION_ERROR"
)

// ActionPayload is the decoded BotAction payload. CommentMarkdown and
// CommentMarker must both be present or the action fails fast without
// touching GitHub
type ActionPayload struct {
	CommentMarkdown string `json:"comment_markdown" validate:"required"`
	CommentMarker   string `json:"comment_marker" validate:"required"`
	Reason          string `json:"reason"`
}

// Outcome is the terminal classification of one executed action
type Outcome struct {
	Outcome        backend.ActionOutcome
	FailureCode    string
	FailureMessage string
}

// Succeeded is the zero-failure outcome
func Succeeded() Outcome {
	return Outcome{Outcome: backend.OutcomeSucceeded}
}

// Failed builds a permanent failure outcome
func Failed(code, msg string) Outcome {
	return Outcome{Outcome: backend.OutcomeFailed, FailureCode: code, FailureMessage: msg}
}

// Retryable builds a transient failure outcome; the backend owns retry
// scheduling
func Retryable(msg string) Outcome {
	return Outcome{Outcome: backend.OutcomeRetryableFailure, FailureCode: FailureExecutionError, FailureMessage: msg}
}

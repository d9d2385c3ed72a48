package pipeline

import (
	"errors"
	"fmt"
)

// Code is the taxonomy code reported to callers of a failed request.
type Code string

const (
	CodeTranslationFailure Code = "TRANSLATION_FAILURE"
	CodeNetworkFailure     Code = "NETWORK_FAILURE"
	CodeExecutionFault     Code = "EXECUTION_FAULT"
	CodeInvalidRequest     Code = "INVALID_REQUEST"
	CodeCanceled           Code = "CANCELED"
)

var (
	// ErrNetwork marks transport-level failures and timeouts reaching an
	// external service. Clients wrap their errors with it.
	ErrNetwork = errors.New("external service unreachable")
	// ErrInvalidRequest indicates a request the pipeline cannot start on.
	ErrInvalidRequest = errors.New("invalid request")
)

// Error is a terminal pipeline failure. Message is safe to show to callers;
// Err carries internal detail for logs only.
type Error struct {
	Code      Code
	Stage     Stage
	Message   string
	LLMOutput string
	Err       error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s at %s: %s: %v", e.Code, e.Stage, e.Message, e.Err)
	}
	return fmt.Sprintf("%s at %s: %s", e.Code, e.Stage, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the taxonomy code of err, or "" when err is not a pipeline
// failure.
func CodeOf(err error) Code {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

const (
	msgEmptyQuestion   = "Missing 'query' parameter in request body."
	msgTranslation     = "Failed to translate query into structured JSON format."
	msgMalformed       = "LLM returned improperly formatted JSON."
	msgNetwork         = "The language service could not be reached. Please try again later."
	msgExecution       = "API service is unavailable. Please try again later."
	msgCanceled        = "Request canceled."
	noMatchAnswer      = "I found no movies matching your criteria in the database."
	fallbackAnswerLead = "I could not write a summary right now, but these movies match your question:"
)

package mcp

import (
	"errors"
	"fmt"

	"github.com/rpggio/cinequery/internal/domain/pipeline"
)

// APIError is the payload of a failed tool call.
type APIError struct {
	Code         string `json:"code"`
	Message      string `json:"message"`
	LLMOutput    string `json:"llm_output,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	RecoveryHint string `json:"recovery_hint,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// MapError maps pipeline failures to tool errors. Internal detail is dropped.
func MapError(err error) *APIError {
	if err == nil {
		return nil
	}
	var pe *pipeline.Error
	if !errors.As(err, &pe) {
		return &APIError{Code: "INTERNAL", Message: "Internal server error."}
	}
	apiErr := &APIError{Code: string(pe.Code), Message: pe.Message, LLMOutput: pe.LLMOutput}
	switch pe.Code {
	case pipeline.CodeTranslationFailure:
		apiErr.RecoveryHint = "Rephrase the question, or call search_movies with explicit filters"
	case pipeline.CodeNetworkFailure:
		apiErr.RecoveryHint = "Retry later"
	case pipeline.CodeInvalidRequest:
		apiErr.RecoveryHint = "Check the tool arguments"
	}
	return apiErr
}

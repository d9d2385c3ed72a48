package query

import "errors"

var (
	// ErrSchema indicates the candidate could not be read as a mapping at all.
	ErrSchema = errors.New("candidate query is not a mapping")
	// ErrExecution indicates the executor could not reach a loaded dataset.
	ErrExecution = errors.New("query execution unavailable")
)

// SchemaError carries the raw offending input for diagnostics.
type SchemaError struct {
	Raw    string
	Reason string
	Err    error
}

func (e *SchemaError) Error() string {
	msg := "invalid candidate query: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *SchemaError) Is(target error) bool {
	return target == ErrSchema
}

func (e *SchemaError) Unwrap() error {
	return e.Err
}

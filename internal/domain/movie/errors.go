package movie

import (
	"errors"
	"fmt"
)

var (
	// ErrDatasetLoad indicates the snapshot could not be turned into a dataset.
	ErrDatasetLoad = errors.New("dataset load failed")
	// ErrDatasetUnavailable indicates no dataset has been loaded yet.
	ErrDatasetUnavailable = errors.New("dataset not loaded")
)

// LoadError describes why a snapshot was rejected.
type LoadError struct {
	Source string
	Index  int // record position, -1 when the failure is not record-specific
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	msg := "load " + e.Source
	if e.Index >= 0 {
		msg += fmt.Sprintf(": record %d", e.Index)
	}
	msg += ": " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *LoadError) Is(target error) bool {
	return target == ErrDatasetLoad
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

package audit

import "errors"

// ErrInvalidInput indicates an audit entry that cannot be stored.
var ErrInvalidInput = errors.New("invalid audit input")

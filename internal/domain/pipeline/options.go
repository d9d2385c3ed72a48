package pipeline

import "time"

// DefaultCallTimeout bounds each external call.
const DefaultCallTimeout = 15 * time.Second

// Option configures a Service.
type Option func(*Service)

// WithCallTimeout sets the timeout applied to each external call.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.callTimeout = d
		}
	}
}

// WithAudit records every finished request.
func WithAudit(recorder AuditRecorder) Option {
	return func(s *Service) { s.audit = recorder }
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

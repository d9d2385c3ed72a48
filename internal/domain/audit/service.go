package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// Service handles audit log operations.
type Service struct {
	repo   Repository
	logger *slog.Logger
}

// NewService creates a new audit service.
func NewService(repo Repository, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{repo: repo, logger: logger}
}

// Record stores an entry, stamping the current time if missing.
func (s *Service) Record(ctx context.Context, entry *Entry) error {
	if entry == nil || entry.RequestID == "" {
		return ErrInvalidInput
	}
	if entry.Outcome != OutcomeDone && entry.Outcome != OutcomeFailed {
		return fmt.Errorf("%w: unknown outcome %q", ErrInvalidInput, entry.Outcome)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Log(ctx, entry); err != nil {
		return fmt.Errorf("logging audit entry: %w", err)
	}
	s.logger.Debug("audit entry recorded", "request_id", entry.RequestID, "outcome", entry.Outcome, "code", entry.Code)
	return nil
}

// Recent lists entries newest first. The limit is clamped to MaxListLimit.
func (s *Service) Recent(ctx context.Context, opts ListOptions) ([]Entry, error) {
	if opts.Limit <= 0 {
		opts.Limit = DefaultListLimit
	}
	opts.Limit = min(opts.Limit, MaxListLimit)
	if opts.Offset < 0 {
		opts.Offset = 0
	}
	entries, err := s.repo.List(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	return entries, nil
}

package sqlite

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rpggio/cinequery/internal/domain/audit"
)

// AuditRepository implements repository.AuditRepository for SQLite
type AuditRepository struct {
	db *DB
}

// NewAuditRepository creates a new AuditRepository
func NewAuditRepository(db *DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Log inserts a new audit entry
func (r *AuditRepository) Log(ctx context.Context, entry *audit.Entry) error {
	createdAt := entry.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO audit_log (
			request_id, client_id, channel, question, outcome, code,
			attempts, matched, returned, repairs, degraded,
			query, dataset_version, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := r.db.ExecContext(ctx, query,
		entry.RequestID,
		entry.ClientID,
		entry.Channel,
		entry.Question,
		entry.Outcome,
		entry.Code,
		entry.Attempts,
		entry.Matched,
		entry.Returned,
		entry.Repairs,
		entry.Degraded,
		entry.Query,
		entry.DatasetVersion,
		entry.DurationMS,
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("failed to log audit entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err == nil {
		entry.ID = id
	}
	entry.CreatedAt = createdAt

	return nil
}

// List returns audit entries matching the given filters, newest first
func (r *AuditRepository) List(ctx context.Context, opts audit.ListOptions) ([]audit.Entry, error) {
	query := `
		SELECT
			id, request_id, client_id, channel, question, outcome, code,
			attempts, matched, returned, repairs, degraded,
			query, dataset_version, duration_ms, created_at
		FROM audit_log
	`

	var args []any
	var conditions []string

	if opts.ClientID != "" {
		conditions = append(conditions, "client_id = ?")
		args = append(args, opts.ClientID)
	}
	if opts.Outcome != nil {
		conditions = append(conditions, "outcome = ?")
		args = append(args, *opts.Outcome)
	}
	if opts.Code != nil {
		conditions = append(conditions, "code = ?")
		args = append(args, *opts.Code)
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}

	query += " ORDER BY created_at DESC, id DESC"

	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
		if opts.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, opts.Offset)
		}
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list audit entries: %w", err)
	}
	defer rows.Close()

	entries := []audit.Entry{}
	for rows.Next() {
		var entry audit.Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.RequestID,
			&entry.ClientID,
			&entry.Channel,
			&entry.Question,
			&entry.Outcome,
			&entry.Code,
			&entry.Attempts,
			&entry.Matched,
			&entry.Returned,
			&entry.Repairs,
			&entry.Degraded,
			&entry.Query,
			&entry.DatasetVersion,
			&entry.DurationMS,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan audit entry: %w", err)
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating audit rows: %w", err)
	}

	return entries, nil
}

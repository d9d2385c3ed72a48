package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/rpggio/cinequery/internal/domain/movie"
)

// SnapshotSource reads a movie snapshot from a SQLite database file.
type SnapshotSource struct {
	Path  string
	Label string // empty = Path
}

func (s SnapshotSource) Name() string {
	if s.Label != "" {
		return s.Label
	}
	return s.Path
}

// Read opens the file read-only and returns every movie row.
func (s SnapshotSource) Read(ctx context.Context) ([]movie.SnapshotRecord, error) {
	if _, err := os.Stat(s.Path); err != nil {
		return nil, fmt.Errorf("snapshot file: %w", err)
	}
	db, err := New("file:" + s.Path + "?mode=ro")
	if err != nil {
		return nil, err
	}
	defer db.Close()
	return ReadSnapshot(ctx, db)
}

// ReadSnapshot returns the movies stored in db in insertion order.
func ReadSnapshot(ctx context.Context, db *DB) ([]movie.SnapshotRecord, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, title, year, rating, director, runtime_minutes
		FROM movies
		ORDER BY rowid
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query movies: %w", err)
	}
	defer rows.Close()

	var records []movie.SnapshotRecord
	byID := make(map[string][]int)
	for rows.Next() {
		var (
			id, title, director sql.NullString
			year, runtime       sql.NullInt64
			rating              sql.NullFloat64
		)
		if err := rows.Scan(&id, &title, &year, &rating, &director, &runtime); err != nil {
			return nil, fmt.Errorf("failed to scan movie: %w", err)
		}
		rec := movie.SnapshotRecord{
			ID:             nullString(id),
			Title:          nullString(title),
			Year:           nullInt(year),
			Rating:         nullFloat(rating),
			Director:       nullString(director),
			RuntimeMinutes: nullInt(runtime),
		}
		if id.Valid {
			byID[id.String] = append(byID[id.String], len(records))
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating movie rows: %w", err)
	}

	err = readList(ctx, db, `SELECT movie_id, genre FROM movie_genres ORDER BY movie_id, position`, func(id, value string) {
		for _, i := range byID[id] {
			records[i].Genres = append(records[i].Genres, value)
		}
	})
	if err != nil {
		return nil, err
	}
	err = readList(ctx, db, `SELECT movie_id, actor FROM movie_actors ORDER BY movie_id, position`, func(id, value string) {
		for _, i := range byID[id] {
			records[i].Actors = append(records[i].Actors, value)
		}
	})
	if err != nil {
		return nil, err
	}

	return records, nil
}

func readList(ctx context.Context, db *DB, query string, add func(id, value string)) error {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to query list: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id, value string
		if err := rows.Scan(&id, &value); err != nil {
			return fmt.Errorf("failed to scan list row: %w", err)
		}
		add(id, value)
	}
	return rows.Err()
}

// WriteSnapshot creates the snapshot tables in db and inserts records.
func WriteSnapshot(ctx context.Context, db *DB, records []movie.SnapshotRecord) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, snapshotSchema); err != nil {
		return fmt.Errorf("failed to create snapshot schema: %w", err)
	}

	for _, rec := range records {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO movies (id, title, year, rating, director, runtime_minutes) VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, rec.Title, rec.Year, rec.Rating, rec.Director, rec.RuntimeMinutes,
		); err != nil {
			return fmt.Errorf("failed to insert movie: %w", err)
		}
		if rec.ID == nil {
			continue
		}
		for i, genre := range rec.Genres {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO movie_genres (movie_id, position, genre) VALUES (?, ?, ?)`,
				*rec.ID, i, genre,
			); err != nil {
				return fmt.Errorf("failed to insert genre: %w", err)
			}
		}
		for i, actor := range rec.Actors {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO movie_actors (movie_id, position, actor) VALUES (?, ?, ?)`,
				*rec.ID, i, actor,
			); err != nil {
				return fmt.Errorf("failed to insert actor: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}
	return nil
}

func nullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nullInt(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	n := int(v.Int64)
	return &n
}

func nullFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

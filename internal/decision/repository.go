// Package decision persists light decisions to the SQLite decision log.
//
// The log is write-only from the controller's point of view: records are
// appended as commands are issued and read back only by the status API.
package decision

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pagination bounds for List.
const (
	defaultLimit = 50
	maxLimit     = 200
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// ErrInvalidCommand is returned by Create for anything but up/down.
var ErrInvalidCommand = errors.New("decision: command must be up or down")

// Record is one issued command and the reading that caused it.
type Record struct {
	ID string `json:"id"`

	// Lux is nil when the reading was not a finite number (NaN, ±Inf).
	Lux       *float64  `json:"lux"`
	Command   string    `json:"command"`
	Threshold float64   `json:"threshold"`
	Topic     string    `json:"topic"`
	CreatedAt time.Time `json:"created_at"`
}

// Filter controls which records List returns.
type Filter struct {
	Command string    // optional: "up" or "down"
	Since   time.Time // optional: only records at or after this time
	Limit   int       // default 50, max 200
	Offset  int
}

// ListResult is one page of records, most recent first.
type ListResult struct {
	Decisions []Record `json:"decisions"`
	Total     int      `json:"total"`
	Limit     int      `json:"limit"`
	Offset    int      `json:"offset"`
}

// Repository defines the decision log operations.
type Repository interface {
	Create(ctx context.Context, rec *Record) error
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository stores records in the decisions table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on an open, migrated database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// Create inserts rec. ID and CreatedAt are generated when empty.
func (r *SQLiteRepository) Create(ctx context.Context, rec *Record) error {
	if rec.Command != "up" && rec.Command != "down" {
		return fmt.Errorf("%w: %q", ErrInvalidCommand, rec.Command)
	}
	if rec.ID == "" {
		rec.ID = "dec-" + uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	var lux any
	if rec.Lux != nil && !math.IsNaN(*rec.Lux) && !math.IsInf(*rec.Lux, 0) {
		lux = *rec.Lux
	} else {
		rec.Lux = nil
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO decisions (id, lux, command, threshold, topic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.ID, lux, rec.Command, rec.Threshold, rec.Topic,
		rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting decision: %w", err)
	}
	return nil
}

// List returns records matching filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultLimit
	}
	if filter.Limit > maxLimit {
		filter.Limit = maxLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.Command != "" {
		conditions = append(conditions, "command = ?")
		args = append(args, filter.Command)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, filter.Since.UTC().Format(timeLayout))
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT COUNT(*) FROM decisions " + where //nolint:gosec // WHERE built from parameterised conditions
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting decisions: %w", err)
	}

	query := "SELECT id, lux, command, threshold, topic, created_at FROM decisions " + where + //nolint:gosec // WHERE built from parameterised conditions
		" ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?"
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying decisions: %w", err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		var rec Record
		var lux sql.NullFloat64
		var createdAt string

		if err := rows.Scan(&rec.ID, &lux, &rec.Command, &rec.Threshold, &rec.Topic, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning decision: %w", err)
		}
		if lux.Valid {
			v := lux.Float64
			rec.Lux = &v
		}
		t, err := time.Parse(timeLayout, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing decision timestamp %q: %w", createdAt, err)
		}
		rec.CreatedAt = t

		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating decisions: %w", err)
	}

	return &ListResult{
		Decisions: records,
		Total:     total,
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}, nil
}

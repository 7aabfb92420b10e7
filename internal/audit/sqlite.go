//go:build sqlite

package audit

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// SQLiteAuditLogger writes events to the audit_events table of a migrated
// SQLite database (see internal/storage/sqlite).
type SQLiteAuditLogger struct {
	db *sql.DB
}

// NewSQLiteAuditLoggerFromDB creates an audit logger sharing an existing connection.
func NewSQLiteAuditLoggerFromDB(db *sql.DB) *SQLiteAuditLogger {
	return &SQLiteAuditLogger{db: db}
}

func (s *SQLiteAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, detail, request_id, status_code)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID,
		event.Timestamp.UTC().Format(time.RFC3339Nano),
		event.Actor,
		event.ActorType,
		event.Action,
		event.ResourceType,
		event.ResourceID,
		event.ResourceName,
		event.Detail,
		event.RequestID,
		event.StatusCode,
	)
	return err
}

func (s *SQLiteAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	where := "1=1"
	args := []any{}

	if opts.Actor != "" {
		where += " AND actor = ?"
		args = append(args, opts.Actor)
	}
	if opts.Action != "" {
		where += " AND action = ?"
		args = append(args, opts.Action)
	}
	if opts.ResourceType != "" {
		where += " AND resource_type = ?"
		args = append(args, opts.ResourceType)
	}
	if opts.Since != nil {
		where += " AND timestamp >= ?"
		args = append(args, opts.Since.UTC().Format(time.RFC3339Nano))
	}
	if opts.Until != nil {
		where += " AND timestamp <= ?"
		args = append(args, opts.Until.UTC().Format(time.RFC3339Nano))
	}

	var total int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, detail, request_id, status_code FROM audit_events WHERE " +
		where + " ORDER BY timestamp DESC LIMIT ? OFFSET ?"
	args = append(args, normalizeLimit(opts.Limit), max(opts.Offset, 0))

	events, err := s.query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *SQLiteAuditLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error) {
	return s.query(ctx, `
		SELECT id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, detail, request_id, status_code
		FROM audit_events
		WHERE resource_type = ? AND resource_id = ?
		ORDER BY timestamp DESC
		LIMIT ?`, resourceType, resourceID, maxListLimit)
}

func (s *SQLiteAuditLogger) query(ctx context.Context, query string, args ...any) ([]*AuditEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		var ts string
		if err := rows.Scan(&e.ID, &ts, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.ResourceName, &e.Detail, &e.RequestID, &e.StatusCode); err != nil {
			return nil, err
		}
		e.Timestamp, _ = time.Parse(time.RFC3339Nano, ts)
		events = append(events, &e)
	}
	return events, rows.Err()
}

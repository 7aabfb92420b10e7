//go:build postgres

package audit

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const pgAuditColumns = `id::text, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, detail, request_id, status_code`

// PostgresAuditLogger writes events to the audit_events table through a
// shared pgx pool (see internal/storage/postgres).
type PostgresAuditLogger struct {
	pool *pgxpool.Pool
}

// NewPostgresAuditLoggerFromPool creates an audit logger using an existing pool.
func NewPostgresAuditLoggerFromPool(pool *pgxpool.Pool) *PostgresAuditLogger {
	return &PostgresAuditLogger{pool: pool}
}

func (s *PostgresAuditLogger) Log(ctx context.Context, event *AuditEvent) error {
	if event == nil {
		return nil
	}
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_events (id, timestamp, actor, actor_type, action, resource_type, resource_id, resource_name, detail, request_id, status_code)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		event.ID, event.Timestamp, event.Actor, event.ActorType, event.Action,
		event.ResourceType, event.ResourceID, event.ResourceName, event.Detail,
		event.RequestID, event.StatusCode,
	)
	return err
}

func (s *PostgresAuditLogger) List(ctx context.Context, opts ListOptions) ([]*AuditEvent, int, error) {
	where := "TRUE"
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if opts.Actor != "" {
		where += " AND actor = " + arg(opts.Actor)
	}
	if opts.Action != "" {
		where += " AND action = " + arg(opts.Action)
	}
	if opts.ResourceType != "" {
		where += " AND resource_type = " + arg(opts.ResourceType)
	}
	if opts.Since != nil {
		where += " AND timestamp >= " + arg(*opts.Since)
	}
	if opts.Until != nil {
		where += " AND timestamp <= " + arg(*opts.Until)
	}

	var total int
	if err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM audit_events WHERE "+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := "SELECT " + pgAuditColumns + " FROM audit_events WHERE " + where + " ORDER BY timestamp DESC"
	query += " LIMIT " + arg(normalizeLimit(opts.Limit))
	query += " OFFSET " + arg(max(opts.Offset, 0))

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	events, err := scanAuditEvents(rows)
	if err != nil {
		return nil, 0, err
	}
	return events, total, nil
}

func (s *PostgresAuditLogger) GetByResource(ctx context.Context, resourceType, resourceID string) ([]*AuditEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+pgAuditColumns+`
		FROM audit_events
		WHERE resource_type = $1 AND resource_id = $2
		ORDER BY timestamp DESC
		LIMIT $3`, resourceType, resourceID, maxListLimit)
	if err != nil {
		return nil, err
	}
	return scanAuditEvents(rows)
}

func scanAuditEvents(rows pgx.Rows) ([]*AuditEvent, error) {
	defer rows.Close()

	var events []*AuditEvent
	for rows.Next() {
		var e AuditEvent
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &e.ActorType, &e.Action, &e.ResourceType,
			&e.ResourceID, &e.ResourceName, &e.Detail, &e.RequestID, &e.StatusCode); err != nil {
			return nil, err
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

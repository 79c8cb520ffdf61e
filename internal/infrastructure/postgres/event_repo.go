package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arjunbhagat/eventsched/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EventRepository is the Postgres implementation of catalog.Gateway.
type EventRepository struct {
	pool *pgxpool.Pool
}

func NewEventRepository(pool *pgxpool.Pool) *EventRepository {
	return &EventRepository{pool: pool}
}

const eventColumns = `
	schema_name, name, definer, time_zone, body,
	client_charset, connection_collation, sql_mode,
	schedule_kind, execute_at, interval_expression, interval_unit, starts, ends,
	on_completion, originator, comment,
	status, last_executed, next_execute_at, execution_count,
	created_at, updated_at`

func (r *EventRepository) EnumerateEvents(ctx context.Context) ([]*domain.EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events ORDER BY schema_name, name`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("enumerate events: %w", err)
	}
	defer rows.Close()

	var events []*domain.EventRecord
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *EventRepository) Load(ctx context.Context, schema, name string) (*domain.EventRecord, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE schema_name = $1 AND name = $2`
	row := r.pool.QueryRow(ctx, query, schema, name)
	return scanEvent(row)
}

func (r *EventRepository) PersistCreate(ctx context.Context, e *domain.EventRecord) error {
	query := `
		INSERT INTO events (
			schema_name, name, definer, time_zone, body,
			client_charset, connection_collation, sql_mode,
			schedule_kind, execute_at, interval_expression, interval_unit, starts, ends,
			on_completion, originator, comment,
			status, last_executed, next_execute_at, execution_count,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8,
			$9, $10, $11, $12, $13, $14,
			$15, $16, $17,
			$18, $19, $20, $21,
			$22, $23
		)`

	_, err := r.pool.Exec(ctx, query, eventArgs(e)...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// PersistUpdate overwrites the row currently keyed by (oldSchema, oldName),
// including schema_name/name themselves, so a rename moves the row in
// place rather than requiring a separate delete+insert.
func (r *EventRepository) PersistUpdate(ctx context.Context, oldSchema, oldName string, e *domain.EventRecord) error {
	query := `
		UPDATE events SET
			schema_name = $1, name = $2,
			definer = $3, time_zone = $4, body = $5,
			client_charset = $6, connection_collation = $7, sql_mode = $8,
			schedule_kind = $9, execute_at = $10, interval_expression = $11,
			interval_unit = $12, starts = $13, ends = $14,
			on_completion = $15, originator = $16, comment = $17,
			status = $18, last_executed = $19, next_execute_at = $20, execution_count = $21,
			created_at = $22, updated_at = $23
		WHERE schema_name = $24 AND name = $25`

	args := append(eventArgs(e), oldSchema, oldName)
	tag, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("update event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EventRepository) PersistDrop(ctx context.Context, schema, name string) error {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM events WHERE schema_name = $1 AND name = $2`, schema, name)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *EventRepository) PersistDropSchema(ctx context.Context, schema string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM events WHERE schema_name = $1`, schema)
	if err != nil {
		return fmt.Errorf("delete schema events: %w", err)
	}
	return nil
}

// UpdateTiming persists only the fields the driver task advances after
// an execution, deliberately narrower than PersistUpdate so a concurrent
// ALTER EVENT cannot be clobbered by a racing execution's bookkeeping
// write, and vice versa.
func (r *EventRepository) UpdateTiming(ctx context.Context, e *domain.EventRecord) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE events SET
			status = $3, last_executed = $4, next_execute_at = $5,
			execution_count = $6, updated_at = $7
		WHERE schema_name = $1 AND name = $2`,
		e.Schema, e.Name, e.Status, e.LastExecuted, e.ExecuteAt, e.ExecutionCount, time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("update timing: %w", err)
	}
	return nil
}

func eventArgs(e *domain.EventRecord) []any {
	var executeAt *time.Time
	if e.Schedule.IsOneShot() {
		at := e.Schedule.ExecuteAt
		executeAt = &at
	}

	return []any{
		e.Schema, e.Name, e.Definer, e.TimeZone, e.Body,
		e.CreationCtx.ClientCharset, e.CreationCtx.ConnectionCollation, e.CreationCtx.SQLMode,
		int(e.Schedule.Kind), executeAt, e.Schedule.Expression, string(e.Schedule.Unit), e.Schedule.Starts, e.Schedule.Ends,
		string(e.OnCompletion), e.Originator, e.Comment,
		string(e.Status), e.LastExecuted, e.ExecuteAt, e.ExecutionCount,
		e.Created, e.Modified,
	}
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*domain.EventRecord, error) {
	var e domain.EventRecord
	var kind int
	var oneShotAt *time.Time
	var unit string
	var status, onCompletion string

	err := row.Scan(
		&e.Schema, &e.Name, &e.Definer, &e.TimeZone, &e.Body,
		&e.CreationCtx.ClientCharset, &e.CreationCtx.ConnectionCollation, &e.CreationCtx.SQLMode,
		&kind, &oneShotAt, &e.Schedule.Expression, &unit, &e.Schedule.Starts, &e.Schedule.Ends,
		&onCompletion, &e.Originator, &e.Comment,
		&status, &e.LastExecuted, &e.ExecuteAt, &e.ExecutionCount,
		&e.Created, &e.Modified,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("scan event: %w", err)
	}

	e.Schedule.Kind = domain.ScheduleKind(kind)
	e.Schedule.Unit = domain.IntervalUnit(unit)
	if oneShotAt != nil {
		e.Schedule.ExecuteAt = *oneShotAt
	}
	e.Status = domain.Status(status)
	e.OnCompletion = domain.OnCompletion(onCompletion)

	return &e, nil
}

package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zhirschtritt/userposts/internal/events"
)

const (
	UserEventsTable = "user_events"
	PostEventsTable = "post_events"
)

var _ events.EventRepository = new(DBEventsRepository)

// DBEventsRepository stores audit events in a service-owned table.
type DBEventsRepository struct {
	db    *pgxpool.Pool
	table string
}

func NewDBEventsRepository(db *pgxpool.Pool, table string) *DBEventsRepository {
	return &DBEventsRepository{
		db:    db,
		table: pgx.Identifier{table}.Sanitize(),
	}
}

func (r *DBEventsRepository) BulkInsert(ctx context.Context, evts []events.Event) error {
	if len(evts) == 0 {
		return nil
	}

	values := make([]string, len(evts))
	args := make([]any, 0, len(evts)*7)
	argIndex := 1

	for i, event := range evts {
		data, err := json.Marshal(event.Data)
		if err != nil {
			return fmt.Errorf("failed to marshal event data: %w", err)
		}

		values[i] = fmt.Sprintf("($%d, $%d, $%d, $%d, $%d, $%d, $%d)",
			argIndex, argIndex+1, argIndex+2, argIndex+3, argIndex+4, argIndex+5, argIndex+6)

		args = append(args, event.ID, event.Type, event.AggregateType, event.AggregateID, event.Version, event.Timestamp, data)
		argIndex += 7
	}

	query := fmt.Sprintf(
		`INSERT INTO %s (id, type, aggregate_type, aggregate_id, version, timestamp, data) VALUES %s
		ON CONFLICT (id) DO NOTHING`,
		r.table, strings.Join(values, ", "))

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to bulk insert events: %w", err)
	}

	return nil
}

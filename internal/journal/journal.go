// Package journal records every lifecycle transition of an issue record as
// an append-only event stream, written inside the same transaction as the
// transition itself.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	jsoniter "github.com/json-iterator/go"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var (
	ErrConcurrencyConflict = errors.New("concurrency conflict: version mismatch")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Event is one recorded lifecycle transition.
type Event struct {
	ID        int64                  `json:"id"`
	RecordID  uuid.UUID              `json:"record_id"`
	EventType string                 `json:"event_type"`
	EventData map[string]interface{} `json:"event_data"`
	Version   int                    `json:"version"`
	CreatedAt time.Time              `json:"created_at"`
}

// Store appends and loads transition events.
type Store struct {
	db     *sql.DB
	tracer trace.Tracer
}

// NewStore creates a journal store.
func NewStore(db *sql.DB) *Store {
	return &Store{
		db:     db,
		tracer: otel.Tracer("libris/journal"),
	}
}

// AppendTx appends one event for a record inside the caller's transaction.
// The version is checked optimistically; a duplicate (record_id, version)
// insert reports ErrConcurrencyConflict.
func (s *Store) AppendTx(ctx context.Context, tx *sql.Tx, recordID uuid.UUID, expectedVersion int, eventType string, payload interface{}) error {
	ctx, span := s.tracer.Start(ctx, "journal.append",
		trace.WithAttributes(
			attribute.String("record.id", recordID.String()),
			attribute.String("event.type", eventType),
			attribute.Int("expected.version", expectedVersion),
		),
	)
	defer span.End()

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event payload: %w", err)
	}

	var currentVersion int
	err = tx.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(version), 0)
		FROM loan_events
		WHERE record_id = $1
	`, recordID).Scan(&currentVersion)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("query current version: %w", err)
	}

	if currentVersion != expectedVersion {
		span.SetAttributes(
			attribute.Int("actual.version", currentVersion),
			attribute.Bool("conflict.detected", true),
		)
		return ErrConcurrencyConflict
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loan_events (record_id, event_type, event_data, version, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, recordID, eventType, data, expectedVersion+1, time.Now().UTC())
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return ErrConcurrencyConflict
		}
		return fmt.Errorf("insert event: %w", err)
	}

	span.SetAttributes(attribute.Bool("append.success", true))
	return nil
}

// Load retrieves all events for a record in version order.
func (s *Store) Load(ctx context.Context, recordID uuid.UUID) ([]Event, error) {
	ctx, span := s.tracer.Start(ctx, "journal.load",
		trace.WithAttributes(attribute.String("record.id", recordID.String())),
	)
	defer span.End()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, record_id, event_type, event_data, version, created_at
		FROM loan_events
		WHERE record_id = $1
		ORDER BY version ASC
	`, recordID)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var event Event
		var raw []byte
		if err := rows.Scan(&event.ID, &event.RecordID, &event.EventType, &raw, &event.Version, &event.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &event.EventData); err != nil {
				return nil, fmt.Errorf("unmarshal event payload: %w", err)
			}
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	span.SetAttributes(attribute.Int("events.loaded", len(events)))
	return events, nil
}

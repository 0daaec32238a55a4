// Package outboxinfra provides the Postgres-backed outbox.Store.
package outboxinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
)

// PostgresStore implements outbox.Store against the events/outbox tables.
type PostgresStore struct {
	db *sqlx.DB
}

func NewPostgresStore(db *sqlx.DB) outbox.Store {
	return &PostgresStore{db: db}
}

// Append inserts ev with the next seq for its aggregate and one outbox entry
// per destination, all inside a single transaction so a reader can never
// observe an event without its delivery entries or vice versa.
func (s *PostgresStore) Append(ctx context.Context, ev outbox.Event, destinations []string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errx.Wrap(err, "failed to begin outbox append transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var seq int64
	err = tx.GetContext(ctx, &seq,
		`SELECT COALESCE(MAX(seq), 0) + 1 FROM events WHERE aggregate_id = $1`,
		ev.AggregateID)
	if err != nil {
		return errx.Wrap(err, "failed to compute next seq", errx.TypeInternal)
	}
	ev.Seq = seq

	res, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, aggregate_id, seq, event_type, payload, fingerprint, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, NOW())
		 ON CONFLICT (aggregate_id, event_type, fingerprint) DO NOTHING`,
		ev.ID, ev.AggregateID, ev.Seq, ev.Type, ev.Payload, ev.Fingerprint)
	if err != nil {
		return outbox.ErrAppendFailed().WithDetail("aggregate_id", ev.AggregateID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Same (aggregate_id, event_type, fingerprint) already recorded:
		// this Append is a retry or a re-run backfill, not a new fact.
		return tx.Commit()
	}

	for _, dest := range destinations {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO outbox (id, event_id, destination, status, attempts, next_attempt_at, created_at, updated_at)
			 VALUES ($1, $2, $3, 'pending', 0, NOW(), NOW(), NOW())`,
			uuid.New(), ev.ID, dest)
		if err != nil {
			return outbox.ErrAppendFailed().WithDetail("destination", dest)
		}
	}

	if err := tx.Commit(); err != nil {
		return errx.Wrap(err, "failed to commit outbox append", errx.TypeInternal)
	}
	return nil
}

// ClaimBatch locks up to limit due entries so concurrent worker instances
// never double-deliver the same entry.
func (s *PostgresStore) ClaimBatch(ctx context.Context, limit int) ([]outbox.ClaimedEntry, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin claim transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	var rows []entryEventRow
	err = tx.SelectContext(ctx, &rows, `
		SELECT o.id, o.event_id, o.destination, o.status, o.attempts,
		       o.next_attempt_at, o.last_error, o.created_at, o.updated_at,
		       e.id AS "event.id", e.aggregate_id AS "event.aggregate_id",
		       e.seq AS "event.seq", e.event_type AS "event.event_type",
		       e.payload AS "event.payload", e.created_at AS "event.created_at"
		FROM outbox o
		JOIN events e ON e.id = o.event_id
		WHERE o.status = 'pending' AND o.next_attempt_at <= NOW()
		ORDER BY o.next_attempt_at
		LIMIT $1
		FOR UPDATE OF o SKIP LOCKED`, limit)
	if err != nil {
		return nil, outbox.ErrClaimFailed()
	}

	if len(rows) > 0 {
		ids := make([]uuid.UUID, len(rows))
		for i, r := range rows {
			ids[i] = r.ID
		}
		_, err = tx.ExecContext(ctx,
			`UPDATE outbox SET status = 'claimed', updated_at = NOW() WHERE id = ANY($1)`,
			pq.Array(pqUUIDArray(ids)))
		if err != nil {
			return nil, outbox.ErrClaimFailed()
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit claim", errx.TypeInternal)
	}

	claimed := make([]outbox.ClaimedEntry, len(rows))
	for i, r := range rows {
		claimed[i] = r.toClaimed()
	}
	return claimed, nil
}

func (s *PostgresStore) MarkDelivered(ctx context.Context, entryID uuid.UUID) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'delivered', updated_at = NOW() WHERE id = $1`, entryID)
	if err != nil {
		return errx.Wrap(err, "failed to mark entry delivered", errx.TypeInternal)
	}
	return nil
}

func (s *PostgresStore) MarkFailed(ctx context.Context, entryID uuid.UUID, errMsg string, nextAttempt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'pending', attempts = attempts + 1,
		 last_error = $2, next_attempt_at = $3, updated_at = NOW() WHERE id = $1`,
		entryID, errMsg, nextAttempt)
	if err != nil {
		return errx.Wrap(err, "failed to mark entry failed", errx.TypeInternal)
	}
	return nil
}

func (s *PostgresStore) MarkDead(ctx context.Context, entryID uuid.UUID, errMsg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE outbox SET status = 'dead', attempts = attempts + 1,
		 last_error = $2, updated_at = NOW() WHERE id = $1`,
		entryID, errMsg)
	if err != nil {
		return errx.Wrap(err, "failed to mark entry dead", errx.TypeInternal)
	}
	return nil
}

type entryEventRow struct {
	ID            uuid.UUID      `db:"id"`
	EventID       uuid.UUID      `db:"event_id"`
	Destination   string         `db:"destination"`
	Status        string         `db:"status"`
	Attempts      int            `db:"attempts"`
	NextAttemptAt time.Time      `db:"next_attempt_at"`
	LastError     sql.NullString `db:"last_error"`
	CreatedAt     time.Time      `db:"created_at"`
	UpdatedAt     time.Time      `db:"updated_at"`

	EvID          uuid.UUID `db:"event.id"`
	EvAggregateID string    `db:"event.aggregate_id"`
	EvSeq         int64     `db:"event.seq"`
	EvType        string    `db:"event.event_type"`
	EvPayload     []byte    `db:"event.payload"`
	EvCreatedAt   time.Time `db:"event.created_at"`
}

func (r entryEventRow) toClaimed() outbox.ClaimedEntry {
	return outbox.ClaimedEntry{
		Entry: outbox.Entry{
			ID:          r.ID,
			EventID:     r.EventID,
			Destination: r.Destination,
			Status:      outbox.DeliveryStatus(r.Status),
			Attempts:    r.Attempts,
			NextAttempt: r.NextAttemptAt,
			LastError:   r.LastError.String,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		},
		Event: outbox.Event{
			ID:          r.EvID,
			AggregateID: r.EvAggregateID,
			Seq:         r.EvSeq,
			Type:        r.EvType,
			Payload:     r.EvPayload,
			CreatedAt:   r.EvCreatedAt,
		},
	}
}

func pqUUIDArray(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}

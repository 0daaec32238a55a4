// Package outbox implements the append-only event store and the transactional
// outbox delivery loop that ships those events to external subscribers.
package outbox

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/lanonasis/auth-gateway/pkg/errx"
)

// Event is a single row of the append-only event log. Seq is monotonic per
// AggregateID and assigned by the store, never by the caller. Fingerprint is
// a deterministic digest of Payload: the store dedupes on
// (AggregateID, Type, Fingerprint), so appending the same logical event twice
// — e.g. a re-run backfill — is a no-op rather than a duplicate.
type Event struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	AggregateID string          `db:"aggregate_id" json:"aggregate_id"`
	Seq         int64           `db:"seq" json:"seq"`
	Type        string          `db:"event_type" json:"event_type"`
	Payload     json.RawMessage `db:"payload" json:"payload"`
	Fingerprint string          `db:"fingerprint" json:"-"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// DeliveryStatus is the lifecycle state of an outbox entry.
type DeliveryStatus string

const (
	StatusPending   DeliveryStatus = "pending"
	StatusDelivered DeliveryStatus = "delivered"
	StatusDead      DeliveryStatus = "dead"
)

// Entry is a row of the outbox table: one delivery attempt tracker per event.
type Entry struct {
	ID          uuid.UUID       `db:"id" json:"id"`
	EventID     uuid.UUID       `db:"event_id" json:"event_id"`
	Destination string          `db:"destination" json:"destination"`
	Status      DeliveryStatus  `db:"status" json:"status"`
	Attempts    int             `db:"attempts" json:"attempts"`
	NextAttempt time.Time       `db:"next_attempt_at" json:"next_attempt_at"`
	LastError   string          `db:"last_error" json:"last_error"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

// NewEvent builds an Event envelope for a not-yet-assigned sequence number.
func NewEvent(aggregateID, eventType string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, errRegistry.NewWithCause(CodeInvalidPayload, err)
	}
	sum := sha256.Sum256(raw)
	return Event{
		ID:          uuid.New(),
		AggregateID: aggregateID,
		Type:        eventType,
		Payload:     raw,
		Fingerprint: hex.EncodeToString(sum[:]),
	}, nil
}

// Store appends events and claims outbox entries for delivery.
type Store interface {
	// Append inserts ev with the next seq for its aggregate and creates one
	// outbox entry per destination, all within a single transaction.
	Append(ctx context.Context, ev Event, destinations []string) error
	// ClaimBatch locks up to limit due entries with SELECT ... FOR UPDATE SKIP LOCKED.
	ClaimBatch(ctx context.Context, limit int) ([]ClaimedEntry, error)
	MarkDelivered(ctx context.Context, entryID uuid.UUID) error
	MarkFailed(ctx context.Context, entryID uuid.UUID, errMsg string, nextAttempt time.Time) error
	MarkDead(ctx context.Context, entryID uuid.UUID, errMsg string) error
}

// ClaimedEntry pairs an outbox entry with the event it delivers.
type ClaimedEntry struct {
	Entry Entry
	Event Event
}

// Publisher delivers a claimed entry to its destination. Implementations are
// typically HTTP webhook senders or the realtime hub's broadcast method.
type Publisher interface {
	Publish(ctx context.Context, dest string, ev Event) error
}

var errRegistry = errx.NewRegistry("OUTBOX")

var (
	CodeInvalidPayload = errRegistry.Register("INVALID_PAYLOAD", errx.TypeValidation, http.StatusBadRequest, "event payload could not be marshaled")
	CodeAppendFailed   = errRegistry.Register("APPEND_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to append event")
	CodeClaimFailed    = errRegistry.Register("CLAIM_FAILED", errx.TypeInternal, http.StatusInternalServerError, "failed to claim outbox entries")
	CodeAlreadyRunning = errRegistry.Register("ALREADY_RUNNING", errx.TypeConflict, http.StatusConflict, "outbox worker already running")
)

func ErrInvalidPayload() *errx.Error { return errRegistry.New(CodeInvalidPayload) }
func ErrAppendFailed() *errx.Error   { return errRegistry.New(CodeAppendFailed) }
func ErrClaimFailed() *errx.Error    { return errRegistry.New(CodeClaimFailed) }
func ErrAlreadyRunning() *errx.Error { return errRegistry.New(CodeAlreadyRunning) }

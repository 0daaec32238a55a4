package oauthinfra

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// DevicePostgresRepository is the Postgres implementation of oauth.DeviceRepository.
type DevicePostgresRepository struct {
	db *sqlx.DB
}

func NewDevicePostgresRepository(db *sqlx.DB) oauth.DeviceRepository {
	return &DevicePostgresRepository{db: db}
}

type devicePersistence struct {
	DeviceCode   string         `db:"device_code"`
	UserCode     string         `db:"user_code"`
	ClientID     string         `db:"client_id"`
	Scope        pq.StringArray `db:"scope"`
	Status       string         `db:"status"`
	UserID       *string        `db:"user_id"`
	Interval     int            `db:"interval_seconds"`
	CreatedAt    sql.NullTime   `db:"created_at"`
	ExpiresAt    sql.NullTime   `db:"expires_at"`
	LastPolledAt *sql.NullTime  `db:"last_polled_at"`
}

func toDeviceDomain(p devicePersistence) oauth.DeviceGrant {
	var userID *kernel.UserID
	if p.UserID != nil {
		id := kernel.NewUserID(*p.UserID)
		userID = &id
	}
	grant := oauth.DeviceGrant{
		DeviceCode: p.DeviceCode,
		UserCode:   p.UserCode,
		ClientID:   kernel.NewClientID(p.ClientID),
		Scope:      p.Scope,
		Status:     oauth.DeviceGrantStatus(p.Status),
		UserID:     userID,
		Interval:   p.Interval,
		CreatedAt:  p.CreatedAt.Time,
		ExpiresAt:  p.ExpiresAt.Time,
	}
	if p.LastPolledAt != nil && p.LastPolledAt.Valid {
		t := p.LastPolledAt.Time
		grant.LastPolledAt = &t
	}
	return grant
}

func (r *DevicePostgresRepository) Save(ctx context.Context, grant oauth.DeviceGrant) error {
	query := `
		INSERT INTO oauth_device_grants (
			device_code, user_code, client_id, scope, status, user_id,
			interval_seconds, created_at, expires_at
		) VALUES (
			:device_code, :user_code, :client_id, :scope, :status, :user_id,
			:interval_seconds, NOW(), :expires_at
		)`
	_, err := r.db.NamedExecContext(ctx, query, map[string]any{
		"device_code":      grant.DeviceCode,
		"user_code":        grant.UserCode,
		"client_id":        grant.ClientID.String(),
		"scope":            pq.StringArray(grant.Scope),
		"status":           string(grant.Status),
		"user_id":          nil,
		"interval_seconds": grant.Interval,
		"expires_at":       grant.ExpiresAt,
	})
	if err != nil {
		return errx.Wrap(err, "failed to save device grant", errx.TypeInternal)
	}
	return nil
}

func (r *DevicePostgresRepository) FindByDeviceCode(ctx context.Context, deviceCode string) (*oauth.DeviceGrant, error) {
	var p devicePersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM oauth_device_grants WHERE device_code = $1`, deviceCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, oauth.ErrDeviceNotFound()
		}
		return nil, errx.Wrap(err, "failed to find device grant", errx.TypeInternal)
	}
	g := toDeviceDomain(p)
	return &g, nil
}

func (r *DevicePostgresRepository) FindByUserCode(ctx context.Context, userCode string) (*oauth.DeviceGrant, error) {
	var p devicePersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM oauth_device_grants WHERE user_code = $1`, userCode)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, oauth.ErrDeviceNotFound()
		}
		return nil, errx.Wrap(err, "failed to find device grant by user code", errx.TypeInternal)
	}
	g := toDeviceDomain(p)
	return &g, nil
}

func (r *DevicePostgresRepository) Approve(ctx context.Context, userCode string, userID kernel.UserID) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE oauth_device_grants SET status = $1, user_id = $2 WHERE user_code = $3`,
		oauth.DeviceStatusApproved, userID.String(), userCode)
	if err != nil {
		return errx.Wrap(err, "failed to approve device grant", errx.TypeInternal)
	}
	return nil
}

func (r *DevicePostgresRepository) Deny(ctx context.Context, userCode string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE oauth_device_grants SET status = $1 WHERE user_code = $2`, oauth.DeviceStatusDenied, userCode)
	if err != nil {
		return errx.Wrap(err, "failed to deny device grant", errx.TypeInternal)
	}
	return nil
}

func (r *DevicePostgresRepository) UpdateLastPolled(ctx context.Context, deviceCode string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE oauth_device_grants SET last_polled_at = NOW() WHERE device_code = $1`, deviceCode)
	if err != nil {
		return errx.Wrap(err, "failed to update device grant poll time", errx.TypeInternal)
	}
	return nil
}

func (r *DevicePostgresRepository) CleanExpired(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM oauth_device_grants WHERE expires_at < NOW() - INTERVAL '1 hour'`)
	if err != nil {
		return errx.Wrap(err, "failed to clean expired device grants", errx.TypeInternal)
	}
	return nil
}

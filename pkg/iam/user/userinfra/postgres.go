package userinfra

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// PostgresRepository is the Postgres implementation of user.Repository.
type PostgresRepository struct {
	db *sqlx.DB
}

func NewPostgresRepository(db *sqlx.DB) user.Repository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Save(ctx context.Context, u user.User) error {
	query := `
		INSERT INTO users (id, organization_id, email, name, role, plan, is_active, created_at, updated_at)
		VALUES (:id, :organization_id, :email, :name, :role, :plan, :is_active, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name, role = EXCLUDED.role, plan = EXCLUDED.plan,
			is_active = EXCLUDED.is_active, updated_at = EXCLUDED.updated_at`
	_, err := r.db.NamedExecContext(ctx, query, u)
	if err != nil {
		return errx.Wrap(err, "failed to save user", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var u user.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by id", errx.TypeInternal)
	}
	return &u, nil
}

func (r *PostgresRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	return &u, nil
}

// FindOrCreateFromIdentity seeds role/plan only when the account is first
// created; an existing account's role and plan are never overwritten by a
// claim from the identity provider.
func (r *PostgresRepository) FindOrCreateFromIdentity(ctx context.Context, email, name string, orgID kernel.OrganizationID) (*user.User, error) {
	existing, err := r.FindByEmail(ctx, email)
	if err == nil {
		return existing, nil
	}

	newUser := user.User{
		ID:             kernel.NewUserID(uuid.New().String()),
		OrganizationID: orgID,
		Email:          email,
		Name:           name,
		Role:           user.RoleUser,
		IsActive:       true,
	}
	query := `
		INSERT INTO users (id, organization_id, email, name, role, plan, is_active, created_at, updated_at)
		VALUES (:id, :organization_id, :email, :name, :role, :plan, :is_active, NOW(), NOW())
		ON CONFLICT (email) DO NOTHING`
	_, err = r.db.NamedExecContext(ctx, query, newUser)
	if err != nil {
		return nil, errx.Wrap(err, "failed to create user from identity", errx.TypeInternal)
	}
	return r.FindByEmail(ctx, email)
}

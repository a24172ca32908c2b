package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const profileColumns = `id, tenant_id, role, is_active, full_name, email, avatar_url, created_at, updated_at`

// PostgresRepository implements UserRepository using pgxpool. Credentials
// live in auth_users; profiles live in profiles and share the same id.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new UserRepository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) UserRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts the credential record and the profile in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, u NewUser, passwordHash string) (*Principal, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning user transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	email := strings.ToLower(strings.TrimSpace(u.Email))

	var id uuid.UUID
	err = tx.QueryRow(ctx, `
		INSERT INTO auth_users (email, password_hash)
		VALUES ($1, $2)
		RETURNING id`, email, passwordHash).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateEmail
		}
		return nil, fmt.Errorf("inserting credentials: %w", err)
	}

	p, err := scanPrincipal(tx.QueryRow(ctx, `
		INSERT INTO profiles (id, tenant_id, role, is_active, full_name, email)
		VALUES ($1, $2, $3, TRUE, $4, $5)
		RETURNING `+profileColumns, id, u.TenantID, u.Role, u.FullName, email))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return nil, ErrUnknownTenant
		}
		return nil, fmt.Errorf("inserting profile: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("committing user: %w", err)
	}
	return p, nil
}

// GetByID retrieves a single profile by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Principal, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	return scanPrincipal(r.pool.QueryRow(ctx, query, id))
}

// GetCredentialsByEmail retrieves the sign-in record for email.
func (r *PostgresRepository) GetCredentialsByEmail(ctx context.Context, email string) (*Credentials, error) {
	query := `
		SELECT id, email, password_hash
		FROM auth_users
		WHERE email = $1`

	var c Credentials
	err := r.pool.QueryRow(ctx, query, strings.ToLower(strings.TrimSpace(email))).Scan(&c.UserID, &c.Email, &c.PasswordHash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("querying credentials: %w", err)
	}
	return &c, nil
}

// List retrieves profiles ordered by creation time, optionally for one tenant.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Principal, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles`
	var args []any
	if filter.TenantID != nil {
		query += ` WHERE tenant_id = $1`
		args = append(args, *filter.TenantID)
	}
	query += ` ORDER BY created_at ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing profiles: %w", err)
	}
	defer rows.Close()

	principals := []Principal{}
	for rows.Next() {
		p, err := scanPrincipal(rows)
		if err != nil {
			return nil, err
		}
		principals = append(principals, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating profile rows: %w", err)
	}
	return principals, nil
}

// Update modifies the patchable profile fields.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Principal, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if patch.FullName != nil {
		setClauses = append(setClauses, fmt.Sprintf("full_name = $%d", argIdx))
		args = append(args, *patch.FullName)
		argIdx++
	}
	if patch.IsActive != nil {
		setClauses = append(setClauses, fmt.Sprintf("is_active = $%d", argIdx))
		args = append(args, *patch.IsActive)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE profiles
		SET %s
		WHERE id = $%d
		RETURNING `+profileColumns,
		strings.Join(setClauses, ", "), argIdx)

	return scanPrincipal(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes the credential record; the profile cascades.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM auth_users WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrUserNotFound
	}
	return nil
}

// CountSuperAdmins returns the number of super admin profiles.
func (r *PostgresRepository) CountSuperAdmins(ctx context.Context) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM profiles WHERE role = $1", RoleSuperAdmin).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting super admins: %w", err)
	}
	return count, nil
}

func scanPrincipal(row pgx.Row) (*Principal, error) {
	var p Principal
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Role, &p.IsActive,
		&p.FullName, &p.Email, &p.AvatarURL,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("scanning profile row: %w", err)
	}
	return &p, nil
}

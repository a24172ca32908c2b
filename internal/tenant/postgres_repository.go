package tenant

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

const columns = `id, name, document, plan, neurocore_id, is_active, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new tenant record.
func (r *PostgresRepository) Create(ctx context.Context, t *Tenant) error {
	query := `
		INSERT INTO tenants (name, document, plan, neurocore_id, is_active)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, t.Name, t.Document, t.Plan, t.NeurocoreID, t.IsActive).
		Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateTenantName
		}
		return fmt.Errorf("inserting tenant: %w", err)
	}

	return nil
}

// GetByID retrieves a single tenant by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return r.scanOne(ctx, `SELECT `+columns+` FROM tenants WHERE id = $1`, id)
}

// List retrieves all tenants ordered by name.
func (r *PostgresRepository) List(ctx context.Context) ([]Tenant, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+columns+` FROM tenants ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing tenants: %w", err)
	}
	defer rows.Close()

	tenants := []Tenant{}
	for rows.Next() {
		t, err := scan(rows)
		if err != nil {
			return nil, err
		}
		tenants = append(tenants, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating tenant rows: %w", err)
	}

	return tenants, nil
}

// Update modifies the patchable fields of a tenant.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Tenant, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Name != nil {
		add("name", *patch.Name)
	}
	if patch.Plan != nil {
		add("plan", *patch.Plan)
	}
	if patch.NeurocoreID != nil {
		add("neurocore_id", *patch.NeurocoreID)
	}
	if patch.IsActive != nil {
		add("is_active", *patch.IsActive)
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE tenants
		SET %s
		WHERE id = $%d
		RETURNING `+columns,
		strings.Join(setClauses, ", "), argIdx)

	t, err := r.scanOne(ctx, query, args...)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateTenantName
		}
		return nil, err
	}
	return t, nil
}

// Delete removes a tenant by its UUID. Returns ErrTenantHasUsers if
// profiles still reference it (FK RESTRICT).
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM tenants WHERE id = $1`, id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrTenantHasUsers
		}
		return fmt.Errorf("deleting tenant: %w", err)
	}

	if result.RowsAffected() == 0 {
		return ErrTenantNotFound
	}

	return nil
}

// Count returns the number of tenants.
func (r *PostgresRepository) Count(ctx context.Context) (int, error) {
	var count int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM tenants`).Scan(&count); err != nil {
		return 0, fmt.Errorf("counting tenants: %w", err)
	}
	return count, nil
}

func (r *PostgresRepository) scanOne(ctx context.Context, query string, args ...any) (*Tenant, error) {
	return scan(r.pool.QueryRow(ctx, query, args...))
}

func scan(row pgx.Row) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Document, &t.Plan, &t.NeurocoreID, &t.IsActive, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("scanning tenant row: %w", err)
	}
	return &t, nil
}

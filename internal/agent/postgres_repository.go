package agent

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

const columns = `id, tenant_id, name, type, persona, instructions, is_active, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new agent record.
func (r *PostgresRepository) Create(ctx context.Context, a *Agent) error {
	query := `
		INSERT INTO agents (tenant_id, name, type, persona, instructions, is_active)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, a.TenantID, a.Name, a.Type, a.Persona, a.Instructions, a.IsActive).
		Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownTenant
		}
		return fmt.Errorf("inserting agent: %w", err)
	}

	return nil
}

// GetByID retrieves a single agent by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Agent, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM agents WHERE id = $1`, id))
}

// List retrieves agents ordered by name, optionally for one tenant.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Agent, error) {
	query := `SELECT ` + columns + ` FROM agents`
	var args []any
	if filter.TenantID != nil {
		query += ` WHERE tenant_id = $1`
		args = append(args, *filter.TenantID)
	}
	query += ` ORDER BY name ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing agents: %w", err)
	}
	defer rows.Close()

	agents := []Agent{}
	for rows.Next() {
		a, err := scan(rows)
		if err != nil {
			return nil, err
		}
		agents = append(agents, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating agent rows: %w", err)
	}

	return agents, nil
}

// Update modifies the patchable fields of an agent.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Agent, error) {
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
	if patch.Persona != nil {
		add("persona", *patch.Persona)
	}
	if patch.Instructions != nil {
		add("instructions", *patch.Instructions)
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
		UPDATE agents
		SET %s
		WHERE id = $%d
		RETURNING `+columns,
		strings.Join(setClauses, ", "), argIdx)

	return scan(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes an agent by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM agents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting agent: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrAgentNotFound
	}
	return nil
}

func scan(row pgx.Row) (*Agent, error) {
	var a Agent
	err := row.Scan(&a.ID, &a.TenantID, &a.Name, &a.Type, &a.Persona, &a.Instructions, &a.IsActive, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAgentNotFound
		}
		return nil, fmt.Errorf("scanning agent row: %w", err)
	}
	return &a, nil
}

package quickreply

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

const columns = `id, tenant_id, title, message, usage_count, is_active, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new quick reply record.
func (r *PostgresRepository) Create(ctx context.Context, q *QuickReply) error {
	query := `
		INSERT INTO quick_replies (tenant_id, title, message, is_active)
		VALUES ($1, $2, $3, $4)
		RETURNING id, usage_count, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, q.TenantID, q.Title, q.Message, q.IsActive).
		Scan(&q.ID, &q.UsageCount, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownTenant
		}
		return fmt.Errorf("inserting quick reply: %w", err)
	}
	return nil
}

// GetByID retrieves a single quick reply by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*QuickReply, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM quick_replies WHERE id = $1`, id))
}

// List retrieves quick replies, most used first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]QuickReply, error) {
	query := `SELECT ` + columns + ` FROM quick_replies`
	var args []any
	if filter.TenantID != nil {
		query += ` WHERE tenant_id = $1`
		args = append(args, *filter.TenantID)
	}
	query += ` ORDER BY usage_count DESC, title ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing quick replies: %w", err)
	}
	defer rows.Close()

	replies := []QuickReply{}
	for rows.Next() {
		q, err := scan(rows)
		if err != nil {
			return nil, err
		}
		replies = append(replies, *q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating quick reply rows: %w", err)
	}
	return replies, nil
}

// Update modifies the patchable fields of a quick reply.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*QuickReply, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, argIdx))
		args = append(args, value)
		argIdx++
	}

	if patch.Title != nil {
		add("title", *patch.Title)
	}
	if patch.Message != nil {
		add("message", *patch.Message)
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
		UPDATE quick_replies
		SET %s
		WHERE id = $%d
		RETURNING `+columns,
		strings.Join(setClauses, ", "), argIdx)

	return scan(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a quick reply by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM quick_replies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting quick reply: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrQuickReplyNotFound
	}
	return nil
}

// IncrementUsage bumps usage_count by one.
func (r *PostgresRepository) IncrementUsage(ctx context.Context, id uuid.UUID) (*QuickReply, error) {
	query := `
		UPDATE quick_replies
		SET usage_count = usage_count + 1
		WHERE id = $1
		RETURNING ` + columns

	return scan(r.pool.QueryRow(ctx, query, id))
}

func scan(row pgx.Row) (*QuickReply, error) {
	var q QuickReply
	err := row.Scan(&q.ID, &q.TenantID, &q.Title, &q.Message, &q.UsageCount, &q.IsActive, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrQuickReplyNotFound
		}
		return nil, fmt.Errorf("scanning quick reply row: %w", err)
	}
	return &q, nil
}

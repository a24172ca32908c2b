package feedback

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

const columns = `id, tenant_id, conversation_id, message_id, rating, comment, status, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new feedback record with status pending.
func (r *PostgresRepository) Create(ctx context.Context, f *Feedback) error {
	if f.Status == "" {
		f.Status = StatusPending
	}

	query := `
		INSERT INTO feedbacks (tenant_id, conversation_id, message_id, rating, comment, status)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, f.TenantID, f.ConversationID, f.MessageID, f.Rating, f.Comment, f.Status).
		Scan(&f.ID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownReference
		}
		return fmt.Errorf("inserting feedback: %w", err)
	}
	return nil
}

// GetByID retrieves a single feedback by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Feedback, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM feedbacks WHERE id = $1`, id))
}

// List retrieves feedbacks, newest first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Feedback, error) {
	var conditions []string
	var args []any
	argIdx := 1

	if filter.TenantID != nil {
		conditions = append(conditions, fmt.Sprintf("tenant_id = $%d", argIdx))
		args = append(args, *filter.TenantID)
		argIdx++
	}
	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *filter.Status)
	}

	query := `SELECT ` + columns + ` FROM feedbacks`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing feedbacks: %w", err)
	}
	defer rows.Close()

	feedbacks := []Feedback{}
	for rows.Next() {
		f, err := scan(rows)
		if err != nil {
			return nil, err
		}
		feedbacks = append(feedbacks, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating feedback rows: %w", err)
	}
	return feedbacks, nil
}

// Update modifies status and comment.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Feedback, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if patch.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *patch.Status)
		argIdx++
	}
	if patch.Comment != nil {
		setClauses = append(setClauses, fmt.Sprintf("comment = $%d", argIdx))
		args = append(args, *patch.Comment)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE feedbacks
		SET %s
		WHERE id = $%d
		RETURNING `+columns,
		strings.Join(setClauses, ", "), argIdx)

	return scan(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a feedback by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM feedbacks WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting feedback: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrFeedbackNotFound
	}
	return nil
}

func scan(row pgx.Row) (*Feedback, error) {
	var f Feedback
	err := row.Scan(&f.ID, &f.TenantID, &f.ConversationID, &f.MessageID, &f.Rating, &f.Comment, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFeedbackNotFound
		}
		return nil, fmt.Errorf("scanning feedback row: %w", err)
	}
	return &f, nil
}

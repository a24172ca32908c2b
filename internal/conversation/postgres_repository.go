package conversation

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

const columns = `id, tenant_id, agent_id, contact_name, contact_phone, status, ai_paused, last_message_at, created_at, updated_at`

// PostgresRepository implements Repository using pgxpool.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new Repository backed by the given connection pool.
func NewRepository(pool *pgxpool.Pool) Repository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new conversation record.
func (r *PostgresRepository) Create(ctx context.Context, c *Conversation) error {
	if c.Status == "" {
		c.Status = StatusOpen
	}

	query := `
		INSERT INTO conversations (tenant_id, agent_id, contact_name, contact_phone, status, ai_paused)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at, updated_at`

	err := r.pool.QueryRow(ctx, query, c.TenantID, c.AgentID, c.ContactName, c.ContactPhone, c.Status, c.AIPaused).
		Scan(&c.ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return ErrUnknownReference
		}
		return fmt.Errorf("inserting conversation: %w", err)
	}
	return nil
}

// GetByID retrieves a single conversation by its UUID.
func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Conversation, error) {
	return scan(r.pool.QueryRow(ctx, `SELECT `+columns+` FROM conversations WHERE id = $1`, id))
}

// List retrieves conversations, most recently active first.
func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]Conversation, error) {
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

	query := `SELECT ` + columns + ` FROM conversations`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += ` ORDER BY COALESCE(last_message_at, created_at) DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	conversations := []Conversation{}
	for rows.Next() {
		c, err := scan(rows)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating conversation rows: %w", err)
	}
	return conversations, nil
}

// Update modifies status and the AI pause flag.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, patch Patch) (*Conversation, error) {
	var setClauses []string
	var args []any
	argIdx := 1

	if patch.Status != nil {
		setClauses = append(setClauses, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *patch.Status)
		argIdx++
	}
	if patch.AIPaused != nil {
		setClauses = append(setClauses, fmt.Sprintf("ai_paused = $%d", argIdx))
		args = append(args, *patch.AIPaused)
		argIdx++
	}

	if len(setClauses) == 0 {
		return r.GetByID(ctx, id)
	}

	setClauses = append(setClauses, "updated_at = NOW()")
	args = append(args, id)

	query := fmt.Sprintf(`
		UPDATE conversations
		SET %s
		WHERE id = $%d
		RETURNING `+columns,
		strings.Join(setClauses, ", "), argIdx)

	return scan(r.pool.QueryRow(ctx, query, args...))
}

// Delete removes a conversation by its UUID.
func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM conversations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting conversation: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func scan(row pgx.Row) (*Conversation, error) {
	var c Conversation
	err := row.Scan(
		&c.ID, &c.TenantID, &c.AgentID, &c.ContactName, &c.ContactPhone,
		&c.Status, &c.AIPaused, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrConversationNotFound
		}
		return nil, fmt.Errorf("scanning conversation row: %w", err)
	}
	return &c, nil
}

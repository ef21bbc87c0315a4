package conversation

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// PostgresRepository implements Repository using PostgreSQL.
type PostgresRepository struct {
	db *sql.DB
}

// NewPostgresRepository creates a Postgres-backed conversation repository.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// GetByID retrieves a conversation by id.
func (r *PostgresRepository) GetByID(ctx context.Context, id string) (*Conversation, error) {
	const query = `
		SELECT id, user1_id, user2_id, created_at, updated_at
		FROM conversations
		WHERE id = $1
	`
	var c Conversation
	err := r.db.QueryRowContext(ctx, query, id).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}
	return &c, nil
}

// FindOrCreate returns the conversation between the two users in either
// order, creating one if none exists.
func (r *PostgresRepository) FindOrCreate(ctx context.Context, user1ID, user2ID string) (*Conversation, error) {
	const findQuery = `
		SELECT id, user1_id, user2_id, created_at, updated_at
		FROM conversations
		WHERE (user1_id = $1 AND user2_id = $2) OR (user1_id = $2 AND user2_id = $1)
		LIMIT 1
	`
	var c Conversation
	err := r.db.QueryRowContext(ctx, findQuery, user1ID, user2ID).Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt, &c.UpdatedAt)
	if err == nil {
		return &c, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find conversation: %w", err)
	}

	const insertQuery = `
		INSERT INTO conversations (id, user1_id, user2_id)
		VALUES ($1, $2, $3)
		RETURNING id, user1_id, user2_id, created_at, updated_at
	`
	err = r.db.QueryRowContext(ctx, insertQuery, uuid.New().String(), user1ID, user2ID).
		Scan(&c.ID, &c.User1ID, &c.User2ID, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return &c, nil
}

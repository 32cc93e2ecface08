package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/vbonduro/stockcount/internal/domain"
)

type OperatorStore struct {
	db DBTX
}

func NewOperatorStore(db DBTX) *OperatorStore {
	return &OperatorStore{db: db}
}

// Upsert creates the operator or replaces its display name and password hash.
func (s *OperatorStore) Upsert(ctx context.Context, username, displayName, passwordHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO operators (username, display_name, password_hash) VALUES (?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET display_name = excluded.display_name, password_hash = excluded.password_hash
	`, username, displayName, passwordHash)
	if err != nil {
		return fmt.Errorf("failed to upsert operator: %w", err)
	}
	return nil
}

func (s *OperatorStore) Get(ctx context.Context, username string) (*domain.Operator, error) {
	op := &domain.Operator{}
	var createdAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT username, display_name, password_hash, created_at FROM operators WHERE username = ?
	`, username).Scan(&op.Username, &op.DisplayName, &op.PasswordHash, &createdAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get operator: %w", err)
	}
	if t, err := parseTime(createdAt); err == nil {
		op.CreatedAt = t
	}
	return op, nil
}

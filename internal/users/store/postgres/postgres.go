// Package postgres persists users in the users table.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"sphere/internal/users/models"
	id "sphere/pkg/domain"
	"sphere/pkg/platform/sentinel"
	txcontext "sphere/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreate inserts candidate unless its wallet address is taken, and
// returns whichever row holds the address. The no-op update makes RETURNING
// yield the existing row on conflict.
func (s *Store) GetOrCreate(ctx context.Context, candidate *models.User) (*models.User, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO users (id, wallet_address, created_at)
		VALUES ($1, $2, $3)
		ON CONFLICT ON CONSTRAINT users_wallet_address_key DO UPDATE SET
			wallet_address = EXCLUDED.wallet_address
		RETURNING id, wallet_address, created_at`,
		uuid.UUID(candidate.ID), candidate.WalletAddress, candidate.CreatedAt,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get or create user: %w", err)
	}
	return u, nil
}

func (s *Store) FindByID(ctx context.Context, userID id.UserID) (*models.User, error) {
	row := txcontext.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT id, wallet_address, created_at FROM users WHERE id = $1`,
		uuid.UUID(userID),
	)
	u, err := scanUser(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("find user %s: %w", userID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (*models.User, error) {
	var (
		rawID     uuid.UUID
		wallet    string
		createdAt time.Time
	)
	if err := row.Scan(&rawID, &wallet, &createdAt); err != nil {
		return nil, err
	}
	return &models.User{ID: id.UserID(rawID), WalletAddress: wallet, CreatedAt: createdAt}, nil
}

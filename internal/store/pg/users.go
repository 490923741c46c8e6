package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nextlevelbuilder/carelink/internal/store"
)

// PGUserStore implements store.UserStore backed by Postgres.
type PGUserStore struct {
	db *sql.DB
}

func NewPGUserStore(db *sql.DB) *PGUserStore {
	return &PGUserStore{db: db}
}

func (s *PGUserStore) Get(ctx context.Context, id string) (store.UserData, error) {
	var u store.UserData
	err := s.db.QueryRowContext(ctx,
		"SELECT id, username, full_name, email, profile_image_url FROM users WHERE id = $1", id,
	).Scan(&u.ID, &u.Username, &u.FullName, &u.Email, &u.ProfileImageURL)
	if errors.Is(err, sql.ErrNoRows) {
		return store.UserData{}, store.ErrNotFound
	}
	if err != nil {
		return store.UserData{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *PGUserStore) Put(ctx context.Context, u store.UserData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, username, full_name, email, profile_image_url)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO UPDATE SET
		   username = EXCLUDED.username,
		   full_name = EXCLUDED.full_name,
		   email = EXCLUDED.email,
		   profile_image_url = EXCLUDED.profile_image_url`,
		u.ID, u.Username, u.FullName, u.Email, u.ProfileImageURL)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

// NewPGStores creates the store bundle backed by Postgres.
func NewPGStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Connections: NewPGConnectionStore(db),
		Users:       NewPGUserStore(db),
	}
}

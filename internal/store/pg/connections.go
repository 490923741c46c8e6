package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nextlevelbuilder/carelink/internal/store"
)

// PGConnectionStore implements store.ConnectionStore backed by Postgres.
type PGConnectionStore struct {
	db *sql.DB
}

func NewPGConnectionStore(db *sql.DB) *PGConnectionStore {
	return &PGConnectionStore{db: db}
}

const connectionCols = "id, caregiver_id, elderly_id, status, created_at, confirmed_at"

func scanConnection(row interface{ Scan(...any) error }) (store.ConnectionData, error) {
	var c store.ConnectionData
	var confirmedAt sql.NullTime
	if err := row.Scan(&c.ID, &c.CaregiverID, &c.ElderlyID, &c.Status, &c.CreatedAt, &confirmedAt); err != nil {
		return store.ConnectionData{}, err
	}
	if confirmedAt.Valid {
		t := confirmedAt.Time
		c.ConfirmedAt = &t
	}
	return c, nil
}

func (s *PGConnectionStore) Insert(ctx context.Context, c store.ConnectionData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO connections (id, caregiver_id, elderly_id, status, created_at, confirmed_at)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		c.ID, c.CaregiverID, c.ElderlyID, c.Status, c.CreatedAt, c.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("insert connection: %w", err)
	}
	return nil
}

func (s *PGConnectionStore) Get(ctx context.Context, id uuid.UUID) (store.ConnectionData, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+connectionCols+" FROM connections WHERE id = $1", id)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ConnectionData{}, store.ErrNotFound
	}
	return c, err
}

func (s *PGConnectionStore) FindActiveByPair(ctx context.Context, caregiverID, elderlyID string) (store.ConnectionData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+connectionCols+` FROM connections
		 WHERE caregiver_id = $1 AND elderly_id = $2 AND status <> $3
		 ORDER BY created_at DESC LIMIT 1`,
		caregiverID, elderlyID, store.StatusRejected)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ConnectionData{}, store.ErrNotFound
	}
	return c, err
}

func (s *PGConnectionStore) Transition(ctx context.Context, id uuid.UUID, from, to string, confirmedAt time.Time) (store.ConnectionData, error) {
	row := s.db.QueryRowContext(ctx,
		`UPDATE connections SET status = $1, confirmed_at = $2
		 WHERE id = $3 AND status = $4
		 RETURNING `+connectionCols,
		to, confirmedAt, id, from)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish missing from already-terminal so the caller can report
		// a stale-state error instead of not-found.
		if _, getErr := s.Get(ctx, id); errors.Is(getErr, store.ErrNotFound) {
			return store.ConnectionData{}, store.ErrNotFound
		}
		return store.ConnectionData{}, store.ErrWrongStatus
	}
	return c, err
}

func (s *PGConnectionStore) ListByElderly(ctx context.Context, elderlyID, status string) ([]store.ConnectionData, error) {
	return s.list(ctx,
		"SELECT "+connectionCols+" FROM connections WHERE elderly_id = $1 AND status = $2 ORDER BY created_at",
		elderlyID, status)
}

func (s *PGConnectionStore) ListByCaregiver(ctx context.Context, caregiverID, status string) ([]store.ConnectionData, error) {
	return s.list(ctx,
		"SELECT "+connectionCols+" FROM connections WHERE caregiver_id = $1 AND status = $2 ORDER BY created_at",
		caregiverID, status)
}

func (s *PGConnectionStore) list(ctx context.Context, query string, args ...any) ([]store.ConnectionData, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list connections: %w", err)
	}
	defer rows.Close()

	result := []store.ConnectionData{}
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	return result, rows.Err()
}

func (s *PGConnectionStore) DeleteApprovedPair(ctx context.Context, caregiverID, elderlyID string) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM connections WHERE caregiver_id = $1 AND elderly_id = $2 AND status = $3",
		caregiverID, elderlyID, store.StatusApproved)
	if err != nil {
		return false, fmt.Errorf("delete connection: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

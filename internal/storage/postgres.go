package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ppiankov/claimgate/internal/model"
)

const claimsSchema = `
CREATE TABLE IF NOT EXISTS claims (
	claim_id   TEXT PRIMARY KEY,
	decision   TEXT NOT NULL,
	reason     TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DecisionStore persists completed claim decisions in PostgreSQL
type DecisionStore struct {
	pool *pgxpool.Pool
}

// NewDecisionStore connects to the database and creates the claims
// table if it does not exist
func NewDecisionStore(ctx context.Context, dsn string) (*DecisionStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if _, err := pool.Exec(ctx, claimsSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure claims table: %w", err)
	}

	return &DecisionStore{pool: pool}, nil
}

// Save records a decision. A claim id is decided at most once: a
// resubmission of the same id leaves the original row untouched.
func (s *DecisionStore) Save(ctx context.Context, claimID string, response model.DecisionResponse) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO claims (claim_id, decision, reason) VALUES ($1, $2, $3)
		 ON CONFLICT (claim_id) DO NOTHING`,
		claimID, string(response.Decision), response.Explanation)
	if err != nil {
		return fmt.Errorf("save decision for %s: %w", claimID, err)
	}
	return nil
}

// Get returns the stored decision for a claim, or ErrNotFound
func (s *DecisionStore) Get(ctx context.Context, claimID string) (*model.StoredDecision, error) {
	var stored model.StoredDecision
	err := s.pool.QueryRow(ctx,
		`SELECT claim_id, decision, COALESCE(reason, ''), created_at FROM claims WHERE claim_id = $1`,
		claimID).Scan(&stored.ClaimID, &stored.Decision, &stored.Reason, &stored.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get decision for %s: %w", claimID, err)
	}
	return &stored, nil
}

// List returns all stored claim ids, newest first
func (s *DecisionStore) List(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT claim_id FROM claims ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list claims: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan claim id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate claims: %w", err)
	}
	return ids, nil
}

// Close releases the connection pool
func (s *DecisionStore) Close() {
	s.pool.Close()
}

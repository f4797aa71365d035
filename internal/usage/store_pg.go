package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed entitlements store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string) (Entitlements, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) EnsurePeriod(ctx context.Context, userID string) (Entitlements, error) {
	return s.ensure(ctx, userID)
}

func (s *pgStore) Consume(ctx context.Context, userID string, n int) (Entitlements, error) {
	if n <= 0 {
		return s.ensure(ctx, userID)
	}
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entitlements{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	e, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Entitlements{}, err
	}

	if e.AICreditsUsed+n > e.AICredits {
		err = ErrLimitReached
		return Entitlements{}, err
	}
	e.AICreditsUsed += n
	if _, err = tx.ExecContext(ctx, `
UPDATE entitlements SET ai_credits_used = $1 WHERE user_id = $2`, e.AICreditsUsed, userID); err != nil {
		return Entitlements{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entitlements{}, err
	}
	return e, nil
}

func (s *pgStore) SetPlan(ctx context.Context, userID, plan string) (Entitlements, error) {
	p, ok := Plans[plan]
	if !ok {
		return Entitlements{}, fmt.Errorf("unknown plan: %s", plan)
	}
	resetsAt := time.Now().UTC().Add(creditPeriod)
	if _, err := s.DB.ExecContext(ctx, `
INSERT INTO entitlements (user_id, plan, max_documents, ai_credits, ai_credits_used, resets_at)
VALUES ($1, $2, $3, $4, 0, $5)
ON CONFLICT (user_id) DO UPDATE SET
  plan = EXCLUDED.plan,
  max_documents = EXCLUDED.max_documents,
  ai_credits = EXCLUDED.ai_credits,
  ai_credits_used = 0,
  resets_at = EXCLUDED.resets_at`,
		userID, p.Name, p.MaxDocuments, p.AICredits, resetsAt); err != nil {
		return Entitlements{}, err
	}
	return Entitlements{
		Plan:         p.Name,
		MaxDocuments: p.MaxDocuments,
		AICredits:    p.AICredits,
		ResetsAt:     resetsAt,
	}, nil
}

func (s *pgStore) Reset(ctx context.Context, userID string) (Entitlements, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entitlements{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	e, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Entitlements{}, err
	}
	e.AICreditsUsed = 0
	e.ResetsAt = time.Now().UTC().Add(creditPeriod)
	if _, err = tx.ExecContext(ctx, `
UPDATE entitlements SET ai_credits_used = 0, resets_at = $1 WHERE user_id = $2`, e.ResetsAt, userID); err != nil {
		return Entitlements{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entitlements{}, err
	}
	return e, nil
}

func (s *pgStore) ensure(ctx context.Context, userID string) (Entitlements, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Entitlements{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()
	e, err := s.lockAndEnsure(ctx, tx, userID)
	if err != nil {
		return Entitlements{}, err
	}
	if err = tx.Commit(); err != nil {
		return Entitlements{}, err
	}
	return e, nil
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string) (Entitlements, error) {
	var e Entitlements
	row := tx.QueryRowContext(ctx, `
SELECT plan, max_documents, ai_credits, ai_credits_used, resets_at
FROM entitlements WHERE user_id = $1 FOR UPDATE`, userID)
	err := row.Scan(&e.Plan, &e.MaxDocuments, &e.AICredits, &e.AICreditsUsed, &e.ResetsAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			e = defaultEntitlements()
			e.ResetsAt = time.Now().UTC().Add(creditPeriod)
			if _, err = tx.ExecContext(ctx, `
INSERT INTO entitlements (user_id, plan, max_documents, ai_credits, ai_credits_used, resets_at)
VALUES ($1, $2, $3, $4, $5, $6)`,
				userID, e.Plan, e.MaxDocuments, e.AICredits, e.AICreditsUsed, e.ResetsAt); err != nil {
				return Entitlements{}, err
			}
			return e, nil
		}
		return Entitlements{}, err
	}

	now := time.Now().UTC()
	if now.After(e.ResetsAt) || now.Equal(e.ResetsAt) {
		e.AICreditsUsed = 0
		e.ResetsAt = now.Add(creditPeriod)
		if _, err = tx.ExecContext(ctx, `
UPDATE entitlements SET ai_credits_used = $1, resets_at = $2 WHERE user_id = $3`, e.AICreditsUsed, e.ResetsAt, userID); err != nil {
			return Entitlements{}, err
		}
	}
	return e, nil
}

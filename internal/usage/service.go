package usage

import "context"

type store interface {
	Get(ctx context.Context, userID string) (Entitlements, error)
	EnsurePeriod(ctx context.Context, userID string) (Entitlements, error)
	Consume(ctx context.Context, userID string, n int) (Entitlements, error)
	SetPlan(ctx context.Context, userID, plan string) (Entitlements, error)
	Reset(ctx context.Context, userID string) (Entitlements, error)
}

// DocumentCounter reports how many live documents a user owns.
type DocumentCounter interface {
	CountByUser(ctx context.Context, userID string) (int, error)
}

// Service manages plan entitlements via an underlying store.
type Service struct {
	store store
	docs  DocumentCounter
}

// NewService constructs a Service with an in-memory store.
func NewService(docs DocumentCounter) *Service {
	return &Service{store: newMemoryStore(), docs: docs}
}

// NewPostgresService constructs a Service backed by Postgres.
func NewPostgresService(pgStore store, docs DocumentCounter) *Service {
	return &Service{store: pgStore, docs: docs}
}

// Get returns the current entitlements for a user, initializing defaults if
// absent and rolling the credit window if it expired.
func (s *Service) Get(ctx context.Context, userID string) (Entitlements, error) {
	return s.store.EnsurePeriod(ctx, userID)
}

// CanCreateDocument reports whether the user is under their document quota.
func (s *Service) CanCreateDocument(ctx context.Context, userID string) (bool, Entitlements, error) {
	e, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return false, Entitlements{}, err
	}
	if e.MaxDocuments < 0 {
		return true, e, nil
	}
	count, err := s.docs.CountByUser(ctx, userID)
	if err != nil {
		return false, Entitlements{}, err
	}
	return count < e.MaxDocuments, e, nil
}

// CanUse reports whether the user's plan includes a feature.
func (s *Service) CanUse(ctx context.Context, userID string, f Feature) (bool, error) {
	e, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return false, err
	}
	return e.HasFeature(f), nil
}

// ConsumeAI spends n AI credits if the plan includes AI assist and credits
// remain. Returns ErrUpgradeRequired or ErrLimitReached otherwise.
func (s *Service) ConsumeAI(ctx context.Context, userID string, n int) (Entitlements, error) {
	e, err := s.store.EnsurePeriod(ctx, userID)
	if err != nil {
		return Entitlements{}, err
	}
	if !e.HasFeature(FeatureAIAssist) {
		return Entitlements{}, ErrUpgradeRequired
	}
	return s.store.Consume(ctx, userID, n)
}

// SetPlan switches the user to a plan and refreshes their credit allowance.
func (s *Service) SetPlan(ctx context.Context, userID, plan string) (Entitlements, error) {
	return s.store.SetPlan(ctx, userID, plan)
}

// Reset zeroes consumed credits and restarts the window.
func (s *Service) Reset(ctx context.Context, userID string) (Entitlements, error) {
	return s.store.Reset(ctx, userID)
}

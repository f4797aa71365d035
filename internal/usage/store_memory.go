package usage

import (
	"context"
	"errors"
	"sync"
	"time"
)

type memoryStore struct {
	mu   sync.RWMutex
	data map[string]Entitlements
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]Entitlements)}
}

func (s *memoryStore) Get(ctx context.Context, userID string) (Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return Entitlements{}, err
	}
	s.mu.RLock()
	e, ok := s.data[userID]
	s.mu.RUnlock()
	if ok {
		return e, nil
	}
	return s.ensure(ctx, userID)
}

func (s *memoryStore) EnsurePeriod(ctx context.Context, userID string) (Entitlements, error) {
	return s.ensure(ctx, userID)
}

func (s *memoryStore) ensure(ctx context.Context, userID string) (Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return Entitlements{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[userID]
	if !ok {
		e = defaultEntitlements()
		e.ResetsAt = now.Add(creditPeriod)
	}
	if now.After(e.ResetsAt) || now.Equal(e.ResetsAt) {
		e.AICreditsUsed = 0
		e.ResetsAt = now.Add(creditPeriod)
	}
	s.data[userID] = e
	return e, nil
}

func (s *memoryStore) Consume(ctx context.Context, userID string, n int) (Entitlements, error) {
	if n <= 0 {
		return s.ensure(ctx, userID)
	}
	if err := ctx.Err(); err != nil {
		return Entitlements{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[userID]
	if !ok {
		e = defaultEntitlements()
		e.ResetsAt = now.Add(creditPeriod)
	}
	if now.After(e.ResetsAt) || now.Equal(e.ResetsAt) {
		e.AICreditsUsed = 0
		e.ResetsAt = now.Add(creditPeriod)
	}
	if e.AICreditsUsed+n > e.AICredits {
		return Entitlements{}, ErrLimitReached
	}
	e.AICreditsUsed += n
	s.data[userID] = e
	return e, nil
}

func (s *memoryStore) SetPlan(ctx context.Context, userID, plan string) (Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return Entitlements{}, err
	}
	p, ok := Plans[plan]
	if !ok {
		return Entitlements{}, errors.New("unknown plan: " + plan)
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e := Entitlements{
		Plan:         p.Name,
		MaxDocuments: p.MaxDocuments,
		AICredits:    p.AICredits,
		ResetsAt:     now.Add(creditPeriod),
	}
	s.data[userID] = e
	return e, nil
}

func (s *memoryStore) Reset(ctx context.Context, userID string) (Entitlements, error) {
	if err := ctx.Err(); err != nil {
		return Entitlements{}, err
	}
	now := time.Now().UTC()
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.data[userID]
	if !ok {
		e = defaultEntitlements()
	}
	e.AICreditsUsed = 0
	e.ResetsAt = now.Add(creditPeriod)
	s.data[userID] = e
	return e, nil
}

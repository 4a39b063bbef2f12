// Package testutils holds shared test doubles and container helpers.
package testutils

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"link-shortener/internal/model"
	"link-shortener/internal/repository"
)

// MemoryStore is an in-memory link store that mirrors the Postgres
// repository's contract: duplicate ids yield repository.ErrConflict and
// missing rows yield repository.ErrNotFound.
type MemoryStore struct {
	mu     sync.Mutex
	links  map[string]model.Link
	events []model.StatisticsEvent

	SaveCalls           atomic.Int32
	GetCalls            atomic.Int32
	UpdateCalls         atomic.Int32
	SaveStatisticsCalls atomic.Int32
	GetStatisticsCalls  atomic.Int32
	DeleteExpiredCalls  atomic.Int32

	// Injected failures, returned instead of touching state.
	SaveErr           error
	GetErr            error
	UpdateErr         error
	SaveStatisticsErr error
	GetStatisticsErr  error
	DeleteExpiredErr  error

	// SaveStatisticsDelay holds each statistics write until the delay passes
	// or its context ends.
	SaveStatisticsDelay time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		links: make(map[string]model.Link),
	}
}

// Put seeds a link directly, bypassing call counters.
func (m *MemoryStore) Put(link model.Link) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.links[link.ID] = link
}

// Link returns the stored link for id, if any.
func (m *MemoryStore) Link(id string) (model.Link, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	return link, ok
}

func (m *MemoryStore) Events() []model.StatisticsEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.StatisticsEvent(nil), m.events...)
}

func (m *MemoryStore) Save(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error) {
	m.SaveCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.SaveErr != nil {
		return nil, m.SaveErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; ok {
		return nil, fmt.Errorf("save link %q: %w", id, repository.ErrConflict)
	}
	link := model.Link{ID: id, TargetURL: targetURL, Expiration: expiration.UTC()}
	m.links[id] = link
	return &link, nil
}

func (m *MemoryStore) GetByID(ctx context.Context, id string) (*model.Link, error) {
	m.GetCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetErr != nil {
		return nil, m.GetErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	link, ok := m.links[id]
	if !ok {
		return nil, fmt.Errorf("get link %q: %w", id, repository.ErrNotFound)
	}
	return &link, nil
}

func (m *MemoryStore) Update(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error) {
	m.UpdateCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.UpdateErr != nil {
		return nil, m.UpdateErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.links[id]; !ok {
		return nil, fmt.Errorf("update link %q: %w", id, repository.ErrNotFound)
	}
	link := model.Link{ID: id, TargetURL: targetURL, Expiration: expiration.UTC()}
	m.links[id] = link
	return &link, nil
}

func (m *MemoryStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	m.DeleteExpiredCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if m.DeleteExpiredErr != nil {
		return 0, m.DeleteExpiredErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	var deleted int64
	for id, link := range m.links {
		if !link.Expiration.After(now) {
			delete(m.links, id)
			deleted++
		}
	}
	return deleted, nil
}

func (m *MemoryStore) SaveStatistics(ctx context.Context, event model.StatisticsEvent) error {
	m.SaveStatisticsCalls.Add(1)
	if m.SaveStatisticsDelay > 0 {
		select {
		case <-time.After(m.SaveStatisticsDelay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if m.SaveStatisticsErr != nil {
		return m.SaveStatisticsErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, event)
	return nil
}

func (m *MemoryStore) GetStatistics(ctx context.Context, linkID string) ([]model.LinkStatistics, error) {
	m.GetStatisticsCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.GetStatisticsErr != nil {
		return nil, m.GetStatisticsErr
	}

	type group struct{ referer, userAgent string }
	m.mu.Lock()
	counts := make(map[group]*model.LinkStatistics)
	for _, e := range m.events {
		if e.LinkID != linkID {
			continue
		}
		g := group{referer: deref(e.Referer), userAgent: deref(e.UserAgent)}
		if e.Referer == nil {
			g.referer = "\x00"
		}
		if e.UserAgent == nil {
			g.userAgent = "\x00"
		}
		s, ok := counts[g]
		if !ok {
			s = &model.LinkStatistics{Referer: e.Referer, UserAgent: e.UserAgent}
			counts[g] = s
		}
		s.Hits++
	}
	m.mu.Unlock()

	stats := make([]model.LinkStatistics, 0, len(counts))
	for _, s := range counts {
		stats = append(stats, *s)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Hits > stats[j].Hits })
	return stats, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"link-shortener/internal/model"
	"link-shortener/internal/repository"
	"link-shortener/internal/util"
)

const (
	// MaxCreateAttempts bounds identifier generation per Create call.
	MaxCreateAttempts = 5

	DefaultTimeout = 300 * time.Millisecond
)

// Store is the persistence the service needs. Save reports a taken
// identifier with repository.ErrConflict; GetByID and Update report a missing
// row with repository.ErrNotFound.
type Store interface {
	Save(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error)
	GetByID(ctx context.Context, id string) (*model.Link, error)
	Update(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error)
	SaveStatistics(ctx context.Context, event model.StatisticsEvent) error
	GetStatistics(ctx context.Context, linkID string) ([]model.LinkStatistics, error)
}

type Service struct {
	Store  Store
	Logger *slog.Logger

	// Timeout bounds each store call on the request path.
	Timeout time.Duration
	// StatisticsTimeout bounds the detached statistics write of a redirect.
	StatisticsTimeout time.Duration

	NewID func() string
	Now   func() time.Time

	pending sync.WaitGroup
}

func NewService(store Store, logger *slog.Logger) *Service {
	return &Service{
		Store:             store,
		Logger:            logger,
		Timeout:           DefaultTimeout,
		StatisticsTimeout: DefaultTimeout,
		NewID:             util.GenerateID,
		Now:               time.Now,
	}
}

type attemptOutcome int

const (
	outcomeInserted attemptOutcome = iota
	outcomeConflict
	outcomeFailed
)

// Create stores a new link under a freshly generated identifier, retrying on
// identifier collisions up to MaxCreateAttempts times.
func (s *Service) Create(ctx context.Context, targetURL string, expiration time.Time) (*model.Link, error) {
	target, err := util.ParseURL(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	expiration = expiration.UTC()

	for attempt := 1; attempt <= MaxCreateAttempts; attempt++ {
		id := s.NewID()
		link, outcome, err := s.insert(ctx, id, target, expiration)
		switch outcome {
		case outcomeInserted:
			return link, nil
		case outcomeConflict:
			s.Logger.DebugContext(ctx, "identifier collision", "id", id, "attempt", attempt)
		case outcomeFailed:
			return nil, err
		}
	}

	s.Logger.ErrorContext(ctx, "could not persist new link, exhausted all retries of generating a unique id",
		"attempts", MaxCreateAttempts)
	return nil, ErrResourceExhausted
}

func (s *Service) insert(ctx context.Context, id, target string, expiration time.Time) (*model.Link, attemptOutcome, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	link, err := s.Store.Save(ctx, id, target, expiration)
	switch {
	case err == nil:
		return link, outcomeInserted, nil
	case errors.Is(err, repository.ErrConflict):
		return nil, outcomeConflict, nil
	default:
		return nil, outcomeFailed, storeError(ctx, "save link", err)
	}
}

// Update replaces the target and expiration of an existing link.
func (s *Service) Update(ctx context.Context, id, targetURL string, expiration time.Time) (*model.Link, error) {
	target, err := util.ParseURL(targetURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	link, err := s.Store.Update(ctx, id, target, expiration.UTC())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("update link %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeError(ctx, "update link", err)
	}
	return link, nil
}

// Get returns a live link. Links past their expiration count as missing even
// before the sweeper removes them.
func (s *Service) Get(ctx context.Context, id string) (*model.Link, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	link, err := s.Store.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("get link %q: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, storeError(ctx, "get link", err)
	}
	if !link.Expiration.After(s.Now()) {
		return nil, fmt.Errorf("link %q expired: %w", id, ErrNotFound)
	}
	return link, nil
}

func (s *Service) GetStatistics(ctx context.Context, id string) ([]model.LinkStatistics, error) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	stats, err := s.Store.GetStatistics(ctx, id)
	if err != nil {
		return nil, storeError(ctx, "get statistics", err)
	}
	if stats == nil {
		stats = []model.LinkStatistics{}
	}
	return stats, nil
}

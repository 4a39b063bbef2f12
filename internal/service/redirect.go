package service

import (
	"context"
	"errors"
	"time"

	"link-shortener/internal/model"
)

// CacheControl lets intermediaries serve a redirect for five minutes, and a
// stale copy for five more while revalidating or when the origin fails.
const CacheControl = "public, max-age=300, s-maxage=300, stale-while-revalidate=300, stale-if-error=300"

// Redirect resolves id to its target and records the hit in the background.
// The statistics write never delays or fails the returned redirect.
func (s *Service) Redirect(ctx context.Context, id string, referer, userAgent *string) (*model.RedirectTarget, error) {
	link, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	target := &model.RedirectTarget{
		Location:     link.TargetURL,
		CacheControl: CacheControl,
	}

	s.recordAsync(ctx, model.StatisticsEvent{
		LinkID:     link.ID,
		Referer:    referer,
		UserAgent:  userAgent,
		RecordedAt: s.Now().UTC(),
	})
	return target, nil
}

// recordAsync writes event on its own goroutine with its own deadline. The
// request context only contributes values; its cancellation is dropped.
func (s *Service) recordAsync(ctx context.Context, event model.StatisticsEvent) {
	ctx = context.WithoutCancel(ctx)

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()

		ctx, cancel := context.WithTimeout(ctx, s.StatisticsTimeout)
		defer cancel()

		start := time.Now()
		err := s.Store.SaveStatistics(ctx, event)
		switch {
		case err == nil:
			s.Logger.DebugContext(ctx, "new link stats persisted", "id", event.LinkID, "duration", time.Since(start))
		case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
			s.Logger.ErrorContext(ctx, "saving new link stats timeout", "id", event.LinkID, "timeout", s.StatisticsTimeout)
		default:
			s.Logger.ErrorContext(ctx, "saving new link stats failed", "id", event.LinkID, "error", err)
		}
	}()
}

// Wait blocks until every statistics write started by Redirect has finished.
func (s *Service) Wait() {
	s.pending.Wait()
}

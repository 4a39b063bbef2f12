package testutils

import (
	"context"
	"fmt"
	"time"

	"link-shortener/internal/model"
)

// BlockingStore holds every request-path call until its context is done.
// Statistics writes still go to the embedded MemoryStore.
type BlockingStore struct {
	*MemoryStore
}

func NewBlockingStore() BlockingStore {
	return BlockingStore{NewMemoryStore()}
}

func (b BlockingStore) Save(ctx context.Context, id, _ string, _ time.Time) (*model.Link, error) {
	b.SaveCalls.Add(1)
	<-ctx.Done()
	return nil, fmt.Errorf("save link %q: %w", id, ctx.Err())
}

func (b BlockingStore) GetByID(ctx context.Context, id string) (*model.Link, error) {
	b.GetCalls.Add(1)
	<-ctx.Done()
	return nil, fmt.Errorf("get link %q: %w", id, ctx.Err())
}

func (b BlockingStore) Update(ctx context.Context, id, _ string, _ time.Time) (*model.Link, error) {
	b.UpdateCalls.Add(1)
	<-ctx.Done()
	return nil, fmt.Errorf("update link %q: %w", id, ctx.Err())
}

func (b BlockingStore) GetStatistics(ctx context.Context, linkID string) ([]model.LinkStatistics, error) {
	b.GetStatisticsCalls.Add(1)
	<-ctx.Done()
	return nil, fmt.Errorf("get statistics %q: %w", linkID, ctx.Err())
}

package coordinator

import (
	"context"
	"sync"

	"boardsync/domain"
	"boardsync/store"
)

type boardFetcher interface {
	FetchBoard(ctx context.Context, boardID int) (domain.Board, error)
}

// FullRefetch reconciles by replacing the whole store with a fresh copy of
// the board.
type FullRefetch struct {
	api   boardFetcher
	store *store.Store
}

func NewFullRefetch(api boardFetcher, st *store.Store) *FullRefetch {
	if api == nil || st == nil {
		panic("coordinator.NewFullRefetch: api and store are required")
	}
	return &FullRefetch{api: api, store: st}
}

func (r *FullRefetch) Reconcile(ctx context.Context, boardID int, gate sync.Locker) error {
	b, err := r.api.FetchBoard(ctx, boardID)
	if err != nil {
		return &domain.RefetchError{BoardID: boardID, Err: err}
	}
	gate.Lock()
	r.store.Replace(b)
	gate.Unlock()
	return nil
}

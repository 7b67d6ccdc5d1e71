// Package coordinator turns completed drag gestures into optimistic board
// mutations and persists them in the background.
package coordinator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"boardsync/domain"
	"boardsync/store"
)

// ErrorHandler receives user-visible failures.
type ErrorHandler func(error)

// Option configures a Coordinator.
type Option func(*Coordinator)

func WithLogger(logger *log.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithReconciler replaces the default full refetch.
func WithReconciler(r Reconciler) Option {
	return func(c *Coordinator) {
		if r != nil {
			c.reconciler = r
		}
	}
}

// Coordinator applies gestures for one board session. Drop calls are
// serialized; persistence calls run concurrently and are awaited by Wait.
type Coordinator struct {
	boardID    int
	api        BoardAPI
	store      *store.Store
	reconciler Reconciler
	logger     *log.Logger

	mu sync.Mutex
	wg sync.WaitGroup

	hmu      sync.Mutex
	handlers map[int]ErrorHandler
	nextID   int
}

func New(boardID int, api BoardAPI, st *store.Store, opts ...Option) *Coordinator {
	if api == nil || st == nil {
		panic("coordinator.New: api and store are required")
	}
	c := &Coordinator{
		boardID:  boardID,
		api:      api,
		store:    st,
		logger:   log.StandardLogger(),
		handlers: make(map[int]ErrorHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.reconciler == nil {
		c.reconciler = NewFullRefetch(api, st)
	}
	return c
}

func (c *Coordinator) BoardID() int { return c.boardID }

// Store exposes the session's board state.
func (c *Coordinator) Store() *store.Store { return c.store }

// OnError registers h for user-visible failures and returns a func that
// removes it.
func (c *Coordinator) OnError(h ErrorHandler) func() {
	c.hmu.Lock()
	id := c.nextID
	c.nextID++
	c.handlers[id] = h
	c.hmu.Unlock()
	return func() {
		c.hmu.Lock()
		delete(c.handlers, id)
		c.hmu.Unlock()
	}
}

// Refresh reconciles the store with the server.
func (c *Coordinator) Refresh(ctx context.Context) error {
	err := c.reconciler.Reconcile(ctx, c.boardID, &c.mu)
	if err != nil {
		return c.asRefetchError(err)
	}
	return nil
}

// Wait blocks until every in-flight persistence call has settled.
func (c *Coordinator) Wait() { c.wg.Wait() }

// Drop applies a completed gesture. It returns a nil mutation when the
// gesture changes nothing. The optimistic state is visible in the store when
// Drop returns; persistence continues in the background.
func (c *Coordinator) Drop(ctx context.Context, active, over domain.DragRef) (*Mutation, error) {
	c.mu.Lock()
	m, err := c.apply(active, over)
	c.mu.Unlock()

	entry := c.logger.WithFields(log.Fields{
		"board_id": c.boardID,
		"active":   active.Token(),
		"over":     over.Token(),
	})
	if err != nil {
		if errors.Is(err, domain.ErrMalformedIdentifier) {
			entry.WithError(err).Warn("gesture aborted")
		} else {
			entry.WithError(err).Debug("gesture aborted")
		}
		return nil, err
	}
	if m == nil {
		entry.Debug("gesture is a no-op")
		return nil, nil
	}

	m.ID = uuid.NewString()
	m.BoardID = c.boardID
	entry.WithFields(log.Fields{"mutation_id": m.ID, "op": m.Op}).Debug("gesture applied")
	c.persist(ctx, m)
	return m, nil
}

func (c *Coordinator) persist(ctx context.Context, m *Mutation) {
	ctx = context.WithoutCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		metrics, ctx := newGestureMetrics(ctx, c.logger, m)

		start := time.Now()
		err := c.call(ctx, m)
		metrics.ObservePersist(time.Since(start))
		if err == nil {
			metrics.Log(outcomeApplied, nil)
			return
		}

		perr := &domain.PersistenceError{Op: string(m.Op), Err: err}
		if c.store.Superseded(m.token) {
			metrics.Log(outcomeSuperseded, perr)
			return
		}
		c.report(perr)

		start = time.Now()
		rerr := c.reconciler.Reconcile(ctx, c.boardID, &c.mu)
		metrics.ObserveReconcile(time.Since(start), c.store.Generation())
		if rerr != nil {
			rerr = c.asRefetchError(rerr)
			c.report(rerr)
			metrics.Log(outcomeRefetchFailed, rerr)
			return
		}
		metrics.Log(outcomeRolledBack, perr)
	}()
}

func (c *Coordinator) call(ctx context.Context, m *Mutation) error {
	switch m.Op {
	case OpReorderColumns:
		return c.api.ReorderColumns(ctx, m.BoardID, m.ColumnIDs)
	case OpReorderCards:
		return c.api.ReorderCards(ctx, m.BoardID, m.ColumnID, m.CardIDs)
	case OpMoveCard:
		return c.api.MoveCard(ctx, m.BoardID, m.CardID, m.Move)
	case OpAssignUser:
		return c.api.AssignUser(ctx, m.BoardID, m.ColumnID, m.CardID, m.UserID)
	default:
		return fmt.Errorf("unknown op %q", m.Op)
	}
}

func (c *Coordinator) report(err error) {
	c.hmu.Lock()
	handlers := make([]ErrorHandler, 0, len(c.handlers))
	for _, h := range c.handlers {
		handlers = append(handlers, h)
	}
	c.hmu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (c *Coordinator) asRefetchError(err error) error {
	var rerr *domain.RefetchError
	if errors.As(err, &rerr) {
		return err
	}
	return &domain.RefetchError{BoardID: c.boardID, Err: err}
}

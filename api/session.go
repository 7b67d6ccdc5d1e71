package api

import (
	"context"
	"strconv"
	"sync"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"boardsync/collision"
	"boardsync/coordinator"
	"boardsync/domain"
	"boardsync/store"
)

// session is the server-side view of one board shared by all callers.
type session struct {
	coord *coordinator.Coordinator
	hub   *hub

	mu    sync.Mutex
	drags map[string]*collision.Resolver
}

// withDrag runs fn against the caller's gesture tracker. Trackers are not
// safe for concurrent use, so fn runs under the session lock.
func (s *session) withDrag(userID string, fn func(*collision.Resolver) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.drags[userID]
	if !ok {
		r = collision.NewResolver()
		s.drags[userID] = r
	}
	return fn(r)
}

// access resolves the caller's rights. The service identity the board was
// fetched with gets the server-reported permissions; everyone else gets what
// their board membership grants.
func (s *session) access(userID, serviceSubject string) domain.Access {
	b := s.coord.Store().Board()
	if serviceSubject != "" && userID == serviceSubject {
		return domain.ServiceAccess(b)
	}
	return domain.AccessFor(b, callerID(userID))
}

// callerID maps a token subject onto a board user id. Non-numeric subjects
// map to zero, which matches no member.
func callerID(sub string) int {
	id, err := strconv.Atoi(sub)
	if err != nil {
		return 0
	}
	return id
}

type sessionRegistry struct {
	backend coordinator.BoardAPI
	logger  *log.Logger

	mu       sync.Mutex
	sessions map[int]*session
	loads    singleflight.Group
}

func newSessionRegistry(backend coordinator.BoardAPI, logger *log.Logger) *sessionRegistry {
	return &sessionRegistry{
		backend:  backend,
		logger:   logger,
		sessions: make(map[int]*session),
	}
}

// get returns the board's session, loading the board on first use.
// Concurrent first requests share one load.
func (r *sessionRegistry) get(ctx context.Context, boardID int) (*session, error) {
	r.mu.Lock()
	s, ok := r.sessions[boardID]
	r.mu.Unlock()
	if ok {
		return s, nil
	}

	v, err, _ := r.loads.Do(strconv.Itoa(boardID), func() (any, error) {
		r.mu.Lock()
		if s, ok := r.sessions[boardID]; ok {
			r.mu.Unlock()
			return s, nil
		}
		r.mu.Unlock()

		s := r.newSession(boardID)
		// the load is shared, so one caller going away must not fail the rest
		if err := s.coord.Refresh(context.WithoutCancel(ctx)); err != nil {
			return nil, err
		}
		r.mu.Lock()
		r.sessions[boardID] = s
		r.mu.Unlock()
		r.logger.WithField("board_id", boardID).Info("board session opened")
		return s, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*session), nil
}

func (r *sessionRegistry) newSession(boardID int) *session {
	st := store.New()
	coord := coordinator.New(boardID, r.backend, st, coordinator.WithLogger(r.logger))
	h := newHub()
	st.Subscribe(func(domain.Board) { h.notifyBoard() })
	coord.OnError(h.notifyError)
	return &session{
		coord: coord,
		hub:   h,
		drags: make(map[string]*collision.Resolver),
	}
}

// wait blocks until every session's in-flight persistence has settled.
func (r *sessionRegistry) wait() {
	r.mu.Lock()
	sessions := make([]*session, 0, len(r.sessions))
	for _, s := range r.sessions {
		sessions = append(sessions, s)
	}
	r.mu.Unlock()
	for _, s := range sessions {
		s.coord.Wait()
	}
}

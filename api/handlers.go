// Package api exposes board sessions and the drag protocol over HTTP.
package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"boardsync/collision"
	"boardsync/domain"
	"boardsync/storage"
)

const defaultKeepAlive = 30 * time.Second

// Server owns the board sessions behind the HTTP routes.
type Server struct {
	auth           Authenticator
	sessions       *sessionRegistry
	logger         *log.Logger
	keepAlive      time.Duration
	now            func() time.Time
	serviceSubject string
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServiceSubject names the token subject of the identity boards are
// fetched with. That caller is granted the board's server-reported
// permissions instead of membership-derived ones.
func WithServiceSubject(sub string) ServerOption {
	return func(s *Server) { s.serviceSubject = sub }
}

// Register wires up all API routes on the provided Echo instance.
func Register(e *echo.Echo, backend Backend, auth Authenticator, logger *log.Logger, opts ...ServerOption) *Server {
	if logger == nil {
		logger = log.StandardLogger()
	}
	s := &Server{
		auth:      auth,
		sessions:  newSessionRegistry(backend, logger),
		logger:    logger,
		keepAlive: defaultKeepAlive,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	e.JSONSerializer = sonicSerializer{}

	e.GET("/healthz", healthz)
	g := e.Group("/api/boards/:id", GzipRequestMiddleware())
	g.GET("", s.getBoard)
	g.POST("/refresh", s.refreshBoard)
	g.POST("/drag/start", s.dragStart)
	g.POST("/drag/move", s.dragMove)
	g.POST("/drag/end", s.dragEnd)
	g.POST("/drag/cancel", s.dragCancel)
	g.GET("/stats", s.getStats)
	g.GET("/stream", s.stream)
	return s
}

// Wait blocks until all in-flight persistence calls have settled.
func (s *Server) Wait() { s.sessions.wait() }

func healthz(c echo.Context) error {
	return c.NoContent(http.StatusOK)
}

// open authenticates the caller and returns the board's session.
func (s *Server) open(c echo.Context, authHeader string) (*session, string, error) {
	userID, err := s.auth.UserIDFromAuthHeader(authHeader)
	if err != nil {
		return nil, "", echo.NewHTTPError(http.StatusUnauthorized, err.Error())
	}
	boardID, err := strconv.Atoi(c.Param("id"))
	if err != nil || boardID <= 0 {
		return nil, "", echo.NewHTTPError(http.StatusBadRequest, "invalid board id")
	}
	sess, err := s.sessions.get(c.Request().Context(), boardID)
	if err != nil {
		s.logger.WithError(err).WithField("board_id", boardID).Error("load board")
		return nil, "", httpError(err)
	}
	return sess, userID, nil
}

func (s *Server) access(sess *session, userID string) domain.Access {
	return sess.access(userID, s.serviceSubject)
}

func (s *Server) boardView(sess *session, userID string) boardResponse {
	resp := boardResponse{
		Board:  sess.coord.Store().Snapshot(),
		Access: s.access(sess, userID),
	}
	_ = sess.withDrag(userID, func(r *collision.Resolver) error {
		resp.DragState = r.DragState()
		return nil
	})
	return resp
}

func (s *Server) getBoard(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, s.boardView(sess, userID))
}

func (s *Server) refreshBoard(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	if err := sess.coord.Refresh(c.Request().Context()); err != nil {
		s.logger.WithError(err).WithField("board_id", sess.coord.BoardID()).Warn("refresh board")
		return httpError(err)
	}
	return c.JSON(http.StatusOK, s.boardView(sess, userID))
}

func (s *Server) dragStart(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	var req dragStartRequest
	if err := c.Bind(&req); err != nil {
		return err
	}
	if !s.access(sess, userID).CanEdit {
		return httpError(domain.ErrForbidden)
	}

	var state domain.DragState
	err = sess.withDrag(userID, func(r *collision.Resolver) error {
		if _, err := r.Start(req.ActiveID, req.Data); err != nil {
			return err
		}
		state = r.DragState()
		return nil
	})
	if err != nil {
		s.logger.WithError(err).WithField("active_id", req.ActiveID).Warn("drag start rejected")
		return httpError(err)
	}
	return c.JSON(http.StatusOK, state)
}

func (s *Server) dragMove(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	var req dragMoveRequest
	if err := c.Bind(&req); err != nil {
		return err
	}

	resp := dragMoveResponse{Collisions: []string{}}
	err = sess.withDrag(userID, func(r *collision.Resolver) error {
		if r.State() == collision.Idle {
			return echo.NewHTTPError(http.StatusConflict, "no drag in progress")
		}
		for _, reg := range r.Move(req.Pointer, req.ActiveRect, req.Regions) {
			resp.Collisions = append(resp.Collisions, reg.ID)
		}
		if ds := r.DragState(); ds.DropTargetID != "" {
			resp.DropTargetID = &ds.DropTargetID
			resp.DropTargetKind = ds.DropTargetKind
		}
		return nil
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) dragEnd(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}

	var drop collision.Drop
	err = sess.withDrag(userID, func(r *collision.Resolver) error {
		var endErr error
		drop, endErr = r.End()
		return endErr
	})
	if errors.Is(err, domain.ErrTargetNotFound) {
		return c.JSON(http.StatusOK, dragEndResponse{Outcome: outcomeAborted, Board: sess.coord.Store().Snapshot()})
	}
	if err != nil {
		return httpError(err)
	}
	if !s.access(sess, userID).CanEdit {
		return httpError(domain.ErrForbidden)
	}

	m, err := sess.coord.Drop(c.Request().Context(), drop.Active, drop.Over)
	resp := dragEndResponse{Outcome: outcomeApplied, Mutation: m}
	switch {
	case errors.Is(err, domain.ErrTargetNotFound):
		resp.Outcome = outcomeAborted
	case err != nil:
		return httpError(err)
	case m == nil:
		resp.Outcome = outcomeNoop
	}
	resp.Board = sess.coord.Store().Snapshot()
	return c.JSON(http.StatusOK, resp)
}

func (s *Server) dragCancel(c echo.Context) error {
	sess, userID, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	_ = sess.withDrag(userID, func(r *collision.Resolver) error {
		r.Cancel()
		return nil
	})
	return c.JSON(http.StatusOK, dragEndResponse{Outcome: outcomeCancelled, Board: sess.coord.Store().Snapshot()})
}

func (s *Server) getStats(c echo.Context) error {
	sess, _, err := s.open(c, c.Request().Header.Get(echo.HeaderAuthorization))
	if err != nil {
		return err
	}
	b := sess.coord.Store().Snapshot()
	return c.JSON(http.StatusOK, statsResponse{
		Statistics:   domain.ComputeStatistics(b, s.now()),
		Distribution: domain.CardDistribution(b),
		Workload:     domain.Workload(b),
	})
}

// httpError maps domain and upstream failures onto status codes.
func httpError(err error) *echo.HTTPError {
	var (
		apiErr *storage.APIError
		rerr   *domain.RefetchError
	)
	switch {
	case errors.Is(err, domain.ErrMalformedIdentifier):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, "you cannot edit this board")
	case errors.Is(err, domain.ErrTargetNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound:
		return echo.NewHTTPError(http.StatusNotFound, "board not found")
	case errors.As(err, &rerr), errors.As(err, &apiErr):
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

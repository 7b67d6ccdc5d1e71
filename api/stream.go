package api

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
)

// stream pushes the board after every change and surfaces gesture failures
// as server-sent events. EventSource cannot set headers, so the token may
// also arrive as a query parameter.
func (s *Server) stream(c echo.Context) error {
	authHeader := c.Request().Header.Get(echo.HeaderAuthorization)
	if token := c.QueryParam("token"); authHeader == "" && token != "" {
		authHeader = bearerPrefix + token
	}
	sess, userID, err := s.open(c, authHeader)
	if err != nil {
		return err
	}

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.Header().Set("X-Accel-Buffering", "no")
	flusher, ok := res.Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "stream unsupported")
	}
	res.WriteHeader(http.StatusOK)

	sub := sess.hub.subscribe()
	defer sess.hub.unsubscribe(sub)

	if err := writeEvent(res, "board", s.boardView(sess, userID)); err != nil {
		return nil
	}
	flusher.Flush()

	ctx := c.Request().Context()
	ticker := time.NewTicker(s.keepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-sub.board:
			if err := writeEvent(res, "board", s.boardView(sess, userID)); err != nil {
				return nil
			}
		case ev := <-sub.errors:
			if err := writeEvent(res, "error", ev); err != nil {
				return nil
			}
		case <-ticker.C:
			if _, err := res.Write([]byte(":keepalive\n\n")); err != nil {
				return nil
			}
		}
		flusher.Flush()
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := sonic.Marshal(v)
	if err != nil {
		return err
	}
	buf := make([]byte, 0, len(name)+len(data)+16)
	buf = append(buf, "event: "...)
	buf = append(buf, name...)
	buf = append(buf, "\ndata: "...)
	buf = append(buf, data...)
	buf = append(buf, "\n\n"...)
	_, err = w.Write(buf)
	return err
}

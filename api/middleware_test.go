package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func TestHasGzipEncoding(t *testing.T) {
	cases := map[string]bool{
		"":              false,
		"gzip":          true,
		"GZIP":          true,
		"br, gzip":      true,
		"identity":      false,
		"x-gzip-custom": false,
	}
	for header, want := range cases {
		if got := hasGzipEncoding(header); got != want {
			t.Fatalf("%q: expected %v, got %v", header, want, got)
		}
	}
}

func TestGzipRequestMiddlewarePassesPlainBodies(t *testing.T) {
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain"))
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)

	h := GzipRequestMiddleware()(func(c echo.Context) error {
		body, _ := io.ReadAll(c.Request().Body)
		return c.String(http.StatusOK, string(body))
	})
	if err := h(c); err != nil {
		t.Fatalf("handler: %v", err)
	}
	if rec.Body.String() != "plain" {
		t.Fatalf("unexpected body %q", rec.Body.String())
	}
}

func TestRequestLoggerLevels(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(log.DebugLevel)

	e := echo.New()
	e.Use(RequestLogger(logger))
	e.GET("/ok", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/bad", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadRequest, "nope") })
	e.GET("/boom", func(c echo.Context) error { return echo.NewHTTPError(http.StatusBadGateway, "upstream") })

	want := map[string]log.Level{
		"/ok":   log.DebugLevel,
		"/bad":  log.WarnLevel,
		"/boom": log.ErrorLevel,
	}
	for path, level := range want {
		hook.Reset()
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))

		entry := hook.LastEntry()
		if entry == nil {
			t.Fatalf("%s: no log entry", path)
		}
		if entry.Level != level {
			t.Fatalf("%s: expected level %v, got %v", path, level, entry.Level)
		}
		if entry.Data["route"] != path || entry.Data["status"] != rec.Code {
			t.Fatalf("%s: unexpected fields %+v", path, entry.Data)
		}
	}
}

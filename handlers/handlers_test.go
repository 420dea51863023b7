package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/require"

	"library-api/config"
	"library-api/handlers"
	"library-api/service"
)

type fixture struct {
	t      *testing.T
	now    time.Time
	lib    *service.Library
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &fixture{t: t, now: time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)}
	cfg := config.Default()
	cfg.Server.Env = config.EnvTest

	lib, err := service.NewLibrary(
		service.WithClock(func() time.Time { return f.now }),
		service.WithPolicy(cfg.Library),
	)
	require.NoError(t, err)
	logger, _ := test.NewNullLogger()
	router, err := handlers.NewRouter(lib, cfg, logger)
	require.NoError(t, err)

	f.lib = lib
	f.router = router
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	f.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else {
			require.NoError(f.t, json.NewEncoder(&buf).Encode(body))
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

func (f *fixture) member(name string, age int) int {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/members", map[string]any{"name": name, "age": age})
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	return int(decode(f.t, w)["member_id"].(float64))
}

func (f *fixture) book(fields map[string]any) int {
	f.t.Helper()
	w := f.do(http.MethodPost, "/api/books", fields)
	require.Equal(f.t, http.StatusOK, w.Code, w.Body.String())
	return int(decode(f.t, w)["book_id"].(float64))
}

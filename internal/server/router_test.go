package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/isruplay/internal/bundle"
	"github.com/san-kum/isruplay/internal/playback"
	"github.com/san-kum/isruplay/internal/simclient"
	"github.com/san-kum/isruplay/internal/storage"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seededStore(t *testing.T) (*storage.Store, string) {
	t.Helper()
	st := storage.New(t.TempDir())
	require.NoError(t, st.Init())

	b, err := bundle.New(map[string][]float64{
		"hour":      {0, 1, 2, 3},
		"CO2_level": {0, 100, 100, 200},
	})
	require.NoError(t, err)

	id, err := st.Save("test", playback.Params{Speed: 1, Duration: 0.1}, b)
	require.NoError(t, err)
	return st, id
}

func postForm(t *testing.T, h http.Handler, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, simclient.Path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	st, _ := seededStore(t)
	h := NewRouter(st, "", quietLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 8)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, float64(1), body["runs"])
}

func TestRunSimulation(t *testing.T) {
	st, _ := seededStore(t)
	h := NewRouter(st, "", quietLogger())

	tests := []struct {
		name   string
		form   url.Values
		status int
	}{
		{"matching params", url.Values{simclient.FieldSpeed: {"1"}, simclient.FieldDuration: {"0.1"}}, http.StatusOK},
		{"defaults", url.Values{}, http.StatusOK},
		{"no such run", url.Values{simclient.FieldSpeed: {"7"}}, http.StatusNotFound},
		{"bad speed", url.Values{simclient.FieldSpeed: {"fast"}}, http.StatusBadRequest},
		{"bad duration", url.Values{simclient.FieldDuration: {"long"}}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postForm(t, h, tt.form)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestRunSimulation_PinnedRun(t *testing.T) {
	st, id := seededStore(t)
	h := NewRouter(st, id, quietLogger())

	rec := postForm(t, h, url.Values{simclient.FieldSpeed: {"42"}})
	require.Equal(t, http.StatusOK, rec.Code)

	b, err := bundle.Decode(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 4, b.Len())
}

func TestRuns(t *testing.T) {
	st, id := seededStore(t)
	h := NewRouter(st, "", quietLogger())

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var runs []storage.RunMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, id, runs[0].ID)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/"+id, nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/runs/run_missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestRecovery(t *testing.T) {
	h := Recovery(quietLogger())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal server error")
}

func TestClientAgainstServer(t *testing.T) {
	st, _ := seededStore(t)
	srv := httptest.NewServer(NewRouter(st, "", quietLogger()))
	defer srv.Close()

	c := simclient.New(srv.URL, time.Second)
	b, err := c.Fetch(context.Background(), playback.Params{Speed: 1, Duration: 0.1})
	require.NoError(t, err)

	co2, ok := b.Series("CO2_level")
	require.True(t, ok)
	assert.Equal(t, []float64{0, 100, 100, 200}, co2)

	_, err = c.Fetch(context.Background(), playback.Params{Speed: 3, Duration: 0.1})
	assert.ErrorIs(t, err, simclient.ErrStatus)
}

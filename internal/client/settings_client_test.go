package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/internal/settings"
	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

func newSettingsServer(t *testing.T) (*httptest.Server, *settings.Store) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	store := settings.NewStore(s, "config/settings.yaml")

	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(cerr.NewConvertConnectErrorChiMiddleware())
		store.Routes(r)
	})
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if req.Header.Get("Authorization") != "Bearer k" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		r.ServeHTTP(w, req)
	}))
	t.Cleanup(ts.Close)
	return ts, store
}

func TestSettingsClient_DedupWindowFollowsServer(t *testing.T) {
	ctx := context.Background()
	ts, store := newSettingsServer(t)
	c := NewSettingsClient(ts.Client(), ts.URL+"/", "k")

	d, err := c.DedupWindow(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, settings.Default().Merge.DedupWindow.Duration(), d)

	_, err = store.Update(ctx, []byte(`{"merge":{"dedupWindow":1500}}`))
	require.NoError(t, err)

	d, err = c.DedupWindow(ctx, time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 1500*time.Millisecond, d)
}

func TestSettingsClient_DedupWindowFallsBack(t *testing.T) {
	ts, _ := newSettingsServer(t)
	c := NewSettingsClient(ts.Client(), ts.URL, "wrong")

	d, err := c.DedupWindow(context.Background(), 7*time.Second)
	require.Error(t, err)
	assert.Equal(t, 7*time.Second, d)
}

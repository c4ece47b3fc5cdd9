package settings

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kazz187/orchestra/pkg/cerr"
	"github.com/kazz187/orchestra/pkg/storage"
)

const settingsPath = "settings.yaml"

func newStore(t *testing.T) (*Store, *storage.LocalStorage) {
	t.Helper()
	s, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	return NewStore(s, settingsPath), s
}

func TestStore_DefaultsWhenMissing(t *testing.T) {
	store, _ := newStore(t)
	got, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
	assert.Empty(t, got.Validate())
}

func TestStore_UpdateDeepMerges(t *testing.T) {
	store, s := newStore(t)
	ctx := context.Background()

	got, err := store.Update(ctx, []byte(`{"polling":{"chatInterval":500},"display":{"maxLogLines":1000}}`))
	require.NoError(t, err)
	assert.Equal(t, 500*time.Millisecond, got.Polling.ChatInterval.Duration())
	assert.Equal(t, 2*time.Second, got.Polling.TaskInterval.Duration())
	assert.Equal(t, 1000, got.Display.MaxLogLines)
	assert.Equal(t, 20, got.Display.ItemsPerPage)

	data, err := s.Read(ctx, settingsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "chat_interval: 500ms")

	// A fresh store reads the persisted file.
	reloaded, err := NewStore(s, settingsPath).Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, got, reloaded)

	got, err = store.Update(ctx, []byte(`{"merge":{"dedupWindow":"10s"}}`))
	require.NoError(t, err)
	assert.Equal(t, 10*time.Second, got.Merge.DedupWindow.Duration())
	assert.Equal(t, 500*time.Millisecond, got.Polling.ChatInterval.Duration())
}

func TestStore_UpdateRejectsInvalid(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	_, err := store.Update(ctx, []byte(`{"polling":{"chatInterval":0},"display":{"itemsPerPage":-1}}`))
	require.Error(t, err)
	var cErr *cerr.Error
	require.ErrorAs(t, err, &cErr)
	assert.Equal(t, cerr.InvalidArgument, cErr.Code)
	assert.Equal(t, []string{"polling.chatInterval must be positive", "display.itemsPerPage must be positive"}, cErr.DetailMessages())

	_, err = store.Update(ctx, []byte(`{"polling":`))
	assert.True(t, cerr.IsCode(err, cerr.InvalidArgument))

	got, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), got, "rejected patches leave settings untouched")
}

func TestStore_ResetAndCorruptFile(t *testing.T) {
	store, s := newStore(t)
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, settingsPath, []byte("polling:\n  chat_interval: soon\n")))

	_, err := store.Get(ctx)
	assert.True(t, cerr.IsCode(err, cerr.DataLoss))

	got, err := store.Reset(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)

	got, err = store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, Default(), got)
}

func TestStore_Routes(t *testing.T) {
	store, _ := newStore(t)
	r := chi.NewRouter()
	r.Route("/api", func(r chi.Router) {
		r.Use(cerr.NewConvertConnectErrorChiMiddleware())
		store.Routes(r)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.EqualValues(t, 1000, body["polling"]["chatInterval"])
	assert.EqualValues(t, 5000, body["merge"]["dedupWindow"])

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(`{"timeout":{"apiRequest":15000}}`)))
	require.Equal(t, http.StatusOK, rec.Code)
	var updated UpdateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.True(t, updated.Success)
	assert.Equal(t, 15*time.Second, updated.Settings.Timeout.APIRequest.Duration())

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPut, "/api/settings", bytes.NewBufferString(`{"timeout":{"apiRequest":0}}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/settings", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &updated))
	assert.Equal(t, Default(), updated.Settings)
}

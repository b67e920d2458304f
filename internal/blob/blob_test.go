package blob

import (
	"context"
	"database/sql"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Download(ctx, "labels", "missing.csv")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Upload(ctx, "labels", "a.csv", []byte("v1")))
	require.NoError(t, s.Upload(ctx, "labels", "a.csv", []byte("v2")))
	require.NoError(t, s.Upload(ctx, "other", "a.csv", []byte("x")))

	got, err := s.Download(ctx, "labels", "a.csv")
	require.NoError(t, err)
	assert.Equal(t, "v2", string(got))
}

func TestMemoryStore(t *testing.T) {
	exerciseStore(t, NewMemoryStore())
}

func TestSQLStore(t *testing.T) {
	s, err := NewSQLStore(context.Background(), openDB(t))
	require.NoError(t, err)
	exerciseStore(t, s)
}

func TestAzureStore(t *testing.T) {
	var mu sync.Mutex
	blobs := map[string][]byte{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("sig") != "secret" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			b, ok := blobs[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			w.Write(b)
		case http.MethodPut:
			if r.Header.Get("x-ms-blob-type") != "BlockBlob" {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			b, _ := io.ReadAll(r.Body)
			blobs[r.URL.Path] = b
			w.WriteHeader(http.StatusCreated)
		}
	}))
	defer srv.Close()

	exerciseStore(t, NewAzureStoreWithEndpoint(srv.URL, "?sv=2020&sig=secret", srv.Client()))

	denied := NewAzureStoreWithEndpoint(srv.URL, "sig=wrong", srv.Client())
	_, err := denied.Download(context.Background(), "labels", "a.csv")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Error(t, denied.Upload(context.Background(), "labels", "a.csv", []byte("x")))
}

func TestNewAzureStore_Endpoint(t *testing.T) {
	s := NewAzureStore("acct", "?sig=1")
	assert.Equal(t, "https://acct.blob.core.windows.net/c/n%20x?sig=1", s.blobURL("c", "n x"))
}

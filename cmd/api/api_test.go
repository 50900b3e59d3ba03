package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hasssanezzz/logcache/cache"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
)

func newTestServer(t *testing.T) (*http.ServeMux, *cache.Cache) {
	t.Helper()
	db, err := cache.Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	mux := http.NewServeMux()
	New(db, zap.NewNop()).SetupRoutes(mux)
	return mux, db
}

func do(mux *http.ServeMux, method, path, key, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if key != "" {
		req.Header.Set("Key", key)
	}
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestAPI(t *testing.T) {
	mux, db := newTestServer(t)

	t.Run("POST /", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/", "name", "logcache")
		if rec.Code != http.StatusOK || rec.Body.String() != "logcache" {
			t.Errorf("POST / = %v %q, want %v %q", rec.Code, rec.Body.String(), http.StatusOK, "logcache")
		}
		if got, _, _ := db.Get("name"); got != "logcache" {
			t.Errorf("Get() = %q, want %q", got, "logcache")
		}
	})

	t.Run("PUT /", func(t *testing.T) {
		if rec := do(mux, http.MethodPut, "/", "name", "updated"); rec.Code != http.StatusOK {
			t.Errorf("PUT / = %v, want %v", rec.Code, http.StatusOK)
		}
	})

	t.Run("GET /", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/", "name", "")
		if rec.Code != http.StatusOK || rec.Body.String() != "updated" {
			t.Errorf("GET / = %v %q, want %v %q", rec.Code, rec.Body.String(), http.StatusOK, "updated")
		}

		if rec := do(mux, http.MethodGet, "/", "missing", ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET / missing = %v, want %v", rec.Code, http.StatusNotFound)
		}
		if rec := do(mux, http.MethodGet, "/", "", ""); rec.Code != http.StatusBadRequest {
			t.Errorf("GET / without key = %v, want %v", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("GET /keys", func(t *testing.T) {
		do(mux, http.MethodPost, "/", "another", "1")
		rec := do(mux, http.MethodGet, "/keys", "", "")
		if rec.Body.String() != "another\nname\n" {
			t.Errorf("GET /keys = %q, want %q", rec.Body.String(), "another\nname\n")
		}
	})

	t.Run("DELETE /", func(t *testing.T) {
		if rec := do(mux, http.MethodDelete, "/", "name", ""); rec.Code != http.StatusOK {
			t.Errorf("DELETE / = %v, want %v", rec.Code, http.StatusOK)
		}
		if rec := do(mux, http.MethodDelete, "/", "name", ""); rec.Code != http.StatusNotFound {
			t.Errorf("DELETE / twice = %v, want %v", rec.Code, http.StatusNotFound)
		}
		if rec := do(mux, http.MethodGet, "/", "name", ""); rec.Code != http.StatusNotFound {
			t.Errorf("GET / after delete = %v, want %v", rec.Code, http.StatusNotFound)
		}
	})

	t.Run("GET /stats", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/stats", "", "")
		var stats cache.Stats
		if err := jsoniter.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatal(err)
		}
		if stats.Keys != 1 || stats.StaleBytes == 0 {
			t.Errorf("GET /stats = %+v", stats)
		}
	})

	t.Run("POST /compact", func(t *testing.T) {
		rec := do(mux, http.MethodPost, "/compact", "", "")
		var stats cache.Stats
		if err := jsoniter.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
			t.Fatal(err)
		}
		if rec.Code != http.StatusOK || stats.StaleBytes != 0 || stats.Compactions != 1 || stats.Segments != 2 {
			t.Errorf("POST /compact = %v %+v", rec.Code, stats)
		}
	})

	t.Run("GET /metrics", func(t *testing.T) {
		rec := do(mux, http.MethodGet, "/metrics", "", "")
		body, _ := io.ReadAll(rec.Body)
		for _, name := range []string{"logcache_keys 1", "logcache_compactions_total 1", "go_goroutines"} {
			if !strings.Contains(string(body), name) {
				t.Errorf("GET /metrics missing %q", name)
			}
		}
	})
}

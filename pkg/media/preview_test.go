package media

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPreviewCache_Handler(t *testing.T) {
	cache, err := NewPreviewCache(4)
	if err != nil {
		t.Fatal(err)
	}
	cache.Put(Reference{ID: "abc", ContentType: MIMEPNG}, []byte("pngdata"))

	mux := http.NewServeMux()
	mux.Handle("GET /preview/{id}", cache.Handler())

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/abc", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != MIMEPNG {
		t.Errorf("expected %s, got %s", MIMEPNG, ct)
	}
	if rec.Body.String() != "pngdata" {
		t.Errorf("unexpected body %q", rec.Body.String())
	}

	cache.Release("abc")
	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/preview/abc", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 after release, got %d", rec.Code)
	}
}

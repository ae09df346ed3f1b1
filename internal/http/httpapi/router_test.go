package httpapi

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/kauntdewn1/neo-prompts/internal/http/handlers"
	"github.com/kauntdewn1/neo-prompts/internal/storage"
)

func TestRouterWiresGalleryRoutes(t *testing.T) {
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Write(context.Background(), "video_20250601_120000_1.mp4", []byte("clip bytes")); err != nil {
		t.Fatalf("write video: %v", err)
	}
	router := NewRouter(handlers.NewApp(store, nil))

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/healthz", nil))
	if rr.Code != 200 {
		t.Fatalf("healthz status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/videos", nil))
	if rr.Code != 200 {
		t.Fatalf("list status = %d, want 200", rr.Code)
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(payload.Items) != 1 {
		t.Fatalf("list items = %d, want 1", len(payload.Items))
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/videos/video_20250601_120000_1.mp4", nil))
	if rr.Code != 200 {
		t.Fatalf("stream status = %d, want 200", rr.Code)
	}
	if rr.Body.String() != "clip bytes" {
		t.Fatalf("stream body = %q", rr.Body.String())
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/videos/archive", nil))
	if rr.Code != 200 {
		t.Fatalf("archive status = %d, want 200", rr.Code)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest("GET", "/v1/unknown", nil))
	if rr.Code != 404 {
		t.Fatalf("unknown route status = %d, want 404", rr.Code)
	}
}

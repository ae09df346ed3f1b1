package handlers

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kauntdewn1/neo-prompts/internal/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	store, err := storage.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	return NewApp(store, nil)
}

func writeVideo(t *testing.T, app *App, name, content string, age time.Duration) {
	t.Helper()
	path, err := app.Store.Write(context.Background(), name, []byte(content))
	if err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	stamp := time.Now().Add(-age)
	if err := os.Chtimes(path, stamp, stamp); err != nil {
		t.Fatalf("age %s: %v", name, err)
	}
}

func TestHealth(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "/v1/healthz", nil)
	rr := httptest.NewRecorder()
	app.Health(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var payload map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload["status"] != "ok" {
		t.Fatalf("status = %q, want ok", payload["status"])
	}
}

func TestListVideosEmptyGallery(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "/v1/videos", nil)
	rr := httptest.NewRecorder()
	app.ListVideos(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if payload.Items == nil {
		t.Fatalf("items should be an empty list, not null")
	}
	if len(payload.Items) != 0 {
		t.Fatalf("expected empty gallery, got %d items", len(payload.Items))
	}
}

func TestListVideosNewestFirst(t *testing.T) {
	app := newTestApp(t)
	writeVideo(t, app, "video_20250601_120000_1.mp4", "older clip", time.Hour)
	writeVideo(t, app, "video_20250601_130000_1.mp4", "newer clip", time.Minute)

	req := httptest.NewRequest("GET", "/v1/videos", nil)
	rr := httptest.NewRecorder()
	app.ListVideos(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	var payload struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(payload.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(payload.Items))
	}
	if payload.Items[0]["name"] != "video_20250601_130000_1.mp4" {
		t.Fatalf("items[0] = %#v, want the newer clip first", payload.Items[0]["name"])
	}
	if payload.Items[0]["url"] != "/v1/videos/video_20250601_130000_1.mp4" {
		t.Fatalf("items[0].url = %#v", payload.Items[0]["url"])
	}
	if payload.Items[0]["bytes"] != float64(len("newer clip")) {
		t.Fatalf("items[0].bytes = %#v", payload.Items[0]["bytes"])
	}
}

func TestStreamVideo(t *testing.T) {
	app := newTestApp(t)
	writeVideo(t, app, "video_20250601_120000_1.mp4", "clip bytes", time.Minute)

	req := httptest.NewRequest("GET", "/v1/videos/video_20250601_120000_1.mp4", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("name", "video_20250601_120000_1.mp4")
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
	rr := httptest.NewRecorder()
	app.StreamVideo(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "video/mp4" {
		t.Fatalf("Content-Type = %q, want video/mp4", got)
	}
	if rr.Body.String() != "clip bytes" {
		t.Fatalf("body = %q", rr.Body.String())
	}
}

func TestStreamVideoRejectsMissingAndUnsafeNames(t *testing.T) {
	app := newTestApp(t)

	for _, name := range []string{"video_nope.mp4", "../../etc/passwd", "notes.txt"} {
		req := httptest.NewRequest("GET", "/v1/videos/x", nil)
		rctx := chi.NewRouteContext()
		rctx.URLParams.Add("name", name)
		req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
		rr := httptest.NewRecorder()
		app.StreamVideo(rr, req)

		if rr.Code != 404 {
			t.Fatalf("name %q: unexpected status code: got %d, want 404", name, rr.Code)
		}
		var payload map[string]string
		if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		if payload["error"] != "not_found" {
			t.Fatalf("name %q: error = %q, want not_found", name, payload["error"])
		}
	}
}

func TestArchiveVideos(t *testing.T) {
	app := newTestApp(t)
	writeVideo(t, app, "video_20250601_120000_1.mp4", "first clip", time.Hour)
	writeVideo(t, app, "video_20250601_130000_1.mp4", "second clip", time.Minute)

	req := httptest.NewRequest("GET", "/v1/videos/archive", nil)
	rr := httptest.NewRecorder()
	app.ArchiveVideos(rr, req)

	if rr.Code != 200 {
		t.Fatalf("unexpected status code: got %d, want 200", rr.Code)
	}
	if got := rr.Header().Get("Content-Type"); got != "application/zip" {
		t.Fatalf("Content-Type = %q, want application/zip", got)
	}
	disposition := rr.Header().Get("Content-Disposition")
	if !strings.HasPrefix(disposition, "attachment;") || !strings.Contains(disposition, ".zip") {
		t.Fatalf("Content-Disposition = %q", disposition)
	}

	body := rr.Body.Bytes()
	zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
	if err != nil {
		t.Fatalf("open archive: %v", err)
	}
	if len(zr.File) != 2 {
		t.Fatalf("archive holds %d files, want 2", len(zr.File))
	}
	contents := map[string]string{}
	for _, f := range zr.File {
		rc, err := f.Open()
		if err != nil {
			t.Fatalf("open %s: %v", f.Name, err)
		}
		data, err := io.ReadAll(rc)
		rc.Close()
		if err != nil {
			t.Fatalf("read %s: %v", f.Name, err)
		}
		contents[f.Name] = string(data)
	}
	if contents["video_20250601_120000_1.mp4"] != "first clip" {
		t.Fatalf("archive contents = %#v", contents)
	}
	if contents["video_20250601_130000_1.mp4"] != "second clip" {
		t.Fatalf("archive contents = %#v", contents)
	}
}

func TestArchiveVideosEmptyGallery(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest("GET", "/v1/videos/archive", nil)
	rr := httptest.NewRecorder()
	app.ArchiveVideos(rr, req)

	if rr.Code != 404 {
		t.Fatalf("unexpected status code: got %d, want 404", rr.Code)
	}
}

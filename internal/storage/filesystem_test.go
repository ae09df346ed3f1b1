package storage

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestWriteRejectsTraversal(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := store.Write(context.Background(), "../escape.mp4", []byte("x")); err == nil {
		t.Fatalf("expected traversal key to be rejected")
	}
	if _, err := store.Write(context.Background(), "", []byte("x")); err == nil {
		t.Fatalf("expected empty key to be rejected")
	}
}

func TestWriteReturnsFullPath(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	path, err := store.Write(context.Background(), "video_20250101_010101_1.mp4", []byte("data"))
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	if !strings.HasPrefix(path, root) {
		t.Fatalf("path %q not under root %q", path, root)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read back: %v", err)
	}
	if string(raw) != "data" {
		t.Fatalf("content = %q, want data", raw)
	}
}

func TestWriteUniqueAvoidsCollision(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	first, err := store.WriteUnique(context.Background(), "video_20250101_010101_1.mp4", []byte("one"))
	if err != nil {
		t.Fatalf("first write: %v", err)
	}
	second, err := store.WriteUnique(context.Background(), "video_20250101_010101_1.mp4", []byte("two"))
	if err != nil {
		t.Fatalf("second write: %v", err)
	}
	if first == second {
		t.Fatalf("expected distinct paths, both %q", first)
	}
	raw, err := os.ReadFile(first)
	if err != nil {
		t.Fatalf("read first: %v", err)
	}
	if string(raw) != "one" {
		t.Fatalf("first file clobbered: %q", raw)
	}
	if !strings.HasSuffix(second, ".mp4") {
		t.Fatalf("suffixed name lost extension: %q", second)
	}
}

func TestVideoKeyFormat(t *testing.T) {
	ts := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	got := VideoKey(ts, 2)
	want := "video_20250314_092653_2.mp4"
	if got != want {
		t.Fatalf("VideoKey = %q, want %q", got, want)
	}
}

func TestListSortsNewestFirstAndSkipsOtherFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	writeAged(t, root, "old.mp4", -48*time.Hour)
	writeAged(t, root, "new.mp4", -1*time.Hour)
	writeAged(t, root, "notes.txt", -1*time.Hour)
	if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	videos, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("len = %d, want 2", len(videos))
	}
	if videos[0].Name != "new.mp4" || videos[1].Name != "old.mp4" {
		t.Fatalf("order = %s, %s; want new.mp4, old.mp4", videos[0].Name, videos[1].Name)
	}
}

func TestCleanupDryRunKeepsFiles(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	writeAged(t, root, "stale.mp4", -72*time.Hour)
	writeAged(t, root, "fresh.mp4", -1*time.Hour)

	removed, freed, err := store.Cleanup(24*time.Hour, true)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(removed) != 1 || removed[0] != "stale.mp4" {
		t.Fatalf("removed = %v, want [stale.mp4]", removed)
	}
	if freed != int64(len("stale")) {
		t.Fatalf("freed = %d, want %d", freed, len("stale"))
	}
	if _, err := os.Stat(filepath.Join(root, "stale.mp4")); err != nil {
		t.Fatalf("dry run deleted the file: %v", err)
	}
}

func TestCleanupRemovesOnlyOldVideos(t *testing.T) {
	root := t.TempDir()
	store, err := NewFileStore(root)
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	writeAged(t, root, "stale.mp4", -72*time.Hour)
	writeAged(t, root, "fresh.mp4", -1*time.Hour)
	writeAged(t, root, "stale.txt", -72*time.Hour)

	removed, _, err := store.Cleanup(24*time.Hour, false)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if len(removed) != 1 || removed[0] != "stale.mp4" {
		t.Fatalf("removed = %v, want [stale.mp4]", removed)
	}
	if _, err := os.Stat(filepath.Join(root, "stale.mp4")); !os.IsNotExist(err) {
		t.Fatalf("stale.mp4 should be gone, stat err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "fresh.mp4")); err != nil {
		t.Fatalf("fresh.mp4 should remain: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "stale.txt")); err != nil {
		t.Fatalf("stale.txt should remain: %v", err)
	}
}

func TestOpenRejectsUnsafeNames(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	for _, name := range []string{"../secret.mp4", "sub/clip.mp4", "clip.txt"} {
		if _, _, err := store.Open(name); err == nil {
			t.Fatalf("Open(%q) should fail", name)
		}
	}
}

func writeAged(t *testing.T, root, name string, age time.Duration) {
	t.Helper()
	path := filepath.Join(root, name)
	content := strings.TrimSuffix(name, filepath.Ext(name))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	ts := time.Now().Add(age)
	if err := os.Chtimes(path, ts, ts); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
}

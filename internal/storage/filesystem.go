package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VideoExt is the only artifact extension the store manages. List and
// Cleanup never touch files with other extensions.
const VideoExt = ".mp4"

// FileStore persists generated videos onto the local filesystem under a
// single output directory.
type FileStore struct {
	basePath string
}

// NewFileStore initializes a FileStore rooted at basePath.
func NewFileStore(basePath string) (*FileStore, error) {
	basePath = strings.TrimSpace(basePath)
	if basePath == "" {
		return nil, errors.New("storage: base path is required")
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("storage: ensure base path: %w", err)
	}
	return &FileStore{basePath: basePath}, nil
}

// BasePath returns the configured root directory.
func (s *FileStore) BasePath() string {
	if s == nil {
		return ""
	}
	return s.basePath
}

// VideoKey builds the deterministic artifact name for one video of a
// generation started at ts. Index is 1-based.
func VideoKey(ts time.Time, index int) string {
	return fmt.Sprintf("video_%s_%d%s", ts.Format("20060102_150405"), index, VideoExt)
}

// Write persists the provided bytes at the given relative key and returns the
// full path of the written file. Keys are cleaned to prevent directory
// traversal.
func (s *FileStore) Write(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	fullPath := filepath.Join(s.basePath, filepath.FromSlash(cleanKey))
	if err := os.MkdirAll(filepath.Dir(fullPath), 0o755); err != nil {
		return "", fmt.Errorf("storage: ensure directory: %w", err)
	}
	if err := os.WriteFile(fullPath, data, 0o644); err != nil {
		return "", fmt.Errorf("storage: write file: %w", err)
	}
	return fullPath, nil
}

// WriteUnique behaves like Write but never clobbers an existing file: on a
// name collision a short random suffix is inserted before the extension.
func (s *FileStore) WriteUnique(ctx context.Context, key string, data []byte) (string, error) {
	if s == nil {
		return "", errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(key)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(filepath.Join(s.basePath, filepath.FromSlash(cleanKey))); err == nil {
		ext := filepath.Ext(cleanKey)
		suffix := strings.Split(uuid.NewString(), "-")[0]
		cleanKey = strings.TrimSuffix(cleanKey, ext) + "_" + suffix + ext
	}
	return s.Write(ctx, cleanKey, data)
}

// VideoInfo describes one stored artifact.
type VideoInfo struct {
	Name     string
	Bytes    int64
	Modified time.Time
}

// List returns the stored videos sorted newest first. Subdirectories and
// non-video files are skipped.
func (s *FileStore) List() ([]VideoInfo, error) {
	if s == nil {
		return nil, errors.New("storage: no store configured")
	}
	entries, err := os.ReadDir(s.basePath)
	if err != nil {
		return nil, fmt.Errorf("storage: read base path: %w", err)
	}
	videos := make([]VideoInfo, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), VideoExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		videos = append(videos, VideoInfo{
			Name:     entry.Name(),
			Bytes:    info.Size(),
			Modified: info.ModTime(),
		})
	}
	sort.Slice(videos, func(i, j int) bool { return videos[i].Modified.After(videos[j].Modified) })
	return videos, nil
}

// Open returns a handle to one stored video by name. The name is sanitized
// so callers cannot reach outside the output directory.
func (s *FileStore) Open(name string) (*os.File, os.FileInfo, error) {
	if s == nil {
		return nil, nil, errors.New("storage: no store configured")
	}
	cleanKey, err := sanitizeKey(name)
	if err != nil {
		return nil, nil, err
	}
	if !strings.HasSuffix(cleanKey, VideoExt) || strings.Contains(cleanKey, "/") {
		return nil, nil, errors.New("storage: invalid video name")
	}
	f, err := os.Open(filepath.Join(s.basePath, cleanKey))
	if err != nil {
		return nil, nil, err
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return f, info, nil
}

// Cleanup removes videos whose modification time is older than the cutoff.
// With dryRun set, candidates are reported but nothing is deleted. It
// returns the affected names and the number of bytes they occupy.
func (s *FileStore) Cleanup(olderThan time.Duration, dryRun bool) ([]string, int64, error) {
	if s == nil {
		return nil, 0, errors.New("storage: no store configured")
	}
	videos, err := s.List()
	if err != nil {
		return nil, 0, err
	}
	cutoff := time.Now().Add(-olderThan)
	var removed []string
	var freed int64
	for _, v := range videos {
		if !v.Modified.Before(cutoff) {
			continue
		}
		if !dryRun {
			if err := os.Remove(filepath.Join(s.basePath, v.Name)); err != nil {
				return removed, freed, fmt.Errorf("storage: remove %s: %w", v.Name, err)
			}
		}
		removed = append(removed, v.Name)
		freed += v.Bytes
	}
	return removed, freed, nil
}

// sanitizeKey normalizes a key and prevents escaping the storage root.
func sanitizeKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", errors.New("storage: key is required")
	}
	key = strings.ReplaceAll(key, "\\", "/")
	key = strings.TrimPrefix(key, "./")
	key = strings.TrimLeft(key, "/")
	cleaned := filepath.Clean(key)
	cleaned = strings.ReplaceAll(cleaned, "\\", "/")
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", errors.New("storage: invalid key")
	}
	return cleaned, nil
}

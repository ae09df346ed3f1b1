package handlers

import (
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kauntdewn1/neo-prompts/pkg/zip"
)

// ListVideos returns every video in the output directory, newest first.
func (a *App) ListVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := a.Store.List()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list videos")
		return
	}
	items := make([]map[string]any, 0, len(videos))
	for _, video := range videos {
		items = append(items, map[string]any{
			"name":     video.Name,
			"bytes":    video.Bytes,
			"modified": video.Modified,
			"url":      "/v1/videos/" + video.Name,
		})
	}
	a.json(w, http.StatusOK, map[string]any{"items": items})
}

// StreamVideo serves one video by name. ServeContent handles range
// requests, so browser players can seek.
func (a *App) StreamVideo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	f, info, err := a.Store.Open(name)
	if err != nil {
		a.error(w, http.StatusNotFound, "not_found", "video not found")
		return
	}
	defer f.Close()
	w.Header().Set("Content-Type", "video/mp4")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}

// ArchiveVideos bundles the whole gallery into a single zip download.
func (a *App) ArchiveVideos(w http.ResponseWriter, r *http.Request) {
	videos, err := a.Store.List()
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to list videos")
		return
	}
	if len(videos) == 0 {
		a.error(w, http.StatusNotFound, "not_found", "no videos to archive")
		return
	}
	entries := make([]zip.Entry, 0, len(videos))
	for _, video := range videos {
		f, info, err := a.Store.Open(video.Name)
		if err != nil {
			a.Logger.Warn().Err(err).Str("name", video.Name).Msg("handlers: skipping unreadable video")
			continue
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			a.Logger.Warn().Err(err).Str("name", video.Name).Msg("handlers: skipping unreadable video")
			continue
		}
		entries = append(entries, zip.Entry{Name: video.Name, Modified: info.ModTime(), Data: data})
	}
	archive, err := zip.Archive(entries)
	if err != nil {
		a.error(w, http.StatusInternalServerError, "internal", "failed to build archive")
		return
	}
	filename := fmt.Sprintf("videos_%s.zip", time.Now().Format("20060102_150405"))
	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(archive)
}

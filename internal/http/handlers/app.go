package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/kauntdewn1/neo-prompts/internal/infra"
	"github.com/kauntdewn1/neo-prompts/internal/storage"
)

// App carries the gallery's collaborators: the video store the generate
// and batch commands write into, and the process logger.
type App struct {
	Store  *storage.FileStore
	Logger *infra.Logger
}

func NewApp(store *storage.FileStore, logger *infra.Logger) *App {
	if logger == nil {
		discard := zerolog.New(io.Discard)
		l := infra.Logger(discard)
		logger = &l
	}
	return &App{Store: store, Logger: logger}
}

func (a *App) json(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func (a *App) error(w http.ResponseWriter, code int, kind, message string) {
	a.json(w, code, map[string]string{"error": kind, "message": message})
}

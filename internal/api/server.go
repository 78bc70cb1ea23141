// Package api serves a read-only view of checkpointed runs: what is in
// flight, what has finished, and the full state of any single run.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/MikeSquared-Agency/voight/internal/runstate"
)

type Server struct {
	router        *chi.Mux
	port          int
	checkpointDir string
}

func NewServer(port int, checkpointDir string) *Server {
	router := chi.NewRouter()
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	s := &Server{
		router:        router,
		port:          port,
		checkpointDir: checkpointDir,
	}

	router.Get("/health", s.health)
	router.Get("/api/v1/runs", s.listRuns)
	router.Get("/api/v1/runs/{name}", s.getRun)

	return s
}

func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	slog.Info("API server starting", "addr", addr)
	return http.ListenAndServe(addr, s.router)
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// runSummary is the list view of a checkpoint.
type runSummary struct {
	Name             string `json:"name"`
	RunID            string `json:"run_id"`
	ConversationID   string `json:"conversation_id"`
	Model            string `json:"model"`
	NextChunk        int    `json:"next_chunk"`
	TotalChunks      int    `json:"total_chunks"`
	Completed        bool   `json:"completed"`
	Retries          int    `json:"retries"`
	ChunksWithErrors int    `json:"chunks_with_errors"`
}

func (s *Server) listRuns(w http.ResponseWriter, r *http.Request) {
	entries, err := os.ReadDir(s.checkpointDir)
	if err != nil {
		if os.IsNotExist(err) {
			writeJSON(w, http.StatusOK, []runSummary{})
			return
		}
		http.Error(w, "read checkpoint dir", http.StatusInternalServerError)
		return
	}

	summaries := []runSummary{}
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		st, err := runstate.Load(filepath.Join(s.checkpointDir, e.Name()))
		if err != nil {
			slog.Warn("skipping unreadable checkpoint", "file", e.Name(), "error", err)
			continue
		}
		summaries = append(summaries, runSummary{
			Name:             strings.TrimSuffix(e.Name(), ".json"),
			RunID:            st.RunID,
			ConversationID:   st.ConversationID,
			Model:            st.Model,
			NextChunk:        st.NextChunk,
			TotalChunks:      st.TotalChunks,
			Completed:        st.Completed,
			Retries:          st.Retries,
			ChunksWithErrors: st.ChunksWithErrors,
		})
	}

	writeJSON(w, http.StatusOK, summaries)
}

func (s *Server) getRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name != filepath.Base(name) || strings.Contains(name, "..") {
		http.Error(w, "invalid run name", http.StatusBadRequest)
		return
	}

	st, err := runstate.Load(filepath.Join(s.checkpointDir, name+".json"))
	if err != nil {
		if errors.Is(err, runstate.ErrNoCheckpoint) {
			http.Error(w, "run not found", http.StatusNotFound)
			return
		}
		http.Error(w, "read checkpoint", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, st)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

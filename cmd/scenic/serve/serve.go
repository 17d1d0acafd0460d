// Package servecmd implements "scenic serve": a small HTTP viewer over
// the artifacts directory and run history, for browsing reports and
// screenshots after CI runs.
package servecmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"scenic/cmd/scenic/ui"
	"scenic/config"
	"scenic/internal/store"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
)

// Cmd returns the "scenic serve" command.
func Cmd() *cobra.Command {
	var (
		configPath string
		addr       string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve run reports and screenshots over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if configPath == "" {
				configPath = config.Path()
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			db, err := store.Open(filepath.Join(cfg.ArtifactsDir, "scenic.db"))
			if err != nil {
				return err
			}
			defer db.Close()

			srv := &http.Server{
				Addr:              addr,
				Handler:           Router(db, cfg.ArtifactsDir),
				ReadHeaderTimeout: 10 * time.Second,
			}

			go func() {
				<-cmd.Context().Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()

			fmt.Println(ui.InfoMsg("serving %s on http://%s", cfg.ArtifactsDir, addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&configPath, "config", "", "Config file path (default: "+config.Path()+")")
	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8780", "Listen address")

	return cmd
}

// Router builds the HTTP API: run listings and reports as JSON, plus
// the raw artifacts tree (HTML reports, screenshots) as static files.
func Router(db *store.Store, artifactsDir string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/api/runs", func(w http.ResponseWriter, req *http.Request) {
		limit := 20
		runs, err := db.ListRuns(req.Context(), limit)
		if err != nil {
			httpError(w, err)
			return
		}
		writeJSON(w, runs)
	})

	r.Get("/api/runs/{id}", func(w http.ResponseWriter, req *http.Request) {
		rep, err := db.GetReport(req.Context(), chi.URLParam(req, "id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		writeJSON(w, rep)
	})

	r.Handle("/artifacts/*", http.StripPrefix("/artifacts/", http.FileServer(http.Dir(artifactsDir))))

	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("encode response", "err", err)
	}
}

func httpError(w http.ResponseWriter, err error) {
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/model"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/pipeline"
	"github.com/CodeDeficient/food-truck-finder-poc-sub001/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for job triggers and truck lookups",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders: []string{"Accept", "Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/jobs", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				URL      string `json:"url"`
				Priority int    `json:"priority"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			if body.URL == "" {
				writeError(w, http.StatusBadRequest, "url is required")
				return
			}

			job, err := env.Orchestrator.EnqueueURL(req.Context(), body.URL, model.JobTypeWebsite, body.Priority)
			if eris.Is(err, pipeline.ErrJobExists) {
				writeError(w, http.StatusConflict, "active job already exists for url")
				return
			}
			if err != nil {
				zap.L().Error("enqueue failed", zap.String("url", body.URL), zap.Error(err))
				writeError(w, http.StatusInternalServerError, "enqueue failed")
				return
			}

			writeJSON(w, http.StatusAccepted, job)

			// Process in the server's context so a closed connection
			// doesn't abort the job.
			go func() {
				if _, err := env.Orchestrator.RunJob(ctx, job); err != nil {
					zap.L().Error("triggered job failed",
						zap.String("job_id", job.ID),
						zap.String("url", job.TargetURL),
						zap.Error(err),
					)
				}
			}()
		})

		r.Get("/jobs/{id}", func(w http.ResponseWriter, req *http.Request) {
			job, err := env.Store.GetJob(req.Context(), chi.URLParam(req, "id"))
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "job not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, job)
		})

		r.Get("/trucks", func(w http.ResponseWriter, req *http.Request) {
			trucks, err := env.Store.ListTrucks(req.Context(), store.TruckFilter{
				Name:   req.URL.Query().Get("name"),
				Region: req.URL.Query().Get("region"),
			})
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, trucks)
		})

		r.Get("/trucks/{id}", func(w http.ResponseWriter, req *http.Request) {
			truck, err := env.Store.GetTruck(req.Context(), chi.URLParam(req, "id"))
			if eris.Is(err, store.ErrNotFound) {
				writeError(w, http.StatusNotFound, "truck not found")
				return
			}
			if err != nil {
				writeError(w, http.StatusInternalServerError, "lookup failed")
				return
			}
			writeJSON(w, http.StatusOK, truck)
		})

		r.Post("/pipeline/process", func(w http.ResponseWriter, req *http.Request) {
			// Sweeps run in the server's context, not the request's, so a
			// closed connection doesn't abort in-flight jobs.
			go func() {
				if _, err := env.Orchestrator.ProcessJobs(ctx); err != nil {
					zap.L().Error("triggered sweep failed", zap.Error(err))
				}
			}()
			writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: r,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/R3v3ill3/rating-engine/internal/batch"
	"github.com/R3v3ill3/rating-engine/internal/model"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP rating API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		r := chi.NewRouter()
		r.Use(middleware.RequestID)
		r.Use(middleware.Recoverer)
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{"GET", "POST"},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
			writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})

		r.Post("/employers/{id}/rating", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Profile        string `json:"profile"`
				ProfileVersion int    `json:"profile_version"`
				AsOf           string `json:"as_of"`
				Actor          string `json:"actor"`
				DryRun         bool   `json:"dry_run"`
			}
			if req.Body != nil && req.ContentLength != 0 {
				if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
					writeError(w, http.StatusBadRequest, "invalid request body")
					return
				}
			}

			asOf, ok := parseAsOf(w, body.AsOf)
			if !ok {
				return
			}
			p, err := resolveProfile(req.Context(), e, body.Profile, body.ProfileVersion)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}

			employerID := chi.URLParam(req, "id")
			actor := body.Actor
			if actor == "" {
				actor = cfg.Engine.Actor
			}

			var rating *model.FinalRating
			if body.DryRun {
				rating, err = e.Service.CalculateDry(req.Context(), employerID, p, asOf)
			} else {
				rating, err = e.Service.CalculateFinalRating(req.Context(), actor, employerID, p, asOf)
			}
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, rating)
		})

		r.Get("/employers/{id}/rating", func(w http.ResponseWriter, req *http.Request) {
			rating, err := e.Service.LatestRating(req.Context(), chi.URLParam(req, "id"))
			if err != nil {
				writeError(w, http.StatusInternalServerError, err.Error())
				return
			}
			if rating == nil {
				writeError(w, http.StatusNotFound, "no rating recorded")
				return
			}
			writeJSON(w, http.StatusOK, rating)
		})

		r.Get("/employers/{id}/discrepancy", func(w http.ResponseWriter, req *http.Request) {
			p, err := resolveProfile(req.Context(), e, req.URL.Query().Get("profile"), 0)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			report, err := e.Service.CompareTracks(req.Context(), chi.URLParam(req, "id"), p)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}
			writeJSON(w, http.StatusOK, report)
		})

		r.Post("/profiles/validate", func(w http.ResponseWriter, req *http.Request) {
			var p model.WeightingProfile
			if err := json.NewDecoder(req.Body).Decode(&p); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
			writeJSON(w, http.StatusOK, e.Service.ValidateProfile(p))
		})

		r.Post("/batch", func(w http.ResponseWriter, req *http.Request) {
			var body struct {
				Profile        string   `json:"profile"`
				ProfileVersion int      `json:"profile_version"`
				EmployerIDs    []string `json:"employer_ids"`
				DryRun         bool     `json:"dry_run"`
				Force          bool     `json:"force"`
			}
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}

			p, err := resolveProfile(req.Context(), e, body.Profile, body.ProfileVersion)
			if err != nil {
				writeError(w, statusFor(err), err.Error())
				return
			}

			ids := body.EmployerIDs
			if len(ids) == 0 {
				if ids, err = e.Store.ListEmployerIDs(req.Context()); err != nil {
					writeError(w, http.StatusInternalServerError, err.Error())
					return
				}
			}

			opts := batch.Options{
				DryRun:           body.DryRun,
				ForceRecalculate: body.Force,
				Concurrency:      cfg.Batch.Concurrency,
				EmployerTimeout:  time.Duration(cfg.Batch.EmployerTimeoutSecs) * time.Second,
				FreshnessWindow:  time.Duration(cfg.Batch.FreshnessHours) * time.Hour,
				Actor:            cfg.Engine.Actor,
			}

			// Detach from the request context: the batch outlives the
			// HTTP exchange and stops with the server.
			handle := e.Batch.Start(ctx, ids, p, opts)
			zap.L().Info("batch accepted",
				zap.String("batch_id", handle.BatchID()),
				zap.Int("employers", len(ids)),
			)
			writeJSON(w, http.StatusAccepted, map[string]any{
				"batch_id":  handle.BatchID(),
				"employers": len(ids),
			})
		})

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           r,
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	},
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func statusFor(err error) int {
	switch {
	case eris.Is(err, model.ErrEmployerNotFound), eris.Is(err, model.ErrProfileNotFound):
		return http.StatusNotFound
	case eris.Is(err, model.ErrProfileInvalid):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func parseAsOf(w http.ResponseWriter, raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, "as_of must be RFC3339")
		return time.Time{}, false
	}
	return t, true
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

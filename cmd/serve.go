package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/acquisition-cli/internal/model"
	"github.com/sells-group/acquisition-cli/internal/pipeline"
	"github.com/sells-group/acquisition-cli/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve scan results and trigger scans over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx)
		if err != nil {
			return err
		}
		defer env.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           newRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			srv.Shutdown(ctx) //nolint:errcheck
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func newRouter(env *scanEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Get("/api/results", func(w http.ResponseWriter, _ *http.Request) {
		result, err := pipeline.ReadResults(cfg.Output.Path)
		if err != nil {
			if os.IsNotExist(eris.Cause(err)) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "no results yet; run a scan first"})
				return
			}
			zap.L().Error("read results", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "read results failed"})
			return
		}
		writeJSON(w, http.StatusOK, result)
	})

	r.Get("/api/scans", func(w http.ResponseWriter, req *http.Request) {
		runs, err := env.Store.ListScans(req.Context(), store.ScanFilter{
			Status: model.ScanStatus(req.URL.Query().Get("status")),
		})
		if err != nil {
			zap.L().Error("list scans", zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "list scans failed"})
			return
		}
		writeJSON(w, http.StatusOK, runs)
	})

	r.Post("/api/scan", func(w http.ResponseWriter, _ *http.Request) {
		// Run asynchronously: scans take minutes against rate-limited
		// providers. Progress is visible through /api/scans. The request
		// context would be canceled as soon as this handler returns.
		go func() {
			result, err := env.Pipeline.Run(context.Background())
			if err != nil {
				zap.L().Error("triggered scan failed", zap.Error(err))
				return
			}
			if err := pipeline.WriteResults(cfg.Output.Path, result); err != nil {
				zap.L().Error("write triggered scan results", zap.Error(err))
			}
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
	})

	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

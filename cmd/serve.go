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

	"github.com/trestlehq/bidlevel/internal/lifecycle"
	"github.com/trestlehq/bidlevel/internal/model"
	"github.com/trestlehq/bidlevel/internal/reconcile"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reconciliation API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		e, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer e.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:    fmt.Sprintf(":%d", port),
			Handler: buildRouter(e, cfg.Server.AllowedOrigins),
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

// buildRouter wires the HTTP API. Split out so tests can drive the routes
// without binding a port.
func buildRouter(e *env, allowedOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type"},
	}))

	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Post("/api/jobs/{jobID}/bids/{bidID}/reconcile", handleReconcile(e))
	r.Post("/api/bids/{bidID}/accept", handleStatus(e, func(req *http.Request, id string) (model.BidStatus, error) {
		return e.Lifecycle.Accept(req.Context(), id)
	}))
	r.Post("/api/bids/{bidID}/decline", handleDecline(e))
	r.Post("/api/bids/{bidID}/pending", handleStatus(e, func(req *http.Request, id string) (model.BidStatus, error) {
		return e.Lifecycle.SetPending(req.Context(), id)
	}))

	return r
}

func handleReconcile(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		ctx := req.Context()
		jobID := chi.URLParam(req, "jobID")
		bidID := chi.URLParam(req, "bidID")

		var body struct {
			Mode        string   `json:"mode"`
			SelectedIDs []string `json:"selectedIds"`
		}
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		if body.Mode == "" {
			body.Mode = string(model.ModeTakeoff)
		}
		mode := model.ComparisonMode(body.Mode)
		if !mode.Valid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid mode %q", body.Mode))
			return
		}

		takeoff, err := e.Store.TakeoffItems(ctx, jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load takeoff failed")
			return
		}
		bids, err := e.Store.Bids(ctx, jobID)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "load bids failed")
			return
		}
		subject := findBid(bids, bidID)
		if subject == nil || subject.JobID != jobID {
			writeError(w, http.StatusNotFound, "bid not found")
			return
		}

		result, err := e.Engine.Reconcile(ctx, reconcile.Request{
			Bid:          *subject,
			TakeoffItems: takeoff,
			Bids:         bids,
			SelectedIDs:  body.SelectedIDs,
			Mode:         mode,
			ForceRefresh: req.URL.Query().Get("forceRefresh") == "true",
		})
		if err != nil {
			if eris.Is(err, reconcile.ErrUnknownTrade) {
				writeError(w, http.StatusUnprocessableEntity, "bid trade could not be determined")
				return
			}
			zap.L().Error("reconcile failed", zap.String("bid", bidID), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "reconciliation failed")
			return
		}

		writeJSON(w, http.StatusOK, result)
	}
}

func handleDecline(e *env) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		var body struct {
			Reason string `json:"reason"`
		}
		if req.Body != nil && req.ContentLength != 0 {
			if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}
		bidID := chi.URLParam(req, "bidID")
		status, err := e.Lifecycle.Decline(req.Context(), bidID, body.Reason)
		if err != nil {
			writeStatusError(w, bidID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": bidID, "status": string(status)})
	}
}

func handleStatus(e *env, apply func(*http.Request, string) (model.BidStatus, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		bidID := chi.URLParam(req, "bidID")
		status, err := apply(req, bidID)
		if err != nil {
			writeStatusError(w, bidID, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"id": bidID, "status": string(status)})
	}
}

func writeStatusError(w http.ResponseWriter, bidID string, err error) {
	if lifecycle.IsInputError(err) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	zap.L().Error("bid status change failed", zap.String("bid", bidID), zap.Error(err))
	writeError(w, http.StatusInternalServerError, "status change failed")
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

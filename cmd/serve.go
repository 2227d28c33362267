package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/openqb/qantagen/internal/model"
	"github.com/openqb/qantagen/internal/store"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP conversion API",
	Long: `Starts an HTTP server exposing single-question conversion, answer
phrase resolution, cache statistics, and run history. The resolution
cache is shared across requests, so repeated phrases hit the store
instead of the remote API.`,
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
			Handler:           buildRouter(env),
			ReadHeaderTimeout: 10 * time.Second,
		}

		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("server listening", zap.Int("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}
		return nil
	},
}

type convertRequest struct {
	Text           string `json:"text"`
	AnswerLine     string `json:"answer_line,omitempty"`
	PacketID       string `json:"packet_id,omitempty"`
	QuestionNumber int    `json:"question_number,omitempty"`
	CategoryHint   string `json:"category_hint,omitempty"`
}

type resolveResponse struct {
	Phrase   string                 `json:"phrase"`
	Title    string                 `json:"title,omitempty"`
	Resolved bool                   `json:"resolved"`
	Source   model.ResolutionSource `json:"source"`
}

// buildRouter assembles the API routes. Request validation happens before
// any pipeline or store access so bad requests never touch the backend.
func buildRouter(env *convertEnv) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/v1", func(r chi.Router) {
		r.Post("/convert", handleConvert(env))
		r.Get("/resolve", handleResolve(env))
		r.Get("/cache/stats", handleCacheStats(env))
		r.Get("/runs", handleRuns(env))
	})

	return r
}

func handleConvert(env *convertEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req convertRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if strings.TrimSpace(req.Text) == "" {
			httpError(w, http.StatusBadRequest, "text is required")
			return
		}

		block := model.RawQuestionBlock{
			Text:               req.Text,
			AnswerLine:         req.AnswerLine,
			PacketID:           req.PacketID,
			QuestionNumber:     req.QuestionNumber,
			SourceCategoryHint: req.CategoryHint,
		}
		if block.PacketID == "" {
			block.PacketID = "adhoc"
		}
		if block.QuestionNumber <= 0 {
			block.QuestionNumber = 1
		}

		rec, err := env.Pipeline.ConvertQuestion(r.Context(), block)
		if err != nil {
			zap.L().Error("convert request failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "conversion failed")
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleResolve(env *convertEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		phrase := r.URL.Query().Get("phrase")
		if strings.TrimSpace(phrase) == "" {
			httpError(w, http.StatusBadRequest, "phrase is required")
			return
		}

		res, err := env.Pipeline.ResolvePhrase(r.Context(), phrase)
		if err != nil && !errors.Is(err, model.ErrResolutionTimeout) {
			zap.L().Error("resolve request failed", zap.String("phrase", phrase), zap.Error(err))
			httpError(w, http.StatusInternalServerError, "resolution failed")
			return
		}
		writeJSON(w, http.StatusOK, resolveResponse{
			Phrase:   phrase,
			Title:    res.Title,
			Resolved: res.Resolved(),
			Source:   res.Source,
		})
	}
}

func handleCacheStats(env *convertEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := env.Store.EntryStats(r.Context())
		if err != nil {
			zap.L().Error("cache stats request failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "cache stats failed")
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleRuns(env *convertEnv) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		runs, err := env.Store.ListRuns(r.Context(), store.RunFilter{Limit: 50})
		if err != nil {
			zap.L().Error("runs request failed", zap.Error(err))
			httpError(w, http.StatusInternalServerError, "list runs failed")
			return
		}
		if runs == nil {
			runs = []model.Run{}
		}
		writeJSON(w, http.StatusOK, runs)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("write response", zap.Error(err))
	}
}

func httpError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "listen port (defaults to server.port from config)")
	rootCmd.AddCommand(serveCmd)
}

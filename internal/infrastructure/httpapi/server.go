package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"FlatScanner/internal/domain"
	"FlatScanner/internal/filter"
)

const maxBodyBytes = 1 << 20

// Evaluation is one expose together with the verdict of the preview chain.
type Evaluation struct {
	domain.Expose
	Accepted bool     `json:"accepted"`
	Reasons  []string `json:"reasons"`
	Error    string   `json:"error,omitempty"`
}

// Server exposes the preview chain over HTTP.
type Server struct {
	chain  *filter.Chain
	logger *slog.Logger
	router *mux.Router
}

// NewServer registers the routes. The chain must not deduplicate: previews never mark ids.
func NewServer(chain *filter.Chain, logger *slog.Logger) *Server {
	s := &Server{chain: chain, logger: logger, router: mux.NewRouter()}
	s.router.HandleFunc("/healthz", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/api/v1/exposes/evaluate", s.handleEvaluate).Methods(http.MethodPost)
	return s
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ListenAndServe serves on addr until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if s.logger != nil {
			s.logger.Info("http api listening", "addr", addr)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve http: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http: %w", err)
		}
		return nil
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleEvaluate(w http.ResponseWriter, r *http.Request) {
	var exposes []domain.Expose
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&exposes); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": fmt.Sprintf("decode exposes: %v", err)})
		return
	}

	results := make([]Evaluation, 0, len(exposes))
	for _, expose := range exposes {
		res, err := s.chain.Evaluate(r.Context(), expose)
		eval := Evaluation{Expose: expose, Accepted: res.Accepted, Reasons: res.Reasons}
		if eval.Reasons == nil {
			eval.Reasons = []string{}
		}
		if err != nil {
			eval.Error = err.Error()
			if s.logger != nil {
				s.logger.Warn("preview evaluation failed", "id", expose.ID, "error", err)
			}
		}
		results = append(results, eval)
	}

	writeJSON(w, http.StatusOK, results)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

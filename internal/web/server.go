package web

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/maine/promo_offers_bot/internal/metrics"
	"github.com/maine/promo_offers_bot/internal/offer"
)

// Таймауты HTTP-сервера и остановки
const (
	readHeaderTimeout = 5 * time.Second
	readTimeout       = 10 * time.Second
	writeTimeout      = 30 * time.Second
	idleTimeout       = 60 * time.Second
	shutdownTimeout   = 10 * time.Second
)

// Server отдаёт служебные эндпойнты бота: /healthz, /offers с итогами
// последнего цикла и /metrics в формате Prometheus.
type Server struct {
	addr    string
	started time.Time

	mu         sync.RWMutex
	lastReport *offer.CycleReport
}

// NewServer создаёт сервер на указанном адресе.
func NewServer(addr string) *Server {
	return &Server{
		addr:    addr,
		started: time.Now(),
	}
}

// SetReport сохраняет итоги цикла для инспекции через /offers.
// Подходит как колбэк планировщика.
func (s *Server) SetReport(r offer.CycleReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastReport = &r
}

// Run блокируется до отмены контекста, после чего мягко гасит сервер.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	errc := make(chan error, 1)
	go func() {
		log.Printf("HTTP server listening on %s", s.addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		return err
	}
	log.Println("HTTP server stopped")
	return nil
}

// Handler собирает маршруты и оборачивает их в middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.healthHandler)
	mux.HandleFunc("/offers", s.offersHandler)
	mux.Handle("/metrics", metrics.MetricsHandler())
	return withRequestID(withLogging(mux))
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":     "ok",
		"uptime_sec": time.Since(s.started).Seconds(),
	})
}

func (s *Server) offersHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}

	s.mu.RLock()
	report := s.lastReport
	s.mu.RUnlock()

	if report == nil {
		writeJSONError(w, http.StatusNotFound, "no_report_yet", "no cycle has completed yet")
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(report)
}

type jsonError struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func writeJSONError(w http.ResponseWriter, status int, message, details string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(jsonError{Error: message, Details: details})
}

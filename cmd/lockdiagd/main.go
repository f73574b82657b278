// Command lockdiagd runs a standalone diagnostics HTTP server over a
// fresh TokenLockService and RangeLockService pair, exposing their live
// statistics and stale-lock state for operators. It exists so the lock
// services can be inspected in isolation, independent of whatever host
// process embeds lockcore as a library.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"lockcore/clock"
	"lockcore/config"
	"lockcore/internal/tracer"
	"lockcore/logger"
	"lockcore/rangelock"
	"lockcore/tokenlock"
)

// Version is overridden at build time via -ldflags.
var Version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Errorf("config: %v", err)
		os.Exit(1)
	}
	if lvl, err := logger.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}

	var trc *tracer.Tracer
	if cfg.TraceLocks {
		trc = tracer.New(cfg.TracerBufferSize)
	}

	tokens := tokenlock.NewWithTracer(trc)
	ranges := rangelock.NewWithOptions(clock.Real{}, cfg.FairRangeAcquire, trc, cfg.RangeMapShards)

	srv := &diagServer{cfg: cfg, tokens: tokens, ranges: ranges, tracer: trc}

	router := mux.NewRouter()
	router.Use(requestIDMiddleware)
	router.HandleFunc("/healthz", srv.health).Methods(http.MethodGet)
	router.HandleFunc("/stats", srv.stats).Methods(http.MethodGet)
	router.HandleFunc("/debug/stale-locks", srv.staleLocks).Methods(http.MethodGet)

	httpServer := &http.Server{
		Addr:         cfg.DiagAddr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	if trc != nil {
		stop := make(chan struct{})
		defer close(stop)
		go sweepLoop(trc, cfg.StaleLockThreshold, stop)
	}

	logger.Infof("lockdiagd %s listening on %s", Version, cfg.DiagAddr)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Errorf("diagnostics server failed: %v", err)
			os.Exit(1)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Infof("received signal %v, shutting down", sig)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Errorf("diagnostics server shutdown error: %v", err)
	}
	logger.Infof("lockdiagd shutdown complete")
}

func sweepLoop(trc *tracer.Tracer, threshold time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(threshold / 2)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			trc.SweepStale(threshold)
		case <-stop:
			return
		}
	}
}

type diagServer struct {
	cfg    *config.Config
	tokens *tokenlock.TokenLockService
	ranges *rangelock.RangeLockService
	tracer *tracer.Tracer
}

func (s *diagServer) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *diagServer) stats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"tokenlock": s.tokens.Stats(),
		"rangelock": s.ranges.Stats(),
	})
}

func (s *diagServer) staleLocks(w http.ResponseWriter, r *http.Request) {
	if s.tracer == nil {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enabled": false})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enabled": true,
		"active":  s.tracer.ActiveLocks(),
		"recent":  s.tracer.RecentEvents(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// requestIDMiddleware stamps every response with a correlation id in the
// X-Request-Id header, reusing the request's own X-Request-Id when one is
// present and generating a UUID otherwise.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.New().String()
		}
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r)
	})
}

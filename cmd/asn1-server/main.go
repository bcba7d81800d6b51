package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/davidjspooner/asn1rt/internal/config"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "asn1rt_requests_total",
	Help: "Total number of requests",
}, []string{"code", "method"})

func newRouter(server *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Heartbeat("/health"))
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(func(h http.Handler) http.Handler {
		return promhttp.InstrumentHandlerCounter(requestsTotal, h)
	})
	r.Use(server.withLogger)

	r.Get("/metrics", promhttp.Handler().ServeHTTP)
	r.Get("/api/v1/types", server.Types)
	r.Post("/api/v1/{rule}/encode/{type}", server.Encode)
	r.Post("/api/v1/{rule}/decode/{type}", server.Decode)
	r.Post("/api/v1/{rule}/trace/{type}", server.Trace)
	r.Get("/", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	return r
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	listen := flag.String("listen", "", "address to listen on, overrides the config")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			log.Fatal(err)
		}
	}
	if *listen != "" {
		cfg.Listen = *listen
	}

	server, err := NewServer(cfg, cfg.Logger(os.Stderr))
	if err != nil {
		log.Fatal(err)
	}

	httpServer := &http.Server{
		Addr:        cfg.Listen,
		Handler:     newRouter(server),
		ReadTimeout: cfg.ReadTimeoutDuration(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	server.log.Info("listening", "addr", cfg.Listen)
	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}

package relay

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server assembles the relay: proxy, aggregation endpoints, metrics, and the
// middleware chain.
type Server struct {
	cfg     Config
	logger  *slog.Logger
	cache   *Cache
	limiter *Limiter
	handler http.Handler
	httpSrv *http.Server
}

func NewServer(cfg Config, logger *slog.Logger) (*Server, error) {
	if logger == nil {
		logger = slog.Default()
	}
	cache, err := OpenCache(cfg.CachePath)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:     cfg,
		logger:  logger,
		cache:   cache,
		limiter: NewLimiter(cfg.RateLimit, cfg.RateWindow),
	}

	proxy := NewProxy(cfg, logger)
	handlers := NewHandlers(cfg, cache, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Write([]byte(`{"status":"ok"}`))
	})
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/api/news", handlers.HandleNews)
	mux.HandleFunc("/api/weather", handlers.HandleWeather)
	mux.HandleFunc("/api/search", handlers.HandleSearch)
	mux.Handle(ProxyPrefix+"/", RateLimit(s.limiter, proxy))

	s.handler = RequestID(AccessLog(logger, Recover(logger, CORS(mux))))
	s.httpSrv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler exposes the full middleware chain, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is canceled, then shuts down within the grace period.
func (s *Server) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("relay listening", "addr", s.cfg.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		s.cache.Close()
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	err := s.httpSrv.Shutdown(shutdownCtx)
	s.cache.Close()
	return err
}

// Close releases resources without running the server.
func (s *Server) Close() error {
	return s.cache.Close()
}

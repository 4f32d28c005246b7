package metrics

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/finalitylabs/blocksync/module/component"
	"github.com/finalitylabs/blocksync/module/irrecoverable"
)

const shutdownTimeout = 5 * time.Second

// Server serves the metrics of a gatherer on GET /metrics. It is ready once it
// listens and shuts down when the context it was started with is cancelled.
type Server struct {
	*component.ComponentManager
	log    zerolog.Logger
	addr   string
	server *http.Server
	bound  chan string
}

func NewServer(log zerolog.Logger, addr string, gatherer prometheus.Gatherer) *Server {
	s := &Server{
		log:   log.With().Str("component", "metrics_server").Logger(),
		addr:  addr,
		bound: make(chan string, 1),
	}

	router := mux.NewRouter()
	router.Use(s.logRequests)
	router.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	s.server = &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.ComponentManager = component.NewComponentManagerBuilder().
		AddWorker(s.serve).
		Build()
	return s
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, req)
		s.log.Debug().
			Str("method", req.Method).
			Str("uri", req.RequestURI).
			Str("client_ip", req.RemoteAddr).
			Dur("duration", time.Since(start)).
			Msg("metrics request")
	})
}

// Addr returns the address the server listens on, once it is ready.
func (s *Server) Addr() string {
	addr := <-s.bound
	s.bound <- addr
	return addr
}

func (s *Server) serve(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		ctx.Throw(err)
	}
	s.bound <- listener.Addr().String()
	s.log.Info().Str("address", listener.Addr().String()).Msg("metrics server started")
	ready()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	err = s.server.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.log.Error().Err(err).Msg("metrics server failed")
	}
}

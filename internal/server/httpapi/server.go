package httpapi

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/dmitrijs2005/estatematch/internal/logging"
)

// ShutdownTimeout bounds the drain of in-flight requests.
const ShutdownTimeout = 10 * time.Second

type Server struct {
	address string
	handler http.Handler
	logger  logging.Logger
}

func NewServer(address string, handler http.Handler, l logging.Logger) *Server {
	return &Server{
		address: address,
		handler: handler,
		logger:  l.With("module", "http_server"),
	}
}

// Run serves until ctx is canceled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.serve(ctx, listen)
}

func (s *Server) serve(ctx context.Context, listen net.Listener) error {
	srv := &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	done := make(chan error, 1)
	go func() {
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping HTTP server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		done <- srv.Shutdown(shutdownCtx)
	}()

	s.logger.Info(ctx, "Starting HTTP server", "address", listen.Addr().String())

	if err := srv.Serve(listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return <-done
}

package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/quadmarket/gateway/logging"
)

// Server runs the gateway's HTTP listener with graceful shutdown.
type Server struct {
	addr            string
	shutdownTimeout time.Duration
	baseContext     context.Context
	httpServer      *http.Server
}

// NewServer wraps a handler in a listener bound to addr. baseContext is
// propagated to every request and should carry the process logger.
func NewServer(baseContext context.Context, addr string, shutdownTimeout time.Duration, handler http.Handler) *Server {
	return &Server{
		addr:            addr,
		shutdownTimeout: shutdownTimeout,
		baseContext:     baseContext,
		httpServer: &http.Server{
			Addr:    addr,
			Handler: handler,
			BaseContext: func(net.Listener) context.Context {
				return baseContext
			},
		},
	}
}

// Start serving requests. Blocks until a SIGTERM/SIGINT arrives or Shutdown
// is called.
func (s *Server) Start() error {
	done := make(chan struct{})

	go func() {
		gracefulStop := make(chan os.Signal, 1)
		signal.Notify(gracefulStop, syscall.SIGTERM, syscall.SIGINT)
		sig := <-gracefulStop
		logging.Infow(s.baseContext, "graceful shutdown triggered", "signal", fmt.Sprint(sig))
		s.Shutdown()
		close(done)
	}()

	logging.Infow(s.baseContext, "listening for traffic", "addr", "http://"+s.addr)
	err := s.httpServer.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err // The server wasn't shutdown gracefully.
	}

	<-done
	return nil
}

// Shutdown drains connections within the configured timeout.
func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(s.baseContext, s.shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil {
		logging.Errorw(s.baseContext, "shutdown error", "error", err)
	} else {
		logging.Infow(s.baseContext, "connections drained")
	}
	return err
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/emrgen/mediakit"
	"github.com/emrgen/mediakit/internal/config"
	_ "github.com/joho/godotenv/autoload"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

const shutdownTimeout = 10 * time.Second

// Server is the worker process: it drains the export queue, runs the
// periodic cleanups and serves /metrics and /healthz.
type Server struct {
	engine *mediakit.Engine
	addr   string
}

// NewServer creates a worker serving metrics on addr.
func NewServer(engine *mediakit.Engine, addr string) *Server {
	return &Server{
		engine: engine,
		addr:   addr,
	}
}

// Handler returns the metrics and health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.engine.Registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.engine.Ping(ctx); err != nil {
			logrus.Warnf("health check failed: %v", err)
			http.Error(w, err.Error(), http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	})

	return RequestTimeInterceptor(mux)
}

// Start runs the worker until SIGTERM, SIGINT or SIGTSTP.
func (s *Server) Start() error {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, unix.SIGTERM, unix.SIGINT, unix.SIGTSTP)
	defer signal.Stop(sigs)

	return s.Run(sigs)
}

// Run runs the worker until stop receives a value.
func (s *Server) Run(stop <-chan os.Signal) error {
	l, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}

	executor := s.engine.Jobs()
	if err := executor.Run(); err != nil {
		_ = l.Close()
		return err
	}

	httpServer := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// make sure to wait for the listener to stop before exiting
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		logrus.Infof("serving metrics on %s", l.Addr())
		if err := httpServer.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("error serving metrics: %v", err)
		}
		logrus.Infof("metrics listener stopped")
	}()

	logrus.Infof("Press Ctrl+C to stop the worker")
	<-stop
	// clean Ctrl+C output
	fmt.Println()

	executor.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logrus.Errorf("error stopping metrics listener: %v", err)
	}

	wg.Wait()

	return nil
}

// Start loads the configuration and runs a worker until it is signalled.
func Start() error {
	cnf := config.LoadConfig()

	engine, err := mediakit.New(cnf)
	if err != nil {
		return err
	}
	defer func() {
		if err := engine.Close(); err != nil {
			logrus.Errorf("error closing engine: %v", err)
		}
	}()

	return NewServer(engine, cnf.Metrics.Addr).Start()
}

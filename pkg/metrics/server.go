package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/return2faye/binlogkit/internal/logger"
)

// Registry bundles a dedicated Prometheus registry with the Binlog and
// Receipt metric sets registered against it, plus the /metrics HTTP
// server exposing them. The registry is private rather than the global
// default so binlogctl demo runs never collide with another process's
// metrics.
type Registry struct {
	Prometheus *prometheus.Registry
	Binlog     *Binlog
	Receipt    *Receipt

	srv *http.Server
}

// NewRegistry creates a fresh Prometheus registry and registers the
// Binlog and Receipt metric sets against it.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()
	return &Registry{
		Prometheus: reg,
		Binlog:     NewBinlog(reg),
		Receipt:    NewReceipt(reg),
	}
}

// Serve starts an HTTP server exposing /metrics on addr (e.g. ":9090") in
// the background. Call Shutdown to stop it.
func (r *Registry) Serve(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(r.Prometheus, promhttp.HandlerOpts{}))
	r.srv = &http.Server{Addr: addr, Handler: mux}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics: listen: %w", err)
	}

	go func() {
		logger.Info("metrics: serving", "addr", addr)
		if err := r.srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			logger.Error("metrics: server exited", "error", err)
		}
	}()
	return nil
}

// Shutdown gracefully stops the metrics HTTP server, if running.
func (r *Registry) Shutdown(ctx context.Context) error {
	if r.srv == nil {
		return nil
	}
	return r.srv.Shutdown(ctx)
}

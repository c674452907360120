package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	taskpatterns "github.com/Swind/go-task-patterns"
	"github.com/Swind/go-task-patterns/core"
	promexp "github.com/Swind/go-task-patterns/observability/prometheus"
)

// metricsServer exposes the exporter and the snapshot poller on /metrics.
type metricsServer struct {
	exporter *promexp.MetricsExporter
	poller   *promexp.SnapshotPoller
	listener net.Listener
	srv      *http.Server
}

func newMetricsServer(addr string, pollInterval time.Duration) (*metricsServer, error) {
	reg := prom.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	exporter, err := promexp.NewMetricsExporter("", reg, promexp.ExporterOptions{})
	if err != nil {
		return nil, err
	}
	poller, err := promexp.NewSnapshotPoller(reg, promexp.PollerOptions{Interval: pollInterval})
	if err != nil {
		return nil, err
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	return &metricsServer{
		exporter: exporter,
		poller:   poller,
		listener: ln,
		srv:      &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second},
	}, nil
}

func (m *metricsServer) addr() string { return m.listener.Addr().String() }

// start registers every controller of catalog with the poller and begins serving.
func (m *metricsServer) start(ctx context.Context, catalog *taskpatterns.Catalog) {
	for _, p := range catalog.Patterns() {
		m.poller.AddController(p.Name(), p)
		if owned, ok := p.(interface {
			Owner() *core.SingleThreadTaskRunner
		}); ok {
			m.poller.AddRunner(p.Name()+"-owner", owned.Owner())
		}
	}
	if pool, ok := catalog.Pool().(promexp.PoolSnapshotProvider); ok {
		m.poller.AddPool(catalog.Pool().ID(), pool)
	}
	m.poller.Start(ctx)

	go func() {
		if err := m.srv.Serve(m.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			core.NewSlogLogger(nil).Error("metrics server stopped", core.F("error", err))
		}
	}()
}

func (m *metricsServer) shutdown() {
	m.poller.Stop()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_ = m.srv.Shutdown(ctx)
}

package actor

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/pingcap/errors"
	"github.com/pingcap/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Metrics 是一个 System 的运行时指标，注册在系统私有的 prometheus.Registry 上，
// 多个 System 可以在同一进程中共存。
type Metrics struct {
	registry *prometheus.Registry

	messagesIn     prometheus.Counter
	messagesOut    prometheus.Counter
	dispatched     *prometheus.CounterVec
	syncFailures   prometheus.Counter
	restarts       prometheus.Counter
	remoteFailures *prometheus.CounterVec
	requestLatency prometheus.Histogram
}

func newMetrics(s *System) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		messagesIn: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "mailbox",
			Name:      "messages_in_total",
			Help:      "Total number of mailbox elements popped by actors",
		}),
		messagesOut: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "mailbox",
			Name:      "messages_out_total",
			Help:      "Total number of elements handed to the delivery path",
		}),
		dispatched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "dispatcher",
			Name:      "elements_total",
			Help:      "Dispatched mailbox elements by class and outcome",
		}, []string{"class", "outcome"}),
		syncFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "dispatcher",
			Name:      "sync_failures_total",
			Help:      "Synchronous responses that matched no handler",
		}),
		restarts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "supervisor",
			Name:      "restarts_total",
			Help:      "Children restarted by supervisors",
		}),
		remoteFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "uniactor",
			Subsystem: "remote",
			Name:      "delivery_failures_total",
			Help:      "Failed remote deliveries by peer address",
		}, []string{"peer"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "uniactor",
			Subsystem: "request",
			Name:      "duration_seconds",
			Help:      "Latency of requests issued from outside actors",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 2, 18),
		}),
	}
	backlog := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "uniactor",
		Subsystem: "mailbox",
		Name:      "backlog",
		Help:      "Queued mailbox elements across all local actors",
	}, func() float64 {
		var n int64
		for _, a := range s.registry.Snapshot() {
			n += a.Backlog()
		}
		return float64(n)
	})
	actors := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "uniactor",
		Subsystem: "system",
		Name:      "actors",
		Help:      "Registered local actors",
	}, func() float64 { return float64(s.registry.Len()) })
	m.registry.MustRegister(
		m.messagesIn, m.messagesOut, m.dispatched, m.syncFailures,
		m.restarts, m.remoteFailures, m.requestLatency, backlog, actors,
	)
	return m
}

// Registry 返回指标注册表，可以交给其他 HTTP 服务暴露。
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Metrics 返回系统指标。
func (s *System) Metrics() *Metrics { return s.metrics }

// EnableMetrics 在 addr（默认 :9090）的 /metrics 路径暴露指标，返回实际监听地址。
func (s *System) EnableMetrics(addr string) (string, error) {
	if addr == "" {
		addr = ":9090"
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metricsSrv != nil {
		return s.metricsLis.Addr().String(), nil
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return "", errors.Trace(err)
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{}))
	s.metricsSrv = &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	s.metricsLis = lis
	go func(srv *http.Server) {
		if err := srv.Serve(lis); err != nil && err != http.ErrServerClosed {
			log.Warn("metrics server exited", zap.String("addr", lis.Addr().String()), zap.Error(err))
		}
	}(s.metricsSrv)
	log.Info("metrics server started", zap.String("addr", lis.Addr().String()))
	return lis.Addr().String(), nil
}

func (s *System) stopMetrics() error {
	s.mu.Lock()
	srv := s.metricsSrv
	s.metricsSrv, s.metricsLis = nil, nil
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return errors.Trace(srv.Shutdown(ctx))
}

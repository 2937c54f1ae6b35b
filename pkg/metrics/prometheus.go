package metrics

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// PrometheusConfig holds Prometheus server configuration
type PrometheusConfig struct {
	Enabled bool
	Port    int
	Path    string
}

// PrometheusHandler handles Prometheus metrics HTTP requests
type PrometheusHandler struct {
	collector *Collector
}

// NewPrometheusHandler creates a new Prometheus handler
func NewPrometheusHandler(collector *Collector) *PrometheusHandler {
	return &PrometheusHandler{
		collector: collector,
	}
}

type family struct {
	name, help, kind string
	value            func(s InstanceStats) uint64
}

var families = []family{
	{"modem_commands_total", "AT command lines handled", "counter", func(s InstanceStats) uint64 { return s.Commands }},
	{"modem_commands_unsupported_total", "AT command lines answered with ERROR: UNSUPPORTED", "counter", func(s InstanceStats) uint64 { return s.Unsupported }},
	{"modem_calls_outbound_total", "Calls dialed by the guest", "counter", func(s InstanceStats) uint64 { return s.CallsOutbound }},
	{"modem_calls_inbound_total", "Calls offered to the guest", "counter", func(s InstanceStats) uint64 { return s.CallsInbound }},
	{"modem_calls_active", "Calls currently in the call table", "gauge", func(s InstanceStats) uint64 { return uint64(s.ActiveCalls) }},
	{"modem_data_contexts_active", "Active PDP contexts", "gauge", func(s InstanceStats) uint64 { return uint64(s.ActiveContexts) }},
	{"modem_sim_commands_total", "SIM commands executed", "counter", func(s InstanceStats) uint64 { return s.SIMCommands }},
	{"modem_sim_failures_total", "SIM commands with an error status word", "counter", func(s InstanceStats) uint64 { return s.SIMFailures }},
	{"modem_sms_sent_total", "SMS submitted by the guest", "counter", func(s InstanceStats) uint64 { return s.SMSSent }},
	{"modem_sms_received_total", "SMS delivered to the guest", "counter", func(s InstanceStats) uint64 { return s.SMSReceived }},
}

// ServeHTTP handles HTTP requests for metrics
func (h *PrometheusHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")

	ids := h.collector.Instances()
	stats := make([]InstanceStats, len(ids))
	for i, id := range ids {
		stats[i] = h.collector.Instance(id)
	}

	var output strings.Builder
	for _, f := range families {
		fmt.Fprintf(&output, "# HELP %s %s\n", f.name, f.help)
		fmt.Fprintf(&output, "# TYPE %s %s\n", f.name, f.kind)
		for i, id := range ids {
			fmt.Fprintf(&output, "%s{instance=\"%d\"} %d\n", f.name, id, f.value(stats[i]))
		}
	}

	output.WriteString("# HELP modem_calls_ended_total Released calls by cause\n")
	output.WriteString("# TYPE modem_calls_ended_total counter\n")
	for i, id := range ids {
		causes := make([]int, 0, len(stats[i].CallsEnded))
		for cause := range stats[i].CallsEnded {
			causes = append(causes, cause)
		}
		sort.Ints(causes)
		for _, cause := range causes {
			fmt.Fprintf(&output, "modem_calls_ended_total{instance=\"%d\",cause=\"%d\"} %d\n", id, cause, stats[i].CallsEnded[cause])
		}
	}

	if free := h.collector.FreeNets(); free >= 0 {
		output.WriteString("# HELP modem_datanet_free Data network bindings not checked out\n")
		output.WriteString("# TYPE modem_datanet_free gauge\n")
		fmt.Fprintf(&output, "modem_datanet_free %d\n", free)
	}

	_, _ = w.Write([]byte(output.String()))
}

// PrometheusServer is an HTTP server for Prometheus metrics
type PrometheusServer struct {
	config    PrometheusConfig
	collector *Collector
	log       *logger.Logger
	server    *http.Server
	addr      net.Addr
	// started is closed once the listener is bound
	started chan struct{}
}

// NewPrometheusServer creates a new Prometheus metrics server
func NewPrometheusServer(config PrometheusConfig, collector *Collector, log *logger.Logger) *PrometheusServer {
	if log == nil {
		log = logger.New(logger.Config{Level: "info", Format: "text"})
	}
	if config.Path == "" {
		config.Path = "/metrics"
	}

	return &PrometheusServer{
		config:    config,
		collector: collector,
		log:       log.WithComponent("metrics"),
		started:   make(chan struct{}),
	}
}

// Start starts the Prometheus metrics server
func (s *PrometheusServer) Start(ctx context.Context) error {
	if !s.config.Enabled {
		s.log.Info("Prometheus metrics server disabled")
		return nil
	}

	handler := NewPrometheusHandler(s.collector)
	mux := http.NewServeMux()
	mux.Handle(s.config.Path, handler)

	// Use a listener to get the actual port (useful for testing with port 0)
	addr := fmt.Sprintf(":%d", s.config.Port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.addr = listener.Addr()
	close(s.started)

	s.server = &http.Server{
		Handler:     mux,
		ReadTimeout: 15 * time.Second,
	}

	s.log.Info("Starting Prometheus metrics server",
		logger.Int("port", listener.Addr().(*net.TCPAddr).Port),
		logger.String("path", s.config.Path))

	errChan := make(chan error, 1)
	go func() {
		if err := s.server.Serve(listener); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.log.Info("Shutting down Prometheus metrics server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("metrics server shutdown error: %w", err)
		}
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// WaitStarted blocks until the listener is bound or the context is canceled.
func (s *PrometheusServer) WaitStarted(ctx context.Context) error {
	select {
	case <-s.started:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Addr returns the bound address. It should be called after WaitStarted.
func (s *PrometheusServer) Addr() net.Addr { return s.addr }

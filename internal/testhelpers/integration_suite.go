package testhelpers

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/dbehnke/modem-emu/pkg/config"
	"github.com/dbehnke/modem-emu/pkg/datanet"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/registry"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/transport"
)

// IntegrationSuite runs a registry with one TCP AT port per instance.
type IntegrationSuite struct {
	T        *testing.T
	Config   *config.Config
	Logger   *logger.Logger
	Ctx      context.Context
	Cancel   context.CancelFunc
	Link     *FakeLink
	Pool     *datanet.Pool
	Registry *registry.Registry
	Guests   []*GuestClient
	// Observer, when set before StartEmulator, sees every modem event
	Observer modem.Observer

	sched   *schedule.TimerScheduler
	servers []*transport.TCPServer
	done    chan struct{}
}

// NewIntegrationSuite creates a new integration test suite
func NewIntegrationSuite(t *testing.T) *IntegrationSuite {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)

	log := logger.New(logger.Config{
		Level:  "debug",
		Format: "text",
	})

	return &IntegrationSuite{
		T:      t,
		Config: CreateDefaultConfig(),
		Logger: log,
		Ctx:    ctx,
		Cancel: cancel,
		Link:   NewFakeLink(),
	}
}

// StartEmulator builds the registry from s.Config and serves every
// instance on an ephemeral TCP port.
func (s *IntegrationSuite) StartEmulator() {
	s.T.Helper()
	cfg := s.Config

	pool, err := datanet.NewPool(datanet.Options{
		Prefix:  cfg.DataNet.Prefix,
		Count:   cfg.DataNet.Count,
		Subnet:  cfg.DataNet.Subnet,
		Gateway: cfg.DataNet.Gateway,
		DNS:     cfg.DataNet.DNS,
	})
	if err != nil {
		s.T.Fatalf("NewPool: %v", err)
	}
	s.Pool = pool
	s.sched = schedule.NewTimerScheduler()

	reg, err := registry.New(registry.Options{
		BasePort:    cfg.Emulator.BasePort,
		Instances:   cfg.Emulator.Instances,
		TimeUpdates: cfg.Emulator.TimeUpdates,
		Scheduler:   s.sched,
		Pool:        pool,
		Link:        s.Link,
		OpenStore:   registry.MemoryStores(s.Logger),
		Observer:    s.Observer,
		Logger:      s.Logger,
	})
	if err != nil {
		s.T.Fatalf("registry.New: %v", err)
	}
	s.Registry = reg

	s.done = make(chan struct{})
	pending := 0
	errs := make(chan error, len(reg.Instances()))
	for _, inst := range reg.Instances() {
		srv := transport.NewTCPServer("127.0.0.1", 0, inst.ID, inst, s.Logger)
		s.servers = append(s.servers, srv)
		pending++
		go func() { errs <- srv.Start(s.Ctx) }()

		waitCtx, cancel := context.WithTimeout(s.Ctx, 2*time.Second)
		err := srv.WaitStarted(waitCtx)
		cancel()
		if err != nil {
			s.T.Fatalf("instance %d did not start: %v", inst.ID, err)
		}
	}
	go func() {
		for i := 0; i < pending; i++ {
			<-errs
		}
		close(s.done)
	}()
}

// Addr returns the AT port address of an instance.
func (s *IntegrationSuite) Addr(instance int) string {
	s.T.Helper()
	if instance < 0 || instance >= len(s.servers) {
		s.T.Fatalf("no server for instance %d", instance)
	}
	addr, err := s.servers[instance].Addr()
	if err != nil {
		s.T.Fatalf("Addr: %v", err)
	}
	return addr.String()
}

// DialGuest connects a guest client to an instance and adds it to the suite.
func (s *IntegrationSuite) DialGuest(instance int) *GuestClient {
	s.T.Helper()
	g, err := DialGuest(s.Addr(instance))
	if err != nil {
		s.T.Fatalf("dial instance %d: %v", instance, err)
	}
	s.Guests = append(s.Guests, g)
	return g
}

// GetFreePort gets a free port for testing
func (s *IntegrationSuite) GetFreePort() int {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		s.T.Fatal(err)
	}

	listener, err := net.ListenTCP("tcp", addr)
	if err != nil {
		s.T.Fatal(err)
	}
	defer func() { _ = listener.Close() }()

	return listener.Addr().(*net.TCPAddr).Port
}

// Cleanup cleans up resources
func (s *IntegrationSuite) Cleanup() {
	for _, g := range s.Guests {
		_ = g.Close()
	}

	s.Cancel()
	if s.done != nil {
		select {
		case <-s.done:
		case <-time.After(2 * time.Second):
			s.T.Logf("TCP servers did not stop in time")
		}
	}
	if s.Registry != nil {
		s.Registry.Close()
	}
	if s.sched != nil {
		s.sched.StopAll()
	}
}

// WaitFor waits for a condition to be true
func (s *IntegrationSuite) WaitFor(condition func() bool, timeout time.Duration, message string) bool {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(10 * time.Millisecond)
	}
	s.T.Logf("WaitFor timeout: %s", message)
	return false
}

// AssertEventually asserts that a condition becomes true within timeout
func (s *IntegrationSuite) AssertEventually(condition func() bool, timeout time.Duration, message string) {
	if !s.WaitFor(condition, timeout, message) {
		s.T.Errorf("Assertion failed: %s", message)
	}
}

// CreateDefaultConfig creates a default test configuration
func CreateDefaultConfig() *config.Config {
	return &config.Config{
		Emulator: config.EmulatorConfig{
			BasePort:  5554,
			Instances: 2,
		},
		Storage: config.StorageConfig{
			Backend: "file",
		},
		Transport: config.TransportConfig{
			TCP: config.TCPConfig{Enabled: true, Host: "127.0.0.1"},
		},
		DataNet: config.DataNetConfig{
			Prefix:  "rmnet.",
			Count:   4,
			Subnet:  "10.0.2.0/24",
			Gateway: "10.0.2.2",
			DNS:     []string{"10.0.2.3"},
			Link:    "log",
		},
		Web: config.WebConfig{
			Enabled: false,
		},
		Logging: config.LoggingConfig{Level: "debug", Format: "text"},
		Metrics: config.MetricsConfig{
			Enabled: false,
		},
	}
}

// Number returns the phone number of an instance in the default config.
func (s *IntegrationSuite) Number(instance int) string {
	inst, err := s.Registry.Get(instance)
	if err != nil {
		s.T.Fatalf("Get(%d): %v", instance, err)
	}
	return inst.Modem.Number()
}

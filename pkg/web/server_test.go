package web

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dbehnke/modem-emu/pkg/config"
)

func TestServer_New(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    8080,
	}

	srv := NewServer(cfg, newTestRegistry(t), NewWebSocketHub(testLogger()), testLogger())
	if srv == nil {
		t.Fatal("NewServer returned nil")
	}
	if srv.config.Port != 8080 {
		t.Errorf("Expected port 8080, got %d", srv.config.Port)
	}
}

func TestServer_Disabled(t *testing.T) {
	srv := NewServer(config.WebConfig{}, newTestRegistry(t), NewWebSocketHub(testLogger()), testLogger())
	if err := srv.Start(context.Background()); err != nil {
		t.Errorf("disabled server must return nil, got %v", err)
	}
}

func TestServer_StartStop(t *testing.T) {
	cfg := config.WebConfig{
		Enabled: true,
		Host:    "localhost",
		Port:    0, // Use any available port
	}
	srv := NewServer(cfg, newTestRegistry(t), NewWebSocketHub(testLogger()), testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		errChan <- srv.Start(ctx)
	}()
	if err := srv.WaitStarted(ctx); err != nil {
		t.Fatalf("WaitStarted: %v", err)
	}

	for _, path := range []string{"/health", "/api/status", "/api/modems/1"} {
		resp, err := http.Get("http://" + srv.GetAddr() + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		_ = resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s: expected status 200, got %d", path, resp.StatusCode)
		}
	}

	cancel()
	err := <-errChan
	if err != nil && err != context.Canceled && err != http.ErrServerClosed {
		t.Errorf("Unexpected error: %v", err)
	}
}

func TestServer_GuestTransportMounted(t *testing.T) {
	srv := NewServer(config.WebConfig{Enabled: true}, newTestRegistry(t), NewWebSocketHub(testLogger()), testLogger())
	h := srv.Handler()
	expectStatus(t, do(t, h, http.MethodGet, "/modems/0/at", ""), http.StatusNotFound)

	called := false
	srv.WithGuestTransport(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = r.PathValue("id") == "0"
		w.WriteHeader(http.StatusTeapot)
	}))
	expectStatus(t, do(t, srv.Handler(), http.MethodGet, "/modems/0/at", ""), http.StatusTeapot)
	if !called {
		t.Error("guest transport did not see the instance id")
	}
}

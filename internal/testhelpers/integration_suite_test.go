//go:build integration
// +build integration

package testhelpers

import (
	"testing"
	"time"
)

// TestIntegrationSuite_Basic tests basic integration suite functionality
func TestIntegrationSuite_Basic(t *testing.T) {
	suite := NewIntegrationSuite(t)
	defer suite.Cleanup()

	if suite.Logger == nil {
		t.Error("Expected logger to be initialized")
	}
	if suite.Ctx == nil {
		t.Error("Expected context to be initialized")
	}
	if suite.Config.Emulator.Instances != 2 {
		t.Errorf("Expected 2 instances in the default config, got %d", suite.Config.Emulator.Instances)
	}
}

// TestIntegrationSuite_Guest tests a guest client against a running emulator
func TestIntegrationSuite_Guest(t *testing.T) {
	suite := NewIntegrationSuite(t)
	defer suite.Cleanup()
	suite.StartEmulator()

	guest := suite.DialGuest(0)
	reply, err := guest.Command("AT+CGSN", 2*time.Second)
	if err != nil {
		t.Fatalf("AT+CGSN: %v", err)
	}
	if len(reply) != 2 || reply[0] != "000000000000000" || reply[1] != "OK" {
		t.Fatalf("unexpected reply %q", reply)
	}
	if len(suite.Guests) != 1 {
		t.Errorf("Expected 1 guest, got %d", len(suite.Guests))
	}
}

// TestIntegrationSuite_WaitFor tests the WaitFor helper
func TestIntegrationSuite_WaitFor(t *testing.T) {
	suite := NewIntegrationSuite(t)
	defer suite.Cleanup()

	counter := 0
	condition := func() bool {
		counter++
		return counter >= 5
	}

	if !suite.WaitFor(condition, 1*time.Second, "counter >= 5") {
		t.Error("Expected condition to be met")
	}
	if suite.WaitFor(func() bool { return false }, 50*time.Millisecond, "never") {
		t.Error("Expected timeout")
	}
}

func TestFakeLink(t *testing.T) {
	link := NewFakeLink()
	_ = link.SetLink("rmnet.0", true)
	_ = link.SetLink("rmnet.0", false)
	if link.Up("rmnet.0") {
		t.Error("Expected rmnet.0 down")
	}
	if got := link.Changes(); len(got) != 2 || !got[0].Up {
		t.Errorf("unexpected changes %+v", got)
	}
}

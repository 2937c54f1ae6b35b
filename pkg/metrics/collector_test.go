package metrics

import (
	"sync"
	"testing"

	"github.com/dbehnke/modem-emu/pkg/modem"
)

var _ modem.Observer = (*Collector)(nil)

// TestNewCollector tests creating a new metrics collector
func TestNewCollector(t *testing.T) {
	collector := NewCollector()
	if collector == nil {
		t.Fatal("Expected non-nil collector")
	}
	if got := collector.Instances(); len(got) != 0 {
		t.Fatalf("Expected no instances, got %v", got)
	}
	if got := collector.FreeNets(); got != -1 {
		t.Fatalf("Expected -1 free nets without a pool, got %d", got)
	}
}

func TestCollector_Commands(t *testing.T) {
	c := NewCollector()
	c.CommandHandled(0, true)
	c.CommandHandled(0, true)
	c.CommandHandled(0, false)
	c.CommandHandled(1, true)

	s := c.Instance(0)
	if s.Commands != 3 || s.Unsupported != 1 {
		t.Fatalf("instance 0: commands=%d unsupported=%d", s.Commands, s.Unsupported)
	}
	if got := c.Instance(1).Commands; got != 1 {
		t.Fatalf("instance 1: commands=%d", got)
	}
	ids := c.Instances()
	if len(ids) != 2 || ids[0] != 0 || ids[1] != 1 {
		t.Fatalf("Instances() = %v", ids)
	}
}

func TestCollector_Calls(t *testing.T) {
	c := NewCollector()
	c.CallStarted(0, false)
	c.CallStarted(0, true)
	c.CallEnded(0, 16)
	c.CallEnded(0, 17)
	c.CallEnded(0, 16) // more ends than starts must not underflow

	s := c.Instance(0)
	if s.CallsOutbound != 1 || s.CallsInbound != 1 {
		t.Fatalf("outbound=%d inbound=%d", s.CallsOutbound, s.CallsInbound)
	}
	if s.ActiveCalls != 0 {
		t.Fatalf("ActiveCalls = %d", s.ActiveCalls)
	}
	if s.CallsEnded[16] != 2 || s.CallsEnded[17] != 1 {
		t.Fatalf("CallsEnded = %v", s.CallsEnded)
	}

	// the returned map is a copy
	s.CallsEnded[16] = 99
	if c.Instance(0).CallsEnded[16] != 2 {
		t.Fatal("Instance returned a shared map")
	}
}

func TestCollector_DataSIMAndSMS(t *testing.T) {
	c := NewCollector()
	c.DataContextChanged(2, true)
	c.DataContextChanged(2, true)
	c.DataContextChanged(2, false)
	c.DataContextChanged(3, false)
	c.SIMCommand(2, true)
	c.SIMCommand(2, false)
	c.SMSSent(2)
	c.SMSReceived(2)
	c.SMSReceived(2)

	s := c.Instance(2)
	if s.ActiveContexts != 1 {
		t.Fatalf("ActiveContexts = %d", s.ActiveContexts)
	}
	if c.Instance(3).ActiveContexts != 0 {
		t.Fatal("deactivate without activate went negative")
	}
	if s.SIMCommands != 2 || s.SIMFailures != 1 {
		t.Fatalf("sim=%d failures=%d", s.SIMCommands, s.SIMFailures)
	}
	if s.SMSSent != 1 || s.SMSReceived != 2 {
		t.Fatalf("sent=%d received=%d", s.SMSSent, s.SMSReceived)
	}
}

func TestCollector_Reset(t *testing.T) {
	c := NewCollector()
	c.CommandHandled(0, true)
	c.Reset()
	if len(c.Instances()) != 0 {
		t.Fatal("Expected no instances after reset")
	}
	if c.Instance(0).Commands != 0 {
		t.Fatal("Expected zero commands after reset")
	}
}

func TestCollector_FreeNets(t *testing.T) {
	free := 3
	c := NewCollector().WithFreeNets(func() int { return free })
	if got := c.FreeNets(); got != 3 {
		t.Fatalf("FreeNets() = %d", got)
	}
	free = 1
	if got := c.FreeNets(); got != 1 {
		t.Fatalf("FreeNets() = %d", got)
	}
}

// TestCollector_Concurrent tests concurrent access
func TestCollector_Concurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				c.CommandHandled(id%2, true)
				c.SMSSent(id % 2)
				_ = c.Instance(id % 2)
			}
		}(i)
	}
	wg.Wait()

	total := c.Instance(0).Commands + c.Instance(1).Commands
	if total != 800 {
		t.Fatalf("Expected 800 commands, got %d", total)
	}
}

package metrics

import (
	"sort"
	"sync"
)

// InstanceStats are the counters of one modem instance.
type InstanceStats struct {
	Commands       uint64
	Unsupported    uint64
	CallsOutbound  uint64
	CallsInbound   uint64
	CallsEnded     map[int]uint64 // by +CEER cause
	ActiveCalls    int
	ActiveContexts int
	SIMCommands    uint64
	SIMFailures    uint64
	SMSSent        uint64
	SMSReceived    uint64
}

// Collector counts modem activity. It implements modem.Observer.
type Collector struct {
	mu        sync.RWMutex
	instances map[int]*InstanceStats
	freeNets  func() int
}

// NewCollector creates a new metrics collector
func NewCollector() *Collector {
	return &Collector{instances: make(map[int]*InstanceStats)}
}

// WithFreeNets reports the free data network count through fn.
func (c *Collector) WithFreeNets(fn func() int) *Collector {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.freeNets = fn
	return c
}

// stats must be called with the lock held.
func (c *Collector) stats(instance int) *InstanceStats {
	s, ok := c.instances[instance]
	if !ok {
		s = &InstanceStats{CallsEnded: make(map[int]uint64)}
		c.instances[instance] = s
	}
	return s
}

// CommandHandled records one AT command line.
func (c *Collector) CommandHandled(instance int, supported bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(instance)
	s.Commands++
	if !supported {
		s.Unsupported++
	}
}

// CallStarted records a new call.
func (c *Collector) CallStarted(instance int, inbound bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(instance)
	if inbound {
		s.CallsInbound++
	} else {
		s.CallsOutbound++
	}
	s.ActiveCalls++
}

// CallEnded records a released call.
func (c *Collector) CallEnded(instance int, cause int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(instance)
	s.CallsEnded[cause]++
	if s.ActiveCalls > 0 {
		s.ActiveCalls--
	}
}

// DataContextChanged records a PDP context going up or down.
func (c *Collector) DataContextChanged(instance int, active bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(instance)
	if active {
		s.ActiveContexts++
	} else if s.ActiveContexts > 0 {
		s.ActiveContexts--
	}
}

// SIMCommand records a +CRSM exchange.
func (c *Collector) SIMCommand(instance int, ok bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := c.stats(instance)
	s.SIMCommands++
	if !ok {
		s.SIMFailures++
	}
}

// SMSSent records an SMS submitted by the guest.
func (c *Collector) SMSSent(instance int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats(instance).SMSSent++
}

// SMSReceived records an SMS delivered to the guest.
func (c *Collector) SMSReceived(instance int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats(instance).SMSReceived++
}

// Reset resets all metrics (useful for testing)
func (c *Collector) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.instances = make(map[int]*InstanceStats)
}

// Instance returns a copy of the counters of one instance.
func (c *Collector) Instance(instance int) InstanceStats {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s, ok := c.instances[instance]
	if !ok {
		return InstanceStats{CallsEnded: map[int]uint64{}}
	}
	out := *s
	out.CallsEnded = make(map[int]uint64, len(s.CallsEnded))
	for k, v := range s.CallsEnded {
		out.CallsEnded[k] = v
	}
	return out
}

// Instances returns the indexes with recorded activity, sorted.
func (c *Collector) Instances() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	ids := make([]int, 0, len(c.instances))
	for id := range c.instances {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

// FreeNets returns the free data network count, or -1 when unknown.
func (c *Collector) FreeNets() int {
	c.mu.RLock()
	fn := c.freeNets
	c.mu.RUnlock()
	if fn == nil {
		return -1
	}
	return fn()
}

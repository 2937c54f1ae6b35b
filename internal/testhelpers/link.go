package testhelpers

import "sync"

// LinkChange is one SetLink call seen by a FakeLink.
type LinkChange struct {
	Name string
	Up   bool
}

// FakeLink is a datanet.LinkController that records every change.
type FakeLink struct {
	mu      sync.RWMutex
	changes []LinkChange
	state   map[string]bool
	fail    error
}

// NewFakeLink creates a FakeLink with every interface down.
func NewFakeLink() *FakeLink {
	return &FakeLink{state: make(map[string]bool)}
}

func (l *FakeLink) SetLink(name string, up bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return l.fail
	}
	l.changes = append(l.changes, LinkChange{Name: name, Up: up})
	l.state[name] = up
	return nil
}

// FailWith makes every later SetLink return err. nil restores success.
func (l *FakeLink) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

// Up reports the last state set for name.
func (l *FakeLink) Up(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state[name]
}

// Changes returns every recorded change in order.
func (l *FakeLink) Changes() []LinkChange {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]LinkChange(nil), l.changes...)
}

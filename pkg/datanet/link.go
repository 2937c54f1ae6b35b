package datanet

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"time"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// LinkController brings a host interface up or down.
type LinkController interface {
	SetLink(name string, up bool) error
}

// LogLink records link state and logs transitions; it touches no real
// interface.
type LogLink struct {
	mu    sync.Mutex
	state map[string]bool
	log   *logger.Logger
}

// NewLogLink creates a LogLink.
func NewLogLink(log *logger.Logger) *LogLink {
	return &LogLink{state: make(map[string]bool), log: log.WithComponent("link")}
}

func (l *LogLink) SetLink(name string, up bool) error {
	l.mu.Lock()
	l.state[name] = up
	l.mu.Unlock()
	l.log.Info("Link state changed", logger.String("interface", name), logger.String("state", linkWord(up)))
	return nil
}

// Up reports the last state set for name.
func (l *LogLink) Up(name string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state[name]
}

// ExecLink runs "ip link set <name> up|down".
type ExecLink struct {
	Command string
	Timeout time.Duration
	log     *logger.Logger
}

// NewExecLink creates an ExecLink using the ip binary from PATH.
func NewExecLink(log *logger.Logger) *ExecLink {
	return &ExecLink{Command: "ip", Timeout: 5 * time.Second, log: log.WithComponent("link")}
}

func (l *ExecLink) SetLink(name string, up bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), l.Timeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, l.Command, "link", "set", name, linkWord(up)).CombinedOutput()
	if err != nil {
		l.log.Warn("Link command failed",
			logger.String("interface", name),
			logger.String("output", string(out)),
			logger.Error(err))
		return fmt.Errorf("set %s %s: %w", name, linkWord(up), err)
	}
	l.log.Info("Link state changed", logger.String("interface", name), logger.String("state", linkWord(up)))
	return nil
}

// NewLink picks the controller named by kind ("log" or "exec").
func NewLink(kind string, log *logger.Logger) (LinkController, error) {
	switch kind {
	case "", "log":
		return NewLogLink(log), nil
	case "exec":
		return NewExecLink(log), nil
	default:
		return nil, fmt.Errorf("unknown link controller %q", kind)
	}
}

// Reset brings every binding of the pool down. Data connections start down.
func Reset(p *Pool, link LinkController) error {
	var firstErr error
	for _, n := range p.Nets() {
		if err := link.SetLink(n.Name, false); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func linkWord(up bool) string {
	if up {
		return "up"
	}
	return "down"
}

package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/modem-emu/pkg/at"
)

// GuestClient plays the guest telephony stack on an AT port. Replies are
// collected per command; every other line is queued as unsolicited.
type GuestClient struct {
	conn  net.Conn
	lines chan string

	mu      sync.Mutex
	unsol   []string
	pending bool
	// the line after +CMT or +CBM carries the PDU
	pduNext bool
	closed  bool
}

// DialGuest connects to an AT port.
func DialGuest(addr string) (*GuestClient, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, err
	}
	g := &GuestClient{conn: conn, lines: make(chan string, 256)}
	go g.readLoop()
	return g, nil
}

func (g *GuestClient) readLoop() {
	defer close(g.lines)
	r := bufio.NewReader(g.conn)
	var cur strings.Builder
	for {
		b, err := r.ReadByte()
		if err != nil {
			return
		}
		switch b {
		case '\r', '\n':
			if cur.Len() > 0 {
				g.route(cur.String())
				cur.Reset()
			}
		default:
			cur.WriteByte(b)
			if cur.String() == at.Prompt {
				g.route(cur.String())
				cur.Reset()
			}
		}
	}
}

// route hands lines to a waiting Command, or queues them as unsolicited.
func (g *GuestClient) route(line string) {
	g.mu.Lock()
	if !g.pending && (g.pduNext || at.Classify(line) == at.TypeURC) {
		g.unsol = append(g.unsol, line)
		g.pduNext = !g.pduNext && (strings.HasPrefix(line, at.UrcNewSMS) || strings.HasPrefix(line, at.UrcBroadcast))
		g.mu.Unlock()
		return
	}
	g.mu.Unlock()
	g.lines <- line
}

// Command sends one AT line and returns the reply lines up to and
// including the final result or SMS prompt.
func (g *GuestClient) Command(line string, timeout time.Duration) ([]string, error) {
	g.mu.Lock()
	g.pending = true
	g.mu.Unlock()
	defer func() {
		g.mu.Lock()
		g.pending = false
		g.mu.Unlock()
	}()

	if _, err := g.conn.Write([]byte(line + at.CR)); err != nil {
		return nil, err
	}

	var reply []string
	deadline := time.After(timeout)
	for {
		select {
		case l, ok := <-g.lines:
			if !ok {
				return reply, fmt.Errorf("connection closed after %q", reply)
			}
			reply = append(reply, l)
			if t := at.Classify(l); t == at.TypeFinal || t == at.TypePrompt {
				return reply, nil
			}
		case <-deadline:
			return reply, fmt.Errorf("timeout waiting for reply to %q, got %q", line, reply)
		}
	}
}

// Next returns the next line that was not queued as unsolicited, such as
// a reply to a command sent on another connection.
func (g *GuestClient) Next(timeout time.Duration) (string, error) {
	select {
	case l, ok := <-g.lines:
		if !ok {
			return "", fmt.Errorf("connection closed")
		}
		return l, nil
	case <-time.After(timeout):
		return "", fmt.Errorf("timeout waiting for a line")
	}
}

// SendPDU writes an SMS PDU terminated by Ctrl-Z and returns the reply.
func (g *GuestClient) SendPDU(pdu string, timeout time.Duration) ([]string, error) {
	return g.Command(pdu+string(rune(at.CtrlZ)), timeout)
}

// Unsolicited returns the notifications received so far.
func (g *GuestClient) Unsolicited() []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]string(nil), g.unsol...)
}

// WaitUnsolicited waits for a notification starting with prefix.
func (g *GuestClient) WaitUnsolicited(prefix string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		for _, l := range g.Unsolicited() {
			if strings.HasPrefix(l, prefix) {
				return l, true
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	return "", false
}

// Close closes the connection
func (g *GuestClient) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil
	}
	g.closed = true
	return g.conn.Close()
}

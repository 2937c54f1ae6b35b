package modem

import (
	"errors"
	"fmt"
	"net/netip"
	"strconv"
	"strings"

	"github.com/dbehnke/modem-emu/pkg/datanet"
	"github.com/dbehnke/modem-emu/pkg/logger"
)

// dataContext is one PDP context slot. id is 0 while undefined.
type dataContext struct {
	id     int
	active bool
	apn    string
	addr   netip.Addr
	net    *datanet.Net
}

// DataContext is a console view of a defined PDP context.
type DataContext struct {
	ID      int    `json:"id"`
	Active  bool   `json:"active"`
	APN     string `json:"apn"`
	Address string `json:"address,omitempty"`
	Net     string `json:"net,omitempty"`
}

var errBadPDPDefinition = errors.New("bad PDP context definition")

// parsePDPDefinition reads cid[,"IP","apn"[,"addr"]]. A bare cid returns
// an empty APN, meaning undefine.
func parsePDPDefinition(args string) (cid int, apn string, addr netip.Addr, err error) {
	cidText, rest, hasRest := strings.Cut(args, ",")
	cid, err = strconv.Atoi(cidText)
	if err != nil || cid <= 0 || cid > MaxDataContexts {
		return 0, "", addr, errBadPDPDefinition
	}
	if !hasRest {
		return cid, "", addr, nil
	}

	rest, ok := strings.CutPrefix(rest, `"IP",`)
	if !ok {
		return 0, "", addr, errBadPDPDefinition
	}
	apn, rest, ok = cutQuoted(rest)
	if !ok || apn == "" || len(apn) > MaxAPNLen {
		return 0, "", addr, errBadPDPDefinition
	}

	if strings.HasPrefix(rest, `,"`) {
		var text string
		text, _, ok = cutQuoted(rest[1:])
		if !ok || text == "" {
			return 0, "", addr, errBadPDPDefinition
		}
		// an address that does not parse is kept as unset
		if a, perr := netip.ParseAddr(text); perr == nil && a.Is4() {
			addr = a
		}
	}
	return cid, apn, addr, nil
}

// cutQuoted splits `"value"rest` into value and rest.
func cutQuoted(s string) (value, rest string, ok bool) {
	if !strings.HasPrefix(s, `"`) {
		return "", s, false
	}
	end := strings.IndexByte(s[1:], '"')
	if end < 0 {
		return "", s, false
	}
	return s[1 : end+1], s[end+2:], true
}

func (m *Modem) handleDefinePDPContext(cmd string) string {
	args := strings.TrimPrefix(cmd, "+CGDCONT=")
	if strings.HasPrefix(args, "?") {
		return fmt.Sprintf(`+CGDCONT: (1-%d),"IP",,,(0-2),(0-4)`, MaxDataContexts)
	}

	cid, apn, addr, err := parsePDPDefinition(args)
	if err != nil {
		return "ERROR: BAD COMMAND"
	}
	ctx := &m.contexts[cid-1]
	if ctx.active {
		return "+CME ERROR: 3"
	}
	if apn == "" {
		*ctx = dataContext{}
		return "OK"
	}
	*ctx = dataContext{id: cid, apn: apn, addr: addr}
	return "OK"
}

func (m *Modem) handleQueryPDPContext(string) string {
	var b strings.Builder
	for _, ctx := range m.contexts {
		if ctx.id == 0 {
			continue
		}
		addr := ""
		if ctx.addr.IsValid() {
			addr = ctx.addr.String()
		}
		fmt.Fprintf(&b, "+CGDCONT: %d,\"IP\",\"%s\",\"%s\",0,0\r\n", ctx.id, ctx.apn, addr)
	}
	return b.String()
}

func (m *Modem) handleListPDPContexts(string) string {
	var b strings.Builder
	for _, ctx := range m.contexts {
		if ctx.id == 0 {
			continue
		}
		fmt.Fprintf(&b, "+CGACT: %d,%d\r\n", ctx.id, boolInt(ctx.active))
	}
	return b.String()
}

func (m *Modem) handleActivatePDPContext(cmd string) string {
	enableText, cidText, ok := strings.Cut(strings.TrimPrefix(cmd, "+CGACT="), ",")
	if !ok {
		return "+CME ERROR: 131"
	}
	enable, err1 := strconv.Atoi(enableText)
	cid, err2 := strconv.Atoi(cidText)
	if err1 != nil || err2 != nil || (enable != 0 && enable != 1) {
		return "+CME ERROR: 131"
	}
	return m.activateDataCall(cid, enable == 1)
}

// handleStartPDPContext handles D*99***<cid>#.
func (m *Modem) handleStartPDPContext(cmd string) string {
	cid, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(cmd, "D*99***"), "#"))
	if err != nil {
		return "+CME ERROR: 143"
	}
	return m.activateDataCall(cid, true)
}

func (m *Modem) activateDataCall(cid int, enable bool) string {
	if cid <= 0 || cid > MaxDataContexts {
		return "+CME ERROR: 143"
	}
	ctx := &m.contexts[cid-1]
	if ctx.id == 0 {
		return "+CME ERROR: 131"
	}
	if !m.dataState.registered() {
		return "+CME ERROR: 134"
	}
	if enable {
		if err := m.setupPDP(ctx); err != nil {
			m.log.Warn("Failed to activate PDP context", logger.Int("cid", cid), logger.Error(err))
			return "+CME ERROR: 134"
		}
		return "OK"
	}
	m.teardownPDP(ctx)
	return "OK"
}

func (m *Modem) setupPDP(ctx *dataContext) error {
	if ctx.active {
		return nil
	}
	if m.pool == nil {
		return datanet.ErrPoolExhausted
	}
	n, err := m.pool.Acquire(fmt.Sprintf("%s/%d", m.number, ctx.id))
	if err != nil {
		return err
	}
	if err := m.link.SetLink(n.Name, true); err != nil {
		m.pool.Release(n)
		return fmt.Errorf("link %s up: %w", n.Name, err)
	}
	ctx.net = n
	ctx.active = true
	m.observer.DataContextChanged(m.instance, true)
	return nil
}

func (m *Modem) teardownPDP(ctx *dataContext) {
	if !ctx.active {
		return
	}
	if err := m.link.SetLink(ctx.net.Name, false); err != nil {
		m.log.Warn("Failed to bring link down", logger.String("net", ctx.net.Name), logger.Error(err))
	}
	m.pool.Release(ctx.net)
	ctx.net = nil
	ctx.active = false
	m.observer.DataContextChanged(m.instance, false)
}

// deactivateAll tears down every active context and returns how many
// there were.
func (m *Modem) deactivateAll() int {
	n := 0
	for i := range m.contexts {
		if m.contexts[i].active {
			m.teardownPDP(&m.contexts[i])
			n++
		}
	}
	return n
}

func (m *Modem) handleListPDPContextIDs(string) string {
	ids := make([]string, 0, MaxDataContexts)
	for _, ctx := range m.contexts {
		if ctx.active {
			ids = append(ids, strconv.Itoa(ctx.id))
		}
	}
	return "+CGCONTRDP: (" + strings.Join(ids, ",") + ")"
}

// handleReadPDPContext reports the dynamic parameters of active contexts.
func (m *Modem) handleReadPDPContext(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+CGCONTRDP")
	cid := 0
	if arg != "" {
		n, err := strconv.Atoi(strings.TrimPrefix(arg, "="))
		if !strings.HasPrefix(arg, "=") || err != nil || n <= 0 {
			return "+CME ERROR: 50"
		}
		cid = n
	}

	var lines []string
	for _, ctx := range m.contexts {
		if !ctx.active || (cid > 0 && ctx.id != cid) {
			continue
		}
		n := ctx.net
		var b strings.Builder
		fmt.Fprintf(&b, `+CGCONTRDP: %d,%s,"%s","%s/24","%s"`,
			ctx.id, n.Bearer(m.pool.Prefix()), ctx.apn, n.Addr, n.Gateway)
		for i, dns := range n.DNS {
			if i == datanet.MaxDNS {
				break
			}
			fmt.Fprintf(&b, `,"%s"`, dns)
		}
		lines = append(lines, b.String())
	}
	if cid > 0 && len(lines) == 0 {
		return "+CME ERROR: 50"
	}
	return strings.Join(lines, "\r\n")
}

// DataContexts lists the defined PDP contexts.
func (m *Modem) DataContexts() []DataContext {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DataContext
	for _, ctx := range m.contexts {
		if ctx.id == 0 {
			continue
		}
		dc := DataContext{ID: ctx.id, Active: ctx.active, APN: ctx.apn}
		if ctx.addr.IsValid() {
			dc.Address = ctx.addr.String()
		}
		if ctx.net != nil {
			dc.Net = ctx.net.Name
		}
		out = append(out, dc)
	}
	return out
}

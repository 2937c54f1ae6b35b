package modem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/dbehnke/modem-emu/pkg/at"
	"github.com/dbehnke/modem-emu/pkg/logger"
)

// CallState is the +CLCC state of a call.
type CallState int

const (
	CallActive   CallState = 0
	CallHeld     CallState = 1
	CallDialing  CallState = 2
	CallAlerting CallState = 3
	CallIncoming CallState = 4
	CallWaiting  CallState = 5
)

func (s CallState) String() string {
	switch s {
	case CallActive:
		return "active"
	case CallHeld:
		return "held"
	case CallDialing:
		return "dialing"
	case CallAlerting:
		return "alerting"
	case CallIncoming:
		return "incoming"
	case CallWaiting:
		return "waiting"
	default:
		return "unknown"
	}
}

// CallDir is the direction of a call.
type CallDir int

const (
	CallOutbound CallDir = 0
	CallInbound  CallDir = 1
)

// Cause is the reason a call ended, reported by +CEER.
type Cause int

const (
	CauseUnobtainable Cause = 1
	CauseNormal       Cause = 16
	CauseBusy         Cause = 17
)

var (
	ErrTooManyCalls    = errors.New("too many calls")
	ErrNoSuchCall      = errors.New("no such call")
	ErrBadNumber       = errors.New("invalid phone number")
	ErrBadPresentation = errors.New("invalid presentation")
	ErrUnreachable     = errors.New("number not reachable")
)

const (
	dialChars    = "+0123456789"
	inboundChars = "+#0123456789"

	typeUnknown       = 129
	typeInternational = 145
)

type call struct {
	id       int
	dir      CallDir
	state    CallState
	multi    bool
	number   string
	numPres  int
	remote   bool
	answered bool
	heldSeq  int
	started  time.Time
}

// Call is a console view of a call.
type Call struct {
	ID                 int
	Dir                CallDir
	State              CallState
	Multiparty         bool
	Number             string
	NumberPresentation int
	Remote             bool
}

func (c *call) view() Call {
	return Call{
		ID:                 c.id,
		Dir:                c.dir,
		State:              c.state,
		Multiparty:         c.multi,
		Number:             c.number,
		NumberPresentation: c.numPres,
		Remote:             c.remote,
	}
}

// allocCall adds a call with the smallest unused id, or returns nil when
// the call table is full.
func (m *Modem) allocCall() *call {
	if len(m.calls) >= MaxCalls {
		return nil
	}
	id := 1
	for m.callByID(id) != nil {
		id++
	}
	c := &call{id: id, started: m.now()}
	m.calls = append(m.calls, c)
	return c
}

func (m *Modem) callByID(id int) *call {
	for _, c := range m.calls {
		if c.id == id {
			return c
		}
	}
	return nil
}

func (m *Modem) callByNumber(number string) *call {
	for _, c := range m.calls {
		if c.number == number {
			return c
		}
	}
	return nil
}

func (m *Modem) hasCall(c *call) bool {
	for _, x := range m.calls {
		if x == c {
			return true
		}
	}
	return false
}

// snapshotCalls lets callers free calls while iterating.
func (m *Modem) snapshotCalls() []*call {
	return append([]*call(nil), m.calls...)
}

// freeCall ends a call and tells a bridged peer to hang up.
func (m *Modem) freeCall(c *call, cause Cause) {
	if c.remote {
		m.remote.Notify(m.number, c.number, RemoteHangup)
	}
	m.dropCall(c, cause)
}

// dropCall ends a call without telling the peer.
func (m *Modem) dropCall(c *call, cause Cause) {
	m.sched.Cancel(m.timerKey("call", c.id))
	m.unsetMulti(c)
	for i, x := range m.calls {
		if x == c {
			m.calls = append(m.calls[:i], m.calls[i+1:]...)
			break
		}
	}
	m.lastCause = cause
	m.observer.CallEnded(m.instance, int(cause))
	m.log.Debug("Call ended", logger.Int("id", c.id), logger.String("number", c.number), logger.Int("cause", int(cause)))
	if m.recorder != nil {
		m.recorder.RecordCall(CallRecord{
			Instance: m.instance,
			CallID:   c.id,
			Inbound:  c.dir == CallInbound,
			Number:   c.number,
			Remote:   c.remote,
			Answered: c.answered,
			Cause:    cause,
			Started:  c.started,
			Ended:    m.now(),
		})
	}
}

// setState changes a call's state. With mirror set, hold and accept of a
// bridged call are forwarded to the peer.
func (m *Modem) setState(c *call, state CallState, mirror bool) {
	if state == c.state {
		return
	}
	if c.remote && mirror {
		switch state {
		case CallHeld:
			m.remote.Notify(m.number, c.number, RemoteHold)
		case CallActive:
			m.remote.Notify(m.number, c.number, RemoteAccept)
		}
	}
	switch state {
	case CallActive:
		c.answered = true
	case CallHeld:
		m.holdSeq++
		c.heldSeq = m.holdSeq
	}
	c.state = state
}

func (m *Modem) multiCount() int {
	n := 0
	for _, c := range m.calls {
		if c.multi {
			n++
		}
	}
	return n
}

// unsetMulti removes c from the multiparty group and dissolves a group
// left with a single member.
func (m *Modem) unsetMulti(c *call) {
	if !c.multi {
		return
	}
	c.multi = false
	if m.multiCount() == 1 {
		for _, x := range m.calls {
			x.multi = false
		}
	}
}

func (m *Modem) callsChanged() {
	m.unsol(at.UrcCallState)
}

// expandNumber turns the short forms of a local instance number into the
// full 11 digit number.
func (m *Modem) expandNumber(n string) string {
	switch len(n) {
	case 10:
		if strings.HasPrefix(n, PhonePrefix[1:]) && int(n[5])-'1' == m.instance {
			return PhonePrefix[:1] + n
		}
	case 7:
		if strings.HasPrefix(n, PhonePrefix[4:]) && int(n[2])-'1' == m.instance {
			return PhonePrefix[:4] + n
		}
	case 5:
		if int(n[0])-'1' == m.instance {
			return PhonePrefix + n
		}
	case 4:
		return fmt.Sprintf("%s%d%s", PhonePrefix, m.instance+1, n)
	}
	return n
}

func onlyChars(s, allowed string) bool {
	for _, r := range s {
		if !strings.ContainsRune(allowed, r) {
			return false
		}
	}
	return true
}

func (m *Modem) isEmergency(number string) bool {
	for _, n := range m.emergencyNumbers {
		if n == number {
			return true
		}
	}
	return false
}

func (m *Modem) handleDial(cmd string) string {
	c := m.allocCall()
	if c == nil {
		return "ERROR: TOO MANY CALLS"
	}
	number := strings.TrimSuffix(cmd[1:], ";")
	if len(number) > MaxNumberLen {
		number = number[:MaxNumberLen]
	}
	c.dir = CallOutbound
	c.state = CallDialing
	c.number = m.expandNumber(number)
	m.observer.CallStarted(m.instance, false)
	m.callsChanged()

	if c.number == "" || !onlyChars(c.number, dialChars) {
		m.dropCall(c, CauseUnobtainable)
		m.callsChanged()
		return ""
	}

	if m.isEmergency(c.number) {
		m.setEmergencyMode(true)
		m.unsol("+WSOS: 1")
	}
	if c.number != m.number && m.remote.Reachable(c.number) {
		c.remote = true
		m.remote.Notify(m.number, c.number, RemoteDial)
	}
	m.sched.Schedule(m.timerKey("call", c.id), AlertDelay, func() { m.dialTimeout(c) })
	return ""
}

// dialTimeout moves a still-dialing call to alerting.
func (m *Modem) dialTimeout(c *call) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.hasCall(c) || c.state != CallDialing {
		return
	}
	c.state = CallAlerting
	m.callsChanged()
}

func (m *Modem) handleAnswer(string) string {
	for _, c := range m.snapshotCalls() {
		switch c.state {
		case CallIncoming:
			m.setState(c, CallActive, true)
		case CallActive:
			m.setState(c, CallHeld, true)
		}
	}
	return ""
}

func (m *Modem) handleHangupIncoming(string) string {
	for _, c := range m.calls {
		if c.state == CallIncoming {
			m.freeCall(c, CauseNormal)
			break
		}
	}
	return ""
}

func (m *Modem) handleHangup(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+CHLD=")
	if arg == "" {
		return "ERROR: BAD COMMAND"
	}
	op, rest := arg[0], arg[1:]
	id := 0
	if rest != "" {
		n, err := strconv.Atoi(rest)
		if err != nil || (op != '1' && op != '2') {
			return "ERROR: BAD COMMAND"
		}
		id = n
	}

	switch op {
	case '0':
		for _, c := range m.snapshotCalls() {
			if c.state == CallHeld || c.state == CallWaiting || c.state == CallIncoming {
				m.freeCall(c, CauseNormal)
			}
		}

	case '1':
		if rest != "" {
			if c := m.callByID(id); c != nil {
				m.freeCall(c, CauseNormal)
			}
			break
		}
		for _, c := range m.snapshotCalls() {
			switch c.state {
			case CallActive:
				m.freeCall(c, CauseNormal)
			case CallHeld, CallWaiting:
				m.setState(c, CallActive, true)
			}
		}

	case '2':
		if rest != "" {
			if reply := m.splitCall(id); reply != "" {
				return reply
			}
			break
		}
		for _, c := range m.snapshotCalls() {
			switch c.state {
			case CallActive:
				m.setState(c, CallHeld, true)
			case CallHeld, CallWaiting:
				m.setState(c, CallActive, true)
			}
		}

	case '3':
		if reply := m.mergeCalls(); reply != "" {
			return reply
		}

	case '4':
		var latest *call
		for _, c := range m.calls {
			if c.state == CallHeld && (latest == nil || c.heldSeq > latest.heldSeq) {
				latest = c
			}
		}
		if latest != nil {
			m.setState(latest, CallActive, true)
		}

	default:
		return "ERROR: BAD COMMAND"
	}

	m.callsChanged()
	return ""
}

// splitCall keeps call id active, taking it out of the multiparty group,
// and holds every other active call.
func (m *Modem) splitCall(id int) string {
	target := m.callByID(id)
	if target == nil || target.state != CallActive {
		return "+CME ERROR: 3"
	}
	for _, c := range m.calls {
		if c != target && c.state == CallHeld {
			return "+CME ERROR: 3"
		}
	}
	for _, c := range m.snapshotCalls() {
		if c == target {
			m.unsetMulti(c)
		} else if c.state == CallActive {
			m.setState(c, CallHeld, true)
		}
	}
	return ""
}

// mergeCalls joins the held calls and the first active call into one
// multiparty group of at most MaxMultiparty calls.
func (m *Modem) mergeCalls() string {
	if len(m.calls) < 2 {
		return "+CME ERROR: 3"
	}
	hasHeld := false
	var active *call
	for _, c := range m.calls {
		switch c.state {
		case CallHeld:
			hasHeld = true
		case CallActive:
			if active == nil {
				active = c
			}
		}
	}
	if !hasHeld || active == nil {
		return "+CME ERROR: 3"
	}

	size := 0
	for _, c := range m.calls {
		if c.multi || c.state == CallHeld || c == active {
			size++
		}
	}
	if size > MaxMultiparty {
		return "+CME ERROR: 3"
	}

	for _, c := range m.calls {
		switch {
		case c.state == CallHeld:
			c.multi = true
			m.setState(c, CallActive, true)
		case c == active:
			c.multi = true
		}
	}
	return ""
}

func (m *Modem) handleListCurrentCalls(string) string {
	var b strings.Builder
	for _, c := range m.calls {
		number := ""
		if c.numPres == 0 {
			number = c.number
		}
		typ := typeUnknown
		if strings.HasPrefix(c.number, "+") {
			typ = typeInternational
		}
		fmt.Fprintf(&b, "+CLCC: %d,%d,%d,0,%d,\"%s\",%d,\"\",2,%d\r\n",
			c.id, c.dir, c.state, boolInt(c.multi), number, typ, c.numPres)
	}
	return b.String()
}

func (m *Modem) handleLastCallFailCause(string) string {
	return fmt.Sprintf("+CEER: %d", m.lastCause)
}

// addInboundCall rings the guest with a new incoming call.
func (m *Modem) addInboundCall(number string, numPres int, name string, namePres int, remote bool) error {
	if numPres < 0 || numPres > 4 || namePres < 0 || namePres > 2 {
		return fmt.Errorf("%w: number %d name %d", ErrBadPresentation, numPres, namePres)
	}
	if number == "" || !onlyChars(number, inboundChars) {
		return fmt.Errorf("%w: %q", ErrBadNumber, number)
	}
	c := m.allocCall()
	if c == nil {
		return ErrTooManyCalls
	}
	if len(number) > MaxNumberLen {
		number = number[:MaxNumberLen]
	}
	c.dir = CallInbound
	c.state = CallIncoming
	c.number = number
	c.numPres = numPres
	c.remote = remote
	m.observer.CallStarted(m.instance, true)

	cnap := ""
	if namePres == 0 {
		cnap = name
		if len(cnap) > MaxNameLen {
			cnap = cnap[:MaxNameLen]
		}
	}
	m.unsol("RING")
	if cnap != "" || namePres > 0 {
		m.unsol(`+CNAP: "%s",%d`, cnap, namePres)
	}
	return nil
}

// AddInboundCall injects an incoming call from number.
func (m *Modem) AddInboundCall(number string, numPres int, name string, namePres int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addInboundCall(number, numPres, name, namePres, number != m.number && m.remote.Reachable(number))
}

// Calls lists the current calls.
func (m *Modem) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, 0, len(m.calls))
	for _, c := range m.calls {
		out = append(out, c.view())
	}
	return out
}

// LastCallFailCause returns the cause of the last ended call.
func (m *Modem) LastCallFailCause() Cause {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastCause
}

// UpdateCall puts the call with number in state, the way the far end
// accepting or holding would.
func (m *Modem) UpdateCall(number string, state CallState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.callByNumber(number)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchCall, number)
	}
	m.setState(c, state, true)
	m.callsChanged()
	return nil
}

// Busy ends the call with number as if the far end was busy.
func (m *Modem) Busy(number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.callByNumber(number)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchCall, number)
	}
	if c.remote {
		m.remote.Notify(m.number, c.number, RemoteBusy)
	}
	m.dropCall(c, CauseBusy)
	m.unsol("NO CARRIER")
	return nil
}

// Disconnect ends the call with number normally.
func (m *Modem) Disconnect(number string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := m.callByNumber(number)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchCall, number)
	}
	m.freeCall(c, CauseNormal)
	m.unsol("NO CARRIER")
	return nil
}

// ClearCalls ends every call.
func (m *Modem) ClearCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return
	}
	for i := len(m.calls) - 1; i >= 0; i-- {
		m.freeCall(m.calls[i], CauseNormal)
	}
	m.unsol("NO CARRIER")
}

// HandleRemote applies a call event sent by the instance owning from.
// Nothing is mirrored back.
func (m *Modem) HandleRemote(from string, ev RemoteEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if ev == RemoteDial {
		return m.addInboundCall(from, 0, "", 0, true)
	}
	c := m.callByNumber(from)
	if c == nil {
		return fmt.Errorf("%w: %s", ErrNoSuchCall, from)
	}
	switch ev {
	case RemoteBusy:
		m.dropCall(c, CauseBusy)
		m.unsol("NO CARRIER")
	case RemoteHangup, RemoteDialFailed:
		m.dropCall(c, CauseNormal)
		m.unsol("NO CARRIER")
	case RemoteHold:
		m.setState(c, CallHeld, false)
		m.callsChanged()
	case RemoteAccept:
		m.setState(c, CallActive, false)
		m.callsChanged()
	default:
		return fmt.Errorf("unknown remote event %d", ev)
	}
	return nil
}

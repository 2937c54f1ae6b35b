// Package modem emulates the baseband side of a cellular modem: it answers
// the AT command set a guest telephony stack sends and emits the matching
// unsolicited notifications.
//
// A Modem is driven from three directions: guest lines through Send, timer
// callbacks from its Scheduler, and console operations. All of them take
// the modem lock, so the state machine only ever sees one caller at a time.
package modem

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/dbehnke/modem-emu/pkg/at"
	"github.com/dbehnke/modem-emu/pkg/datanet"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/nvram"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/sim"
	"github.com/dbehnke/modem-emu/pkg/sms"
)

const (
	// PhonePrefix starts every instance number.
	PhonePrefix = "155552"

	MaxCalls        = 7
	MaxDataContexts = 4
	MaxMultiparty   = 5
	MaxEmergency    = 16
	MaxNumberLen    = 16
	MaxNameLen      = 80
	MaxAPNLen       = 31

	// AlertDelay is how long an outbound call stays dialing.
	AlertDelay = time.Second
)

// UnsolFunc receives every byte sequence the modem sends to the guest:
// command replies and unsolicited notifications alike.
type UnsolFunc func(text string)

// Options wire a Modem to its collaborators. Store, SIM and Scheduler are
// required; the rest fall back to inert implementations.
type Options struct {
	BasePort    int
	Instance    int
	Store       nvram.Store
	SIM         *sim.Card
	Scheduler   schedule.Scheduler
	Pool        *datanet.Pool
	Link        datanet.LinkController
	Remote      Remote
	Recorder    CallRecorder
	Observer    Observer
	Logger      *logger.Logger
	TimeUpdates bool
	Clock       func() time.Time
}

// Modem is one emulated modem instance.
type Modem struct {
	mu sync.Mutex

	basePort    int
	instance    int
	number      string
	store       nvram.Store
	sim         *sim.Card
	sched       schedule.Scheduler
	pool        *datanet.Pool
	link        datanet.LinkController
	remote      Remote
	recorder    CallRecorder
	observer    Observer
	log         *logger.Logger
	timeUpdates bool
	now         func() time.Time
	sink        UnsolFunc

	waitSMS bool
	radioOn bool

	// signal
	rssi, ber          int
	rxlev, rsrp, rssnr int

	// registration
	lac, ci     int
	voiceMode   RegMode
	voiceState  RegState
	dataMode    RegMode
	dataState   RegState
	dataNetwork NetworkType

	// operators
	selection     Selection
	operNameIndex int
	operIndex     int
	operCount     int
	operators     [maxOperators]Operator

	// technology and CDMA
	tech               Tech
	preferredMask      PreferredMask
	subscriptionSource SubscriptionSource
	roamingPref        int
	inEmergencyMode    bool
	prlVersion         int
	emergencyNumbers   []string

	smsc sms.Address

	calls     []*call
	lastCause Cause
	holdSeq   int

	contexts [MaxDataContexts]dataContext
}

// New creates a modem and loads its persisted settings. Every reply and
// notification is passed to sink.
func New(opts Options, sink UnsolFunc) *Modem {
	if opts.Remote == nil {
		opts.Remote = noRemote{}
	}
	if opts.Observer == nil {
		opts.Observer = nopObserver{}
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if sink == nil {
		sink = func(string) {}
	}
	log := opts.Logger
	if log == nil {
		log = logger.New(logger.Config{Level: "error"})
	}
	if opts.Link == nil {
		opts.Link = datanet.NewLogLink(log)
	}

	m := &Modem{
		basePort:    opts.BasePort,
		instance:    opts.Instance,
		number:      PhoneNumber(opts.BasePort, opts.Instance),
		store:       opts.Store,
		sim:         opts.SIM,
		sched:       opts.Scheduler,
		pool:        opts.Pool,
		link:        opts.Link,
		remote:      opts.Remote,
		recorder:    opts.Recorder,
		observer:    opts.Observer,
		log:         log.WithComponent(fmt.Sprintf("modem.%d", opts.Instance)),
		timeUpdates: opts.TimeUpdates,
		now:         opts.Clock,
		sink:        sink,
	}
	m.reset()
	return m
}

// PhoneNumber is the number of an instance, e.g. "15555215554".
func PhoneNumber(basePort, instance int) string {
	return fmt.Sprintf("%s%d%d", PhonePrefix, instance+1, basePort)
}

// reset restores power-on state and reads the persisted settings.
func (m *Modem) reset() {
	m.radioOn = false
	m.waitSMS = false

	m.rssi, m.ber = 7, 99
	m.rxlev, m.rsrp, m.rssnr = 99, 65535, 65535

	m.voiceMode, m.voiceState = RegModeLocation, RegHome
	m.dataMode, m.dataState = RegModeLocation, RegHome
	m.dataNetwork = NetworkUMTS

	m.operNameIndex = m.storedInt(nvOperNameIndex, NameNumeric, NameLong, NameNumeric)
	m.selection = Selection(m.storedInt(nvSelectionMode, int(SelectionAutomatic), int(SelectionAutomatic), int(SelectionManualAuto)))
	m.operCount = m.storedInt(nvOperCount, 2, 0, maxOperators)
	m.operIndex = m.storedInt(nvOperIndex, operHome, operNone, maxOperators-1)
	m.operators = defaultOperators()

	m.inEmergencyMode = m.store.Int(nvInECBM, 0) != 0
	m.prlVersion = m.store.Int(nvPRLVersion, 0)
	m.emergencyNumbers = m.loadEmergencyNumbers()

	m.tech = m.loadTechnology()
	m.preferredMask = PreferredMask(m.store.Int(nvPreferredMode, int(MaskAll)))
	if !m.preferredMask.Valid() {
		m.log.Warn("Stored preferred mode enables no technology, using default",
			logger.Int("value", int(m.preferredMask)))
		m.preferredMask = MaskAll
		m.persistInt(nvPreferredMode, int(MaskAll))
	}
	if !m.preferredMask.Allows(m.tech) {
		m.tech, _ = m.preferredMask.choose()
		m.persistString(nvTechnology, m.tech.String())
	}
	m.subscriptionSource = SubscriptionSource(m.storedInt(nvSubscriptionSource, int(SubscriptionNV), int(SubscriptionRUIM), int(SubscriptionNV)))
	m.roamingPref = m.storedInt(nvRoamingPref, 2, 0, 2)

	m.smsc = sms.Address{Number: "123456789", TOA: sms.TOAInternational}
	if a, err := sms.ParseAddress(m.store.String(nvSMSCAddress, "+123456789")); err == nil {
		m.smsc = a
	}

	m.calls = nil
	m.lastCause = 0
	m.contexts = [MaxDataContexts]dataContext{}

	if err := m.store.Flush(); err != nil {
		m.log.Warn("Failed to flush store", logger.Error(err))
	}
}

// storedInt reads a persisted setting, replacing a value outside [lo, hi]
// with def.
func (m *Modem) storedInt(key string, def, lo, hi int) int {
	v := m.store.Int(key, def)
	if v < lo || v > hi {
		m.log.Warn("Stored setting out of range, using default",
			logger.String("key", key), logger.Int("value", v), logger.Int("default", def))
		m.persistInt(key, def)
		return def
	}
	return v
}

func (m *Modem) loadTechnology() Tech {
	name := m.store.String(nvTechnology, "gsm")
	if t, ok := ParseTech(name); ok {
		return t
	}
	var n int
	if _, err := fmt.Sscanf(name, "%d", &n); err == nil && n >= 0 && n < int(techCount) {
		return Tech(n)
	}
	m.log.Warn("Unknown stored technology, using gsm", logger.String("value", name))
	return TechGSM
}

func (m *Modem) loadEmergencyNumbers() []string {
	numbers := []string{"911"}
	for i := 1; i < MaxEmergency; i++ {
		if v, ok := m.store.Lookup(fmt.Sprintf(nvEmergencyNumberFmt, i)); ok && v != "" {
			numbers = append(numbers, v)
		}
	}
	return numbers
}

// Instance returns the instance index.
func (m *Modem) Instance() int { return m.instance }

// Number returns the phone number of this modem.
func (m *Modem) Number() string { return m.number }

// SIM returns the card. Callers must go through the modem's console
// operations to touch it while the modem is in use.
func (m *Modem) SIM() *sim.Card { return m.sim }

// Send feeds one line from the guest and reports whether the modem now
// expects an SMS PDU as the next line.
func (m *Modem) Send(line string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.log.Debug("AT <<", logger.Line("line", line))

	if m.waitSMS {
		m.waitSMS = false
		m.reply(m.handleSMSPDU(line))
		return m.waitSMS
	}
	if len(line) <= 2 || !strings.HasPrefix(line, "AT") {
		return false
	}
	cmd := line[2:]

	e, ok := lookup(cmd)
	if !ok {
		m.observer.CommandHandled(m.instance, false)
		m.log.Debug("Unsupported command", logger.String("cmd", cmd))
		m.reply("ERROR: UNSUPPORTED")
		return m.waitSMS
	}
	m.observer.CommandHandled(m.instance, true)

	answer := e.answer
	if e.handler != nil {
		answer = e.handler(m, cmd)
	}
	m.reply(answer)
	return m.waitSMS
}

// alreadyReplied is returned by handlers that sent their reply themselves.
const alreadyReplied = "\x00"

// reply sends the final response of a command. A response whose last line
// is not a terminator gets "OK" appended.
func (m *Modem) reply(answer string) {
	if answer == alreadyReplied {
		return
	}
	if answer == "" {
		answer = at.OK
	} else if !at.Terminated(answer) {
		answer += at.CR + at.OK
	}
	m.emit(answer + at.CR)
}

// unsol sends an unsolicited notification line.
func (m *Modem) unsol(format string, args ...interface{}) {
	m.emit(fmt.Sprintf(format, args...) + "\r")
}

func (m *Modem) emit(text string) {
	m.log.Debug("AT >>", logger.Line("line", text))
	m.sink(text)
}

// timerKey names a scheduler slot owned by this instance.
func (m *Modem) timerKey(kind string, id int) string {
	return fmt.Sprintf("modem.%d.%s.%d", m.instance, kind, id)
}

// Close cancels pending timers and releases every data network.
func (m *Modem) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.calls {
		m.sched.Cancel(m.timerKey("call", c.id))
	}
	m.deactivateAll()
	if err := m.store.Flush(); err != nil {
		m.log.Warn("Failed to flush store", logger.Error(err))
	}
}

package modem

import (
	"io"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/nvram"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/sim"
)

var testTime = time.Date(2024, 3, 5, 13, 4, 5, 0, time.FixedZone("EST", -5*3600))

// harness drives one modem and collects everything it sends to the guest.
type harness struct {
	t     *testing.T
	m     *Modem
	sched *schedule.ManualScheduler
	store nvram.Store
	out   strings.Builder
}

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newHarness(t *testing.T, configure ...func(*Options)) *harness {
	t.Helper()
	h := &harness{t: t, sched: schedule.NewManualScheduler()}
	opts := Options{
		BasePort:  5554,
		Store:     nvram.NewMemory(StoreDefaults(), testLogger()),
		SIM:       sim.New(5554, 0),
		Scheduler: h.sched,
		Logger:    testLogger(),
		Clock:     func() time.Time { return testTime },
	}
	for _, fn := range configure {
		fn(&opts)
	}
	h.store = opts.Store
	h.m = New(opts, func(text string) { h.out.WriteString(text) })
	return h
}

// at sends one line and returns what the modem emitted for it. Earlier
// output is discarded.
func (h *harness) at(line string) string {
	h.t.Helper()
	h.drain()
	h.m.Send(line)
	return h.drain()
}

func (h *harness) drain() string {
	s := h.out.String()
	h.out.Reset()
	return s
}

func (h *harness) expect(line, want string) {
	h.t.Helper()
	if got := h.at(line); got != want {
		h.t.Fatalf("%s:\n got %q\nwant %q", line, got, want)
	}
}

// radioOn powers the radio and drops the registration notifications.
func (h *harness) radioOn() {
	h.t.Helper()
	h.at("AT+CFUN=1")
}

func TestPhoneNumber(t *testing.T) {
	if got := PhoneNumber(5554, 0); got != "15555215554" {
		t.Errorf("PhoneNumber(5554, 0) = %q", got)
	}
	if got := PhoneNumber(5556, 2); got != "15555235556" {
		t.Errorf("PhoneNumber(5556, 2) = %q", got)
	}
}

func TestSend_Dispatch(t *testing.T) {
	h := newHarness(t)

	tests := []struct {
		line string
		want string
	}{
		{"AT+CIMI", "310260000000000\rOK\r"},
		{"AT+CGSN", "000000000000000\rOK\r"},
		{"AT+CSMS=1", "+CSMS: 1, 1, 1\rOK\r"},
		{"ATE0Q0V1", "OK\r"},
		{"AT+CMEE=1", "OK\r"},
		{"AT+CNMI?", "+CNMI: 1,2,2,1,1\rOK\r"},
		{"AT+CGACT=?", "+CGACT: (0-1)\r\n\rOK\r"},
		{"AT+CMGW=1", "ERROR: unimplemented\r"},
		{"AT+CMGD=1", "OK\r"},
		{"AT+VTS=5", "OK\r"},
		{"AT+FOO", "ERROR: UNSUPPORTED\r"},
		{"ATZ", "ERROR: UNSUPPORTED\r"},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			if got := h.at(tt.line); got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSend_IgnoresNonCommands(t *testing.T) {
	h := newHarness(t)
	for _, line := range []string{"", "AT", "hello", "at+cimi"} {
		if h.m.Send(line) {
			t.Errorf("Send(%q) reported SMS mode", line)
		}
		if out := h.drain(); out != "" {
			t.Errorf("Send(%q) produced %q", line, out)
		}
	}
}

func TestLookup_SpecificRowsWin(t *testing.T) {
	tests := []struct {
		cmd  string
		want string
	}{
		{"+CGACT=?", "+CGACT=?"},
		{"+CGACT=1,1", "+CGACT="},
		{"+COPS=0", "+COPS=0"},
		{"+COPS?", "+COPS"},
		{"D*99***1#", "D*99***"},
		{"D5551212;", "D"},
		{"+CGCONTRDP=?", "+CGCONTRDP=?"},
		{"+CGCONTRDP=1", "+CGCONTRDP"},
		{"+CTEC=?", "+CTEC=?"},
		{"+CSCA?", "+CSCA"},
	}
	for _, tt := range tests {
		e, ok := lookup(tt.cmd)
		if !ok {
			t.Fatalf("lookup(%q) found nothing", tt.cmd)
		}
		if e.cmd != tt.want {
			t.Errorf("lookup(%q) matched %q, want %q", tt.cmd, e.cmd, tt.want)
		}
	}
}

func TestRadioPower(t *testing.T) {
	h := newHarness(t)

	h.expect("AT+CFUN?", "+CFUN: 0\rOK\r")
	h.expect("AT+CFUN=1", "OK\r"+
		`+CREG: 2,1,"0000","0000000"`+"\r"+
		`+CGREG: 2,1,"0000","0000000","00000003"`+"\r")
	h.expect("AT+CFUN?", "+CFUN: 1\rOK\r")
	h.expect("AT+CFUN=1", "OK\r")
	if !h.m.RadioOn() {
		t.Fatal("expected radio on")
	}

	h.expect("AT+CFUN=0", "OK\r"+
		`+CREG: 2,0,"0000","0000000"`+"\r"+
		`+CGREG: 2,0,"0000","0000000","00000003"`+"\r")
	h.expect("AT+COPS?", "+CME ERROR: 30\r")
}

func TestNetworkRegistration(t *testing.T) {
	h := newHarness(t)

	h.expect("AT+CREG?", `+CREG: 2,1, "0000", "0000000"`+"\rOK\r")
	h.expect("AT+CGREG?", `+CGREG: 2,1,"0000","0000000","0003"`+"\rOK\r")
	h.expect("AT+CREG=?", "+CREG: (0-2)\rOK\r")
	h.expect("AT+CGREG=?", "+CGREG: (0-2)\rOK\r")
	h.expect("AT+CREG=1", "OK\r")
	h.expect("AT+CREG?", "+CREG: 1,1\rOK\r")
	h.expect("AT+CREG=5", "ERROR: BAD COMMAND\r")

	h.m.SetVoiceRegistration(RegRoaming)
	if got := h.drain(); got != "+CREG: 1,5\r" {
		t.Fatalf("unexpected voice notification %q", got)
	}

	h.at("AT+CREG=0")
	h.m.SetVoiceRegistration(RegHome)
	if got := h.drain(); got != "" {
		t.Fatalf("expected no notification with reporting off, got %q", got)
	}
}

func TestSetLocation(t *testing.T) {
	h := newHarness(t)

	if err := h.m.SetLocation(0x1234, 0x5678); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if got := h.drain(); got != `+CREG: 2,1,"1234","0005678"`+"\r" {
		t.Fatalf("unexpected notification %q", got)
	}
	if err := h.m.SetLocation(0x1234, 0x5678); err != nil {
		t.Fatalf("SetLocation: %v", err)
	}
	if got := h.drain(); got != "" {
		t.Errorf("expected no notification for an unchanged cell, got %q", got)
	}
	if err := h.m.SetLocation(0x10000, 0); err == nil {
		t.Error("expected range error for lac")
	}
	if err := h.m.SetLocation(0, 0x10000000); err == nil {
		t.Error("expected range error for ci")
	}
	if lac, ci := h.m.Location(); lac != 0x1234 || ci != 0x5678 {
		t.Errorf("unexpected location %x/%x", lac, ci)
	}
}

func TestDataNetworkType(t *testing.T) {
	h := newHarness(t)

	h.m.SetDataNetworkType(NetworkLTE)
	if got := h.drain(); !strings.HasPrefix(got, `+CGREG: 2,1,"0000","0000000","00000004"`) {
		t.Fatalf("unexpected notification %q", got)
	}
	if tech, _ := h.m.Technology(); tech != TechGSM {
		t.Errorf("LTE is not in the default mask, expected gsm to stay, got %s", tech)
	}

	h.m.SetDataNetworkType(NetworkEVDO)
	if tech, _ := h.m.Technology(); tech != TechCDMA {
		t.Errorf("expected cdma family for evdo, got %s", tech)
	}
	if h.m.DataNetworkType() != NetworkEVDO {
		t.Errorf("unexpected network type %s", h.m.DataNetworkType())
	}
}

func TestParseNames(t *testing.T) {
	if s, ok := ParseRegState("Roaming"); !ok || s != RegRoaming {
		t.Errorf("ParseRegState(Roaming) = %v, %v", s, ok)
	}
	if _, ok := ParseRegState("bogus"); ok {
		t.Error("expected bogus state to be rejected")
	}
	if n, ok := ParseNetworkType("hsdpa"); !ok || n != NetworkUMTS {
		t.Errorf("ParseNetworkType(hsdpa) = %v, %v", n, ok)
	}
	if tech, ok := ParseTech("EVDO"); !ok || tech != TechEVDO {
		t.Errorf("ParseTech(EVDO) = %v, %v", tech, ok)
	}
	if mask, ok := ParsePreferredMask("gsm/wcdma-auto"); !ok || mask != MaskGSMWCDMA {
		t.Errorf("ParsePreferredMask = %v, %v", mask, ok)
	}
	if s, ok := ParseSubscriptionSource("ruim"); !ok || s != SubscriptionRUIM {
		t.Errorf("ParseSubscriptionSource = %v, %v", s, ok)
	}
}

func TestStatus(t *testing.T) {
	h := newHarness(t)
	h.radioOn()

	s := h.m.Status()
	if s.Number != "15555215554" || !s.RadioOn {
		t.Errorf("unexpected identity %+v", s)
	}
	if s.VoiceState != "home" || s.Technology != "gsm" || s.Operator != "Android" {
		t.Errorf("unexpected registration %+v", s)
	}
	if s.SIM != sim.StatusReady.String() || s.SMSC != "+123456789" {
		t.Errorf("unexpected sim or smsc %+v", s)
	}
}

func TestClose_FlushesAndCancels(t *testing.T) {
	h := newHarness(t)
	h.at("ATD5551212;")
	key := h.m.timerKey("call", 1)
	if !h.sched.Pending(key) {
		t.Fatal("expected dial timer to be pending")
	}
	h.m.Close()
	if h.sched.Pending(key) {
		t.Error("expected dial timer to be cancelled")
	}
}

func TestNew_PersistsEffectiveSettings(t *testing.T) {
	path := filepath.Join(t.TempDir(), nvram.FileName(5554, 0))
	store, err := nvram.OpenFile(path, StoreDefaults(), testLogger())
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	newHarness(t, func(o *Options) { o.Store = store })

	reopened, err := nvram.OpenFile(path, StoreDefaults(), testLogger())
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	for key, want := range map[string]string{
		nvTechnology:    "gsm",
		nvPreferredMode: "15",
		nvOperNameIndex: "2",
		nvOperCount:     "2",
		nvRoamingPref:   "2",
		nvSMSCAddress:   "+123456789",
	} {
		if got, ok := reopened.Lookup(key); !ok || got != want {
			t.Errorf("%s = %q (present %v), want %q", key, got, ok, want)
		}
	}
}

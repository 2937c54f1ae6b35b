package modem

import (
	"strings"
	"testing"

	"github.com/dbehnke/modem-emu/pkg/sim"
)

func TestSIMStatusQuery(t *testing.T) {
	tests := []struct {
		status sim.Status
		want   string
	}{
		{sim.StatusReady, "+CPIN: READY\rOK\r"},
		{sim.StatusPIN, "+CPIN: SIM PIN\rOK\r"},
		{sim.StatusPUK, "+CPIN: SIM PUK\rOK\r"},
		{sim.StatusAbsent, "+CPIN: ABSENT\rOK\r"},
		{sim.StatusNetworkPersonalization, "+CPIN: PH-NET PIN\rOK\r"},
		{sim.StatusNotReady, "+CME ERROR: SIM NOT READY\r"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			h := newHarness(t)
			h.m.SetSIMStatus(tt.status)
			h.expect("AT+CPIN?", tt.want)
		})
	}
}

func TestEnterPIN(t *testing.T) {
	h := newHarness(t)
	h.m.SetSIMStatus(sim.StatusPIN)

	h.expect("AT+CPIN=1111", "+CME ERROR: BAD PIN\r")
	h.expect(`AT+CPINR="SIM PIN"`, "+CPINR: SIM PIN,2,3\r\n\rOK\r")
	h.expect(`AT+CPIN="0000"`, "+CPIN: READY\rOK\r")
	if h.m.SIMStatus() != sim.StatusReady {
		t.Fatalf("expected ready card, got %s", h.m.SIMStatus())
	}
	h.expect("AT+CPINR=SIM PIN", "+CPINR: SIM PIN,3,3\r\n\rOK\r")
}

func TestEnterPIN_BlocksToPUK(t *testing.T) {
	h := newHarness(t)
	h.m.SetSIMStatus(sim.StatusPIN)

	for i := 0; i < sim.PINRetries; i++ {
		h.at("AT+CPIN=1111")
	}
	h.expect("AT+CPIN?", "+CPIN: SIM PUK\rOK\r")
	h.expect("AT+CPIN=0000", "+CME ERROR: BAD PUK\r")
	h.expect("AT+CPIN=12345678,4321", "+CPIN: READY\rOK\r")
	h.expect("AT+CPIN=4321,0000", "+CPIN: READY\rOK\r")
	if h.m.SIM().PIN() != "0000" {
		t.Errorf("unexpected pin %q", h.m.SIM().PIN())
	}
}

func TestChangePIN(t *testing.T) {
	h := newHarness(t)

	h.expect("AT+CPIN=0000", "+CME ERROR: BAD FORMAT\r")
	h.expect("AT+CPIN=1111,2222", "+CME ERROR: BAD PIN\r")
	h.expect("AT+CPIN=0000,2222", "+CPIN: READY\rOK\r")
	if h.m.SIM().PIN() != "2222" {
		t.Errorf("unexpected pin %q", h.m.SIM().PIN())
	}
}

func TestEnterPIN_CardStates(t *testing.T) {
	tests := []struct {
		status sim.Status
		want   string
	}{
		{sim.StatusAbsent, "+CME ERROR: SIM ABSENT\r"},
		{sim.StatusNotReady, "+CME ERROR: SIM NOT READY\r"},
		{sim.StatusNetworkPersonalization, "+CPIN: PH-NET PIN\rOK\r"},
	}
	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			h := newHarness(t)
			h.m.SetSIMStatus(tt.status)
			h.expect("AT+CPIN=0000", tt.want)
		})
	}
}

func TestPINRetries(t *testing.T) {
	h := newHarness(t)
	h.expect(`AT+CPINR="SIM PUK"`, "+CPINR: SIM PUK,6,6\r\n\rOK\r")
	h.expect(`AT+CPINR="PH-SIM PIN"`, "+CME ERROR: 50\r\n\r")
}

func TestSIMIO(t *testing.T) {
	h := newHarness(t)

	h.expect("AT+CRSM=176,28589,0,0,4", "+CRSM: 144,0,00000003\rOK\r")
	got := h.at(`AT+CRSM=214,28435,0,0,2,"4142"`)
	if !strings.HasPrefix(got, "+CRSM: 144,0") {
		t.Fatalf("update failed: %q", got)
	}
	if r := h.m.ReadEF(28435, 0); r.Data != "4142" {
		t.Errorf("unexpected file content %q", r.Data)
	}
	if r := h.m.WriteEF(28435, 0, "4344"); !r.OK() {
		t.Fatalf("WriteEF: %s", r)
	}
	h.expect("AT+CRSM=176,28435,0,0,2", "+CRSM: 144,0,4344\rOK\r")
}

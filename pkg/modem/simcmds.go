package modem

import (
	"fmt"
	"strings"

	"github.com/dbehnke/modem-emu/pkg/sim"
)

func (m *Modem) handleSIMIO(cmd string) string {
	resp := m.sim.IO(strings.TrimPrefix(cmd, "+CRSM="))
	m.observer.SIMCommand(m.instance, resp.OK())
	return resp.String()
}

func (m *Modem) handleSIMStatus(string) string {
	switch m.sim.Status() {
	case sim.StatusNotReady:
		return "+CME ERROR: SIM NOT READY"
	case sim.StatusAbsent, sim.StatusReady, sim.StatusPIN, sim.StatusPUK, sim.StatusNetworkPersonalization:
		return "+CPIN: " + m.sim.Status().String()
	default:
		return "ERROR: internal error"
	}
}

// pinArgs splits `code[,code]`, dropping optional quotes.
func pinArgs(s string) []string {
	fields := strings.Split(s, ",")
	for i, f := range fields {
		fields[i] = strings.Trim(strings.TrimSpace(f), `"`)
	}
	return fields
}

func (m *Modem) handleChangeOrEnterPIN(cmd string) string {
	args := pinArgs(strings.TrimPrefix(cmd, "+CPIN="))

	switch m.sim.Status() {
	case sim.StatusAbsent:
		return "+CME ERROR: SIM ABSENT"
	case sim.StatusNotReady:
		return "+CME ERROR: SIM NOT READY"
	case sim.StatusReady:
		if len(args) != 2 {
			return "+CME ERROR: BAD FORMAT"
		}
		if !m.sim.ChangePIN(args[0], args[1]) {
			return "+CME ERROR: BAD PIN"
		}
		return "+CPIN: READY"
	case sim.StatusPIN:
		if len(args) == 1 && m.sim.CheckPIN(args[0]) {
			return "+CPIN: READY"
		}
		return "+CME ERROR: BAD PIN"
	case sim.StatusPUK:
		if len(args) == 2 && m.sim.CheckPUK(args[0], args[1]) {
			return "+CPIN: READY"
		}
		return "+CME ERROR: BAD PUK"
	default:
		return "+CPIN: PH-NET PIN"
	}
}

func (m *Modem) handlePINRetries(cmd string) string {
	switch strings.Trim(strings.TrimPrefix(cmd, "+CPINR="), `"`) {
	case "SIM PIN":
		return fmt.Sprintf("+CPINR: SIM PIN,%d,%d\r\n", m.sim.PINRetriesLeft(), sim.PINRetries)
	case "SIM PUK":
		return fmt.Sprintf("+CPINR: SIM PUK,%d,%d\r\n", m.sim.PUKRetriesLeft(), sim.PUKRetries)
	default:
		return "+CME ERROR: 50\r\n"
	}
}

// SIMStatus returns the card state.
func (m *Modem) SIMStatus() sim.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.Status()
}

// SetSIMStatus forces the card state, e.g. to require a PIN.
func (m *Modem) SetSIMStatus(s sim.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sim.SetStatus(s)
}

// ReadEF reads a SIM file, a record when record > 0.
func (m *Modem) ReadEF(id uint16, record int) sim.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.ReadEF(id, record)
}

// WriteEF updates a SIM file, a record when record > 0.
func (m *Modem) WriteEF(id uint16, record int, data string) sim.Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sim.WriteEF(id, record, data)
}

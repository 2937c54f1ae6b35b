package modem

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// RegMode is the +CREG/+CGREG unsolicited reporting mode.
type RegMode int

const (
	RegModeOff      RegMode = 0
	RegModeState    RegMode = 1
	RegModeLocation RegMode = 2
)

// RegState is a registration status, TS 27.007 7.2.
type RegState int

const (
	RegUnregistered RegState = 0
	RegHome         RegState = 1
	RegSearching    RegState = 2
	RegDenied       RegState = 3
	RegUnknown      RegState = 4
	RegRoaming      RegState = 5
)

var regStateNames = map[string]RegState{
	"unregistered": RegUnregistered,
	"off":          RegUnregistered,
	"home":         RegHome,
	"on":           RegHome,
	"searching":    RegSearching,
	"denied":       RegDenied,
	"roaming":      RegRoaming,
}

// ParseRegState maps a console name such as "home" or "roaming".
func ParseRegState(name string) (RegState, bool) {
	s, ok := regStateNames[strings.ToLower(name)]
	return s, ok
}

func (s RegState) String() string {
	switch s {
	case RegUnregistered:
		return "unregistered"
	case RegHome:
		return "home"
	case RegSearching:
		return "searching"
	case RegDenied:
		return "denied"
	case RegRoaming:
		return "roaming"
	default:
		return "unknown"
	}
}

func (s RegState) registered() bool { return s == RegHome || s == RegRoaming }

// NetworkType is the data bearer reported in +CGREG.
type NetworkType int

const (
	NetworkUnknown NetworkType = iota
	NetworkGPRS
	NetworkEDGE
	NetworkUMTS
	NetworkLTE
	NetworkCDMA1X
	NetworkEVDO
)

var networkTypeNames = []struct {
	name string
	typ  NetworkType
}{
	{"gprs", NetworkGPRS},
	{"edge", NetworkEDGE},
	{"umts", NetworkUMTS},
	{"hsdpa", NetworkUMTS},
	{"full", NetworkUMTS},
	{"lte", NetworkLTE},
	{"cdma", NetworkCDMA1X},
	{"evdo", NetworkEVDO},
}

// ParseNetworkType maps a console speed name to its network type.
func ParseNetworkType(name string) (NetworkType, bool) {
	name = strings.ToLower(name)
	for _, n := range networkTypeNames {
		if n.name == name {
			return n.typ, true
		}
	}
	return NetworkUnknown, false
}

func (t NetworkType) String() string {
	for _, n := range networkTypeNames {
		if n.typ == t {
			return n.name
		}
	}
	return "unknown"
}

// family is the technology a data network type runs on.
func (t NetworkType) family() Tech {
	switch t {
	case NetworkLTE:
		return TechLTE
	case NetworkCDMA1X, NetworkEVDO:
		return TechCDMA
	default:
		return TechGSM
	}
}

var (
	ErrInvalidValue  = errors.New("invalid value")
	ErrInvalidRange  = errors.New("value out of range")
	ErrUnknownEntity = errors.New("unknown name")
)

func (m *Modem) hasNetwork() bool {
	return m.radioOn && m.operIndex >= 0 && m.operIndex < m.operCount &&
		m.selection != SelectionDeregistration
}

// setVoiceRegistration updates the voice state and reports it per the
// current mode.
func (m *Modem) setVoiceRegistration(state RegState) {
	m.voiceState = state
	switch state {
	case RegHome:
		m.operIndex = operHome
	case RegRoaming:
		m.operIndex = operRoaming
	default:
		m.operIndex = operNone
	}

	switch m.voiceMode {
	case RegModeState:
		m.unsol("+CREG: %d,%d", m.voiceMode, m.voiceState)
	case RegModeLocation:
		m.unsol(`+CREG: %d,%d,"%04x","%07x"`, m.voiceMode, m.voiceState, m.lac, m.ci)
	}
}

func (m *Modem) setDataRegistration(state RegState) {
	m.dataState = state
	if !state.registered() {
		if m.deactivateAll() > 0 {
			m.unsol("+CGEV: ME DETACH")
		}
	}

	switch m.dataMode {
	case RegModeState:
		m.unsol("+CGREG: %d,%d", m.dataMode, m.dataState)
	case RegModeLocation:
		m.unsol(`+CGREG: %d,%d,"%04x","%07x","%08x"`, m.dataMode, m.dataState, m.lac, m.ci, int(m.dataNetwork))
	}
}

// VoiceRegistration returns the voice registration state.
func (m *Modem) VoiceRegistration() RegState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.voiceState
}

// SetVoiceRegistration changes the voice registration state.
func (m *Modem) SetVoiceRegistration(state RegState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setVoiceRegistration(state)
}

// DataRegistration returns the data registration state.
func (m *Modem) DataRegistration() RegState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataState
}

// SetDataRegistration changes the data registration state; leaving
// home/roaming detaches every active context.
func (m *Modem) SetDataRegistration(state RegState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDataRegistration(state)
}

// DataNetworkType returns the current data bearer.
func (m *Modem) DataNetworkType() NetworkType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dataNetwork
}

// SetDataNetworkType changes the bearer, re-announces data registration and
// moves the technology to the bearer's family.
func (m *Modem) SetDataNetworkType(t NetworkType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dataNetwork = t
	m.setDataRegistration(m.dataState)
	if _, err := m.setTechnology(t.family(), 0); err != nil {
		m.log.Warn("Technology not allowed by preferred mask",
			logger.String("network", t.String()), logger.Error(err))
	}
}

// Location returns the location area code and cell id.
func (m *Modem) Location() (lac, ci int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lac, m.ci
}

// SetLocation moves the modem to another cell and re-announces voice
// registration when anything changed.
func (m *Modem) SetLocation(lac, ci int) error {
	if lac < 0 || lac > 0xffff || ci < 0 || ci > 0xfffffff {
		return fmt.Errorf("%w: lac %d ci %d", ErrInvalidRange, lac, ci)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.lac == lac && m.ci == ci {
		return nil
	}
	m.lac, m.ci = lac, ci
	m.setVoiceRegistration(m.voiceState)
	return nil
}

// RadioOn reports whether the radio is powered.
func (m *Modem) RadioOn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.radioOn
}

func (m *Modem) handleRadioPowerQuery(string) string {
	if m.radioOn {
		return "+CFUN: 1"
	}
	return "+CFUN: 0"
}

// handleRadioPower acknowledges +CFUN before the registration changes it
// triggers are reported.
func (m *Modem) handleRadioPower(cmd string) string {
	var on bool
	switch cmd {
	case "+CFUN=0":
	case "+CFUN=1":
		on = true
	default:
		return "+CME ERROR: 50"
	}
	if on == m.radioOn {
		return "OK"
	}
	m.reply("OK")
	m.radioOn = on
	state := RegUnregistered
	if on {
		state = RegHome
	}
	m.setVoiceRegistration(state)
	m.setDataRegistration(state)
	return alreadyReplied
}

func (m *Modem) handleNetworkRegistration(cmd string) string {
	data := strings.HasPrefix(cmd, "+CGREG")
	arg := strings.TrimPrefix(strings.TrimPrefix(cmd, "+CGREG"), "+CREG")

	switch arg {
	case "?":
		if data {
			return fmt.Sprintf(`+CGREG: %d,%d,"%04x","%07x","%04x"`,
				m.dataMode, m.dataState, m.lac, m.ci, int(m.dataNetwork))
		}
		if m.voiceMode == RegModeLocation {
			return fmt.Sprintf(`+CREG: %d,%d, "%04x", "%07x"`, m.voiceMode, m.voiceState, m.lac, m.ci)
		}
		return fmt.Sprintf("+CREG: %d,%d", m.voiceMode, m.voiceState)
	case "=0", "=1", "=2":
		mode := RegMode(arg[1] - '0')
		if data {
			m.dataMode = mode
		} else {
			m.voiceMode = mode
		}
		return ""
	case "=?":
		if data {
			return "+CGREG: (0-2)"
		}
		return "+CREG: (0-2)"
	default:
		return "ERROR: BAD COMMAND"
	}
}

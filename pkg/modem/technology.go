package modem

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Tech is a radio access technology.
type Tech int

const (
	TechGSM Tech = iota
	TechWCDMA
	TechCDMA
	TechEVDO
	TechLTE
	techCount
)

// preferredShift moves a technology bit into the next priority byte.
const preferredShift = 8

var techNames = [techCount]string{"gsm", "wcdma", "cdma", "evdo", "lte"}

func (t Tech) String() string {
	if t >= 0 && t < techCount {
		return techNames[t]
	}
	return "unknown"
}

// ParseTech maps a technology name such as "wcdma".
func ParseTech(name string) (Tech, bool) {
	name = strings.ToLower(name)
	for i, n := range techNames {
		if n == name {
			return Tech(i), true
		}
	}
	return 0, false
}

// PreferredMask enables technologies: bit tech+8*i is set when tech is
// allowed at priority i, higher i being preferred.
type PreferredMask int32

const (
	MaskGSMWCDMAPref PreferredMask = 1<<TechGSM | 1<<(TechWCDMA+preferredShift)
	MaskGSM          PreferredMask = 1 << TechGSM
	MaskWCDMA        PreferredMask = 1 << TechWCDMA
	MaskGSMWCDMA     PreferredMask = 1<<TechGSM | 1<<TechWCDMA
	MaskCDMAEVDO     PreferredMask = 1<<TechCDMA | 1<<TechEVDO
	MaskCDMA         PreferredMask = 1 << TechCDMA
	MaskEVDO         PreferredMask = 1 << TechEVDO
	MaskAll          PreferredMask = 1<<TechGSM | 1<<TechWCDMA | 1<<TechCDMA | 1<<TechEVDO
	MaskLTE          PreferredMask = 1 << TechLTE
	MaskLTEGSMWCDMA  PreferredMask = 1<<(TechLTE+preferredShift) | 1<<TechGSM | 1<<TechWCDMA
)

var maskNames = []struct {
	name string
	mask PreferredMask
}{
	{"gsm/wcdma", MaskGSMWCDMAPref},
	{"gsm", MaskGSM},
	{"wcdma", MaskWCDMA},
	{"gsm/wcdma-auto", MaskGSMWCDMA},
	{"cdma/evdo", MaskCDMAEVDO},
	{"cdma", MaskCDMA},
	{"evdo", MaskEVDO},
	{"gsm/wcdma/cdma/evdo", MaskAll},
	{"lte", MaskLTE},
	{"lte/gsm/wcdma", MaskLTEGSMWCDMA},
}

// ParsePreferredMask maps a mask name such as "gsm/wcdma-auto".
func ParsePreferredMask(name string) (PreferredMask, bool) {
	name = strings.ToLower(name)
	for _, n := range maskNames {
		if n.name == name {
			return n.mask, true
		}
	}
	return 0, false
}

// String returns the mask name, or its hex value for unnamed masks.
func (p PreferredMask) String() string {
	for _, n := range maskNames {
		if n.mask == p {
			return n.name
		}
	}
	return strconv.FormatInt(int64(p), 16)
}

// Allows reports whether t is enabled at any priority.
func (p PreferredMask) Allows(t Tech) bool {
	for i := 3; i >= 0; i-- {
		if p&(1<<(int(t)+i*preferredShift)) != 0 {
			return true
		}
	}
	return false
}

// Valid reports whether the mask enables at least one technology.
func (p PreferredMask) Valid() bool {
	_, ok := p.choose()
	return ok
}

// choose returns the lowest numbered technology of the highest priority
// byte that has any bit set.
func (p PreferredMask) choose() (Tech, bool) {
	for i := 3; i >= 0; i-- {
		for t := TechGSM; t < techCount; t++ {
			if p&(1<<(int(t)+i*preferredShift)) != 0 {
				return t, true
			}
		}
	}
	return 0, false
}

var (
	ErrEmptyMask       = errors.New("at least one technology must be enabled")
	ErrTechNotInMask   = errors.New("technology not enabled by preferred mask")
	errBadPreferredArg = errors.New("invalid preferred mode")
)

// setTechnology switches technology and mask, a zero mask keeping the
// current one. It returns the technology in effect afterwards.
func (m *Modem) setTechnology(tech Tech, mask PreferredMask) (Tech, error) {
	if mask == 0 {
		mask = m.preferredMask
	}
	if !mask.Valid() {
		return m.tech, ErrEmptyMask
	}
	if mask != m.preferredMask {
		m.preferredMask = mask
		m.persistInt(nvPreferredMode, int(mask))
		if !mask.Allows(tech) {
			if t, ok := mask.choose(); ok {
				tech = t
			}
		}
	}
	if tech != m.tech {
		if !m.preferredMask.Allows(tech) {
			return m.tech, fmt.Errorf("%w: %s", ErrTechNotInMask, tech)
		}
		m.tech = tech
		m.persistString(nvTechnology, tech.String())
	}
	return m.tech, nil
}

// Technology returns the current technology and preferred mask.
func (m *Modem) Technology() (Tech, PreferredMask) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tech, m.preferredMask
}

// SetTechnology switches technology, and the preferred mask unless mask is
// zero. A change is announced with an unsolicited +CTEC.
func (m *Modem) SetTechnology(tech Tech, mask PreferredMask) error {
	if tech < 0 || tech >= techCount {
		return fmt.Errorf("%w: technology %d", ErrInvalidRange, tech)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	current := m.tech
	t, err := m.setTechnology(tech, mask)
	if err != nil {
		return err
	}
	if t != current {
		m.unsol("+CTEC: %d", t)
	}
	return nil
}

// parsePreferred reads the hex mask of +CTEC, optionally quoted.
func parsePreferred(s string) (PreferredMask, error) {
	s = strings.TrimPrefix(s, `"`)
	s = strings.TrimSuffix(s, `"`)
	if s == "" {
		return 0, errBadPreferredArg
	}
	v, err := strconv.ParseInt(s, 16, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errBadPreferredArg, err)
	}
	return PreferredMask(v), nil
}

func (m *Modem) handleTech(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+CTEC")
	if arg == "?" {
		return fmt.Sprintf("+CTEC: %d,%x", m.tech, int32(m.preferredMask))
	}
	if len(arg) < 2 || arg[0] != '=' || arg[1] < '0' || arg[1] >= '0'+byte(techCount) {
		return fmt.Sprintf("ERROR: %s: Unknown Technology", strings.TrimPrefix(arg, "="))
	}

	tech := Tech(arg[1] - '0')
	mask := m.preferredMask
	if rest := arg[2:]; rest != "" {
		if rest[0] != ',' {
			return fmt.Sprintf("ERROR: %s: Unknown Technology", arg[1:])
		}
		p, err := parsePreferred(rest[1:])
		if err != nil {
			return "ERROR: invalid preferred mode"
		}
		if p == 0 {
			return "ERROR: unable to set preferred mode"
		}
		mask = p
	}

	current := m.tech
	t, err := m.setTechnology(tech, mask)
	if err != nil {
		return "ERROR: unable to set preferred mode"
	}
	if t != current {
		return fmt.Sprintf("+CTEC: %d", t)
	}
	return "+CTEC: DONE"
}

// SubscriptionSource is where CDMA subscription data comes from.
type SubscriptionSource int

const (
	SubscriptionRUIM SubscriptionSource = 0
	SubscriptionNV   SubscriptionSource = 1
)

// ParseSubscriptionSource maps "ruim" or "nv".
func ParseSubscriptionSource(name string) (SubscriptionSource, bool) {
	switch strings.ToLower(name) {
	case "ruim":
		return SubscriptionRUIM, true
	case "nv":
		return SubscriptionNV, true
	}
	return 0, false
}

func (s SubscriptionSource) String() string {
	if s == SubscriptionRUIM {
		return "ruim"
	}
	return "nv"
}

func (m *Modem) setSubscriptionSource(s SubscriptionSource) bool {
	if s == m.subscriptionSource {
		return false
	}
	m.subscriptionSource = s
	m.persistInt(nvSubscriptionSource, int(s))
	return true
}

// SubscriptionSource returns the CDMA subscription source.
func (m *Modem) SubscriptionSource() SubscriptionSource {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subscriptionSource
}

// SetSubscriptionSource changes the CDMA subscription source, announcing a
// change with +CCSS.
func (m *Modem) SetSubscriptionSource(s SubscriptionSource) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setSubscriptionSource(s) {
		m.unsol("+CCSS: %d", s)
	}
}

func (m *Modem) handleSubscriptionSource(cmd string) string {
	switch strings.TrimPrefix(cmd, "+CCSS") {
	case "?":
		return fmt.Sprintf("+CCSS: %d", m.subscriptionSource)
	case "=0":
		m.setSubscriptionSource(SubscriptionRUIM)
		return fmt.Sprintf("+CCSS: %d", m.subscriptionSource)
	case "=1":
		m.setSubscriptionSource(SubscriptionNV)
		return fmt.Sprintf("+CCSS: %d", m.subscriptionSource)
	}
	return "ERROR: Invalid subscription source"
}

// RoamingPreference returns the CDMA roaming preference (0 home, 1
// affiliated, 2 any).
func (m *Modem) RoamingPreference() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.roamingPref
}

func (m *Modem) handleRoamPref(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+WRMP")
	if arg == "?" {
		return fmt.Sprintf("+WRMP: %d", m.roamingPref)
	}
	if strings.HasPrefix(arg, "=") {
		if v, err := strconv.Atoi(arg[1:]); err == nil {
			m.roamingPref = v
			m.persistInt(nvRoamingPref, v)
			return "OK"
		}
	}
	return "ERROR"
}

// EmergencyMode reports whether the modem is in emergency callback mode.
func (m *Modem) EmergencyMode() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inEmergencyMode
}

func (m *Modem) setEmergencyMode(on bool) bool {
	if on == m.inEmergencyMode {
		return false
	}
	m.inEmergencyMode = on
	v := 0
	if on {
		v = 1
	}
	m.persistInt(nvInECBM, v)
	return true
}

func (m *Modem) handleEmergencyMode(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+WSOS")
	switch {
	case arg == "?":
		return fmt.Sprintf("+WSOS: %d", boolInt(m.inEmergencyMode))
	case arg == "=?":
		return "+WSOS: (0)"
	case strings.HasPrefix(arg, "=") && len(arg) > 1:
		v, err := strconv.Atoi(arg[1:])
		if err != nil {
			return "ERROR"
		}
		if m.setEmergencyMode(v != 0) {
			return fmt.Sprintf("+WSOS: %d", boolInt(m.inEmergencyMode))
		}
	}
	return "ERROR"
}

// PRLVersion returns the CDMA preferred roaming list version.
func (m *Modem) PRLVersion() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.prlVersion
}

// SetPRLVersion changes the PRL version, announcing a change with +WPRL.
func (m *Modem) SetPRLVersion(v int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if v == m.prlVersion {
		return
	}
	m.prlVersion = v
	m.persistInt(nvPRLVersion, v)
	m.unsol("+WPRL: %d", v)
}

func (m *Modem) handlePRLVersion(cmd string) string {
	if strings.TrimPrefix(cmd, "+WPRL") == "?" {
		return fmt.Sprintf("+WPRL: %d", m.prlVersion)
	}
	return "ERROR"
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

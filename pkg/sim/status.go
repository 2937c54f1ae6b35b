package sim

// Status is the card state reported by +CPIN?.
type Status int

const (
	StatusAbsent Status = iota
	StatusNotReady
	StatusReady
	StatusPIN
	StatusPUK
	StatusNetworkPersonalization
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "ABSENT"
	case StatusNotReady:
		return "NOT READY"
	case StatusReady:
		return "READY"
	case StatusPIN:
		return "SIM PIN"
	case StatusPUK:
		return "SIM PUK"
	case StatusNetworkPersonalization:
		return "PH-NET PIN"
	default:
		return "UNKNOWN"
	}
}

// ParseStatus maps the console names (absent, ready, pin, puk, netperso,
// notready) to a Status.
func ParseStatus(name string) (Status, bool) {
	switch name {
	case "absent":
		return StatusAbsent, true
	case "notready", "not-ready":
		return StatusNotReady, true
	case "ready":
		return StatusReady, true
	case "pin":
		return StatusPIN, true
	case "puk":
		return StatusPUK, true
	case "netperso", "network-personalization":
		return StatusNetworkPersonalization, true
	}
	return 0, false
}

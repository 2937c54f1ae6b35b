package modem

// Status is a point-in-time view of a modem for the console.
type Status struct {
	Instance         int           `json:"instance"`
	Number           string        `json:"number"`
	RadioOn          bool          `json:"radio_on"`
	VoiceState       string        `json:"voice_state"`
	DataState        string        `json:"data_state"`
	DataNetwork      string        `json:"data_network"`
	Technology       string        `json:"technology"`
	PreferredMask    string        `json:"preferred_mask"`
	Operator         string        `json:"operator,omitempty"`
	LAC              int           `json:"lac"`
	CI               int           `json:"ci"`
	Signal           Signal        `json:"signal"`
	SIM              string        `json:"sim"`
	EmergencyMode    bool          `json:"emergency_mode"`
	SMSC             string        `json:"smsc"`
	Calls            int           `json:"calls"`
	ActiveContexts   int           `json:"active_contexts"`
	LastCallFailCode int           `json:"last_call_fail_cause"`
	Contexts         []DataContext `json:"contexts,omitempty"`
}

// Status returns a snapshot of the modem state.
func (m *Modem) Status() Status {
	contexts := m.DataContexts()

	m.mu.Lock()
	defer m.mu.Unlock()
	s := Status{
		Instance:         m.instance,
		Number:           m.number,
		RadioOn:          m.radioOn,
		VoiceState:       m.voiceState.String(),
		DataState:        m.dataState.String(),
		DataNetwork:      m.dataNetwork.String(),
		Technology:       m.tech.String(),
		PreferredMask:    m.preferredMask.String(),
		LAC:              m.lac,
		CI:               m.ci,
		Signal:           Signal{RSSI: m.rssi, BER: m.ber, RxLev: m.rxlev, RSRP: m.rsrp, RSSNR: m.rssnr},
		SIM:              m.sim.Status().String(),
		EmergencyMode:    m.inEmergencyMode,
		SMSC:             m.smsc.String(),
		Calls:            len(m.calls),
		LastCallFailCode: int(m.lastCause),
		Contexts:         contexts,
	}
	if m.operIndex >= 0 && m.operIndex < maxOperators {
		s.Operator = m.operators[m.operIndex].Names[NameLong]
	}
	for _, ctx := range contexts {
		if ctx.Active {
			s.ActiveContexts++
		}
	}
	return s
}

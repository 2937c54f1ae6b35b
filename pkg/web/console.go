package web

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/sim"
)

type callView struct {
	ID                 int    `json:"id"`
	Direction          string `json:"direction"`
	State              string `json:"state"`
	Multiparty         bool   `json:"multiparty"`
	Number             string `json:"number"`
	NumberPresentation int    `json:"number_presentation"`
	Remote             bool   `json:"remote"`
}

func (a *API) handleCalls(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	calls := m.Calls()
	out := make([]callView, 0, len(calls))
	for _, c := range calls {
		dir := "outbound"
		if c.Dir == modem.CallInbound {
			dir = "inbound"
		}
		out = append(out, callView{
			ID:                 c.ID,
			Direction:          dir,
			State:              c.State.String(),
			Multiparty:         c.Multiparty,
			Number:             c.Number,
			NumberPresentation: c.NumberPresentation,
			Remote:             c.Remote,
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

type inboundRequest struct {
	Number             string `json:"number"`
	NumberPresentation int    `json:"number_presentation"`
	Name               string `json:"name"`
	NamePresentation   int    `json:"name_presentation"`
}

func (a *API) handleInboundCall(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req inboundRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := m.AddInboundCall(req.Number, req.NumberPresentation, req.Name, req.NamePresentation); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "inbound_call")
}

func (a *API) handleClearCalls(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	m.ClearCalls()
	a.done(w, m, "clear_calls")
}

func (a *API) handleCallAction(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	number, action := r.PathValue("number"), r.PathValue("action")
	var err error
	switch action {
	case "busy":
		err = m.Busy(number)
	case "hold":
		err = m.UpdateCall(number, modem.CallHeld)
	case "accept":
		err = m.UpdateCall(number, modem.CallActive)
	case "disconnect":
		err = m.Disconnect(number)
	default:
		err = fmt.Errorf("%w: unknown call action %q", errBadRequest, action)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "call_"+action)
}

func (a *API) handleSignal(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	a.writeJSON(w, http.StatusOK, m.Signal())
}

func (a *API) handleSetSignal(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	req := m.Signal()
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := m.SetSignal(req.RSSI, req.BER); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "signal")
}

func (a *API) handleSetLTESignal(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	req := m.Signal()
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := m.SetLTESignal(req.RxLev, req.RSRP, req.RSSNR); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "lte_signal")
}

type location struct {
	LAC int `json:"lac"`
	CI  int `json:"ci"`
}

func (a *API) handleLocation(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	lac, ci := m.Location()
	a.writeJSON(w, http.StatusOK, location{LAC: lac, CI: ci})
}

func (a *API) handleSetLocation(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req location
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := m.SetLocation(req.LAC, req.CI); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "location")
}

type registrationRequest struct {
	Voice       string `json:"voice,omitempty"`
	Data        string `json:"data,omitempty"`
	DataNetwork string `json:"data_network,omitempty"`
}

func (a *API) handleSetRegistration(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req registrationRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	// Validate everything before changing anything.
	var (
		voice, data modem.RegState
		network     modem.NetworkType
		ok          bool
	)
	if req.Voice != "" {
		if voice, ok = modem.ParseRegState(req.Voice); !ok {
			a.writeError(w, fmt.Errorf("%w: voice state %q", modem.ErrUnknownEntity, req.Voice))
			return
		}
	}
	if req.Data != "" {
		if data, ok = modem.ParseRegState(req.Data); !ok {
			a.writeError(w, fmt.Errorf("%w: data state %q", modem.ErrUnknownEntity, req.Data))
			return
		}
	}
	if req.DataNetwork != "" {
		if network, ok = modem.ParseNetworkType(req.DataNetwork); !ok {
			a.writeError(w, fmt.Errorf("%w: data network %q", modem.ErrUnknownEntity, req.DataNetwork))
			return
		}
	}
	if req.Voice != "" {
		m.SetVoiceRegistration(voice)
	}
	if req.Data != "" {
		m.SetDataRegistration(data)
	}
	if req.DataNetwork != "" {
		m.SetDataNetworkType(network)
	}
	a.done(w, m, "registration")
}

type technologyView struct {
	Technology    string `json:"technology"`
	PreferredMask string `json:"preferred_mask,omitempty"`
}

func (a *API) handleTechnology(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	tech, mask := m.Technology()
	a.writeJSON(w, http.StatusOK, technologyView{Technology: tech.String(), PreferredMask: mask.String()})
}

func (a *API) handleSetTechnology(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req technologyView
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	tech, ok := modem.ParseTech(req.Technology)
	if !ok {
		a.writeError(w, fmt.Errorf("%w: technology %q", modem.ErrUnknownEntity, req.Technology))
		return
	}
	var mask modem.PreferredMask
	if req.PreferredMask != "" {
		if mask, ok = modem.ParsePreferredMask(req.PreferredMask); !ok {
			a.writeError(w, fmt.Errorf("%w: preferred mask %q", modem.ErrUnknownEntity, req.PreferredMask))
			return
		}
	}
	if err := m.SetTechnology(tech, mask); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "technology")
}

type cdmaView struct {
	SubscriptionSource string `json:"subscription_source,omitempty"`
	PRLVersion         *int   `json:"prl_version,omitempty"`
	RoamingPreference  int    `json:"roaming_preference"`
}

func (a *API) handleCDMA(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	prl := m.PRLVersion()
	a.writeJSON(w, http.StatusOK, cdmaView{
		SubscriptionSource: m.SubscriptionSource().String(),
		PRLVersion:         &prl,
		RoamingPreference:  m.RoamingPreference(),
	})
}

func (a *API) handleSetCDMA(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req cdmaView
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	var (
		source modem.SubscriptionSource
		ok     bool
	)
	if req.SubscriptionSource != "" {
		if source, ok = modem.ParseSubscriptionSource(req.SubscriptionSource); !ok {
			a.writeError(w, fmt.Errorf("%w: subscription source %q", modem.ErrUnknownEntity, req.SubscriptionSource))
			return
		}
	}
	if req.PRLVersion != nil && *req.PRLVersion < 0 {
		a.writeError(w, fmt.Errorf("%w: prl version %d", modem.ErrInvalidRange, *req.PRLVersion))
		return
	}
	if req.SubscriptionSource != "" {
		m.SetSubscriptionSource(source)
	}
	if req.PRLVersion != nil {
		m.SetPRLVersion(*req.PRLVersion)
	}
	a.done(w, m, "cdma")
}

type operatorView struct {
	Index   int    `json:"index"`
	Status  int    `json:"status"`
	Long    string `json:"long"`
	Short   string `json:"short"`
	Numeric string `json:"numeric"`
}

func (a *API) handleOperators(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	ops := m.Operators()
	out := make([]operatorView, 0, len(ops))
	for i, op := range ops {
		out = append(out, operatorView{
			Index:   i,
			Status:  int(op.Status),
			Long:    op.Names[modem.NameLong],
			Short:   op.Names[modem.NameShort],
			Numeric: op.Names[modem.NameNumeric],
		})
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleSetOperator(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: operator index %q", errBadRequest, r.PathValue("index")))
		return
	}
	var req operatorView
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := m.SetOperatorNames(index, req.Long, req.Short, req.Numeric); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "operator")
}

type pduRequest struct {
	PDU  string `json:"pdu,omitempty"`
	From string `json:"from,omitempty"`
	Text string `json:"text,omitempty"`
}

func (a *API) handleSMS(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req pduRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	var err error
	if req.PDU != "" {
		err = m.ReceiveSMSPDU(req.PDU)
	} else {
		err = m.SendText(req.From, req.Text)
	}
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, "sms")
}

func (a *API) handleCBS(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	a.handlePDU(w, r, m, "cbs", m.ReceiveCBS)
}

func (a *API) handleSTK(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	a.handlePDU(w, r, m, "stk", m.SendSTK)
}

func (a *API) handlePDU(w http.ResponseWriter, r *http.Request, m *modem.Modem, operation string, deliver func(string) error) {
	var req pduRequest
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	if err := deliver(req.PDU); err != nil {
		a.writeError(w, err)
		return
	}
	a.done(w, m, operation)
}

func (a *API) handleTimeUpdate(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	m.SendTimeUpdate()
	a.done(w, m, "time")
}

func (a *API) handleSetSIMStatus(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	var req struct {
		Status string `json:"status"`
	}
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	status, ok := sim.ParseStatus(req.Status)
	if !ok {
		a.writeError(w, fmt.Errorf("%w: sim status %q", modem.ErrUnknownEntity, req.Status))
		return
	}
	m.SetSIMStatus(status)
	a.done(w, m, "sim_status")
}

type efView struct {
	File   string `json:"file"`
	Record int    `json:"record"`
	SW1    int    `json:"sw1"`
	SW2    int    `json:"sw2"`
	Data   string `json:"data"`
}

// parseEF reads a hex file id such as 6f40.
func parseEF(s string) (uint16, error) {
	id, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("%w: file id %q", errBadRequest, s)
	}
	return uint16(id), nil
}

func (a *API) writeEF(w http.ResponseWriter, file string, record int, resp sim.Response) {
	status := http.StatusOK
	if !resp.OK() {
		status = http.StatusUnprocessableEntity
	}
	a.writeJSON(w, status, efView{File: file, Record: record, SW1: int(resp.SW1), SW2: int(resp.SW2), Data: resp.Data})
}

func (a *API) handleReadEF(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	file := r.PathValue("file")
	id, err := parseEF(file)
	if err != nil {
		a.writeError(w, err)
		return
	}
	record := 0
	if s := r.URL.Query().Get("record"); s != "" {
		if record, err = strconv.Atoi(s); err != nil {
			a.writeError(w, fmt.Errorf("%w: record %q", errBadRequest, s))
			return
		}
	}
	a.writeEF(w, file, record, m.ReadEF(id, record))
}

func (a *API) handleWriteEF(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	file := r.PathValue("file")
	id, err := parseEF(file)
	if err != nil {
		a.writeError(w, err)
		return
	}
	var req efView
	if err := decode(r, &req); err != nil {
		a.writeError(w, err)
		return
	}
	resp := m.WriteEF(id, req.Record, req.Data)
	if resp.OK() && a.hub != nil {
		a.hub.BroadcastConsole(m.Instance(), "sim_file")
	}
	a.writeEF(w, file, req.Record, resp)
}

package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/registry"
	"github.com/dbehnke/modem-emu/pkg/sms"
)

const defaultHistoryLimit = 50

// API handles the console REST endpoints.
type API struct {
	reg     *registry.Registry
	hub     *WebSocketHub
	logger  *logger.Logger
	started time.Time
}

// NewAPI creates a new API instance. hub may be nil.
func NewAPI(reg *registry.Registry, hub *WebSocketHub, log *logger.Logger) *API {
	return &API{
		reg:     reg,
		hub:     hub,
		logger:  log.WithComponent("web.api"),
		started: time.Now(),
	}
}

// Register mounts every console route on mux.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/status", a.HandleStatus)
	mux.HandleFunc("GET /api/modems", a.HandleModems)
	mux.HandleFunc("GET /api/modems/{id}", a.withModem(a.handleModem))
	mux.HandleFunc("GET /api/modems/{id}/history", a.handleHistory)
	mux.HandleFunc("GET /api/history", a.handleNumberHistory)

	mux.HandleFunc("GET /api/modems/{id}/calls", a.withModem(a.handleCalls))
	mux.HandleFunc("POST /api/modems/{id}/calls", a.withModem(a.handleInboundCall))
	mux.HandleFunc("DELETE /api/modems/{id}/calls", a.withModem(a.handleClearCalls))
	mux.HandleFunc("POST /api/modems/{id}/calls/{number}/{action}", a.withModem(a.handleCallAction))

	mux.HandleFunc("GET /api/modems/{id}/signal", a.withModem(a.handleSignal))
	mux.HandleFunc("PUT /api/modems/{id}/signal", a.withModem(a.handleSetSignal))
	mux.HandleFunc("PUT /api/modems/{id}/signal/lte", a.withModem(a.handleSetLTESignal))

	mux.HandleFunc("GET /api/modems/{id}/location", a.withModem(a.handleLocation))
	mux.HandleFunc("PUT /api/modems/{id}/location", a.withModem(a.handleSetLocation))

	mux.HandleFunc("PUT /api/modems/{id}/registration", a.withModem(a.handleSetRegistration))
	mux.HandleFunc("GET /api/modems/{id}/technology", a.withModem(a.handleTechnology))
	mux.HandleFunc("PUT /api/modems/{id}/technology", a.withModem(a.handleSetTechnology))
	mux.HandleFunc("GET /api/modems/{id}/cdma", a.withModem(a.handleCDMA))
	mux.HandleFunc("PUT /api/modems/{id}/cdma", a.withModem(a.handleSetCDMA))

	mux.HandleFunc("GET /api/modems/{id}/operators", a.withModem(a.handleOperators))
	mux.HandleFunc("PUT /api/modems/{id}/operators/{index}", a.withModem(a.handleSetOperator))

	mux.HandleFunc("POST /api/modems/{id}/sms", a.withModem(a.handleSMS))
	mux.HandleFunc("POST /api/modems/{id}/cbs", a.withModem(a.handleCBS))
	mux.HandleFunc("POST /api/modems/{id}/stk", a.withModem(a.handleSTK))
	mux.HandleFunc("POST /api/modems/{id}/time", a.withModem(a.handleTimeUpdate))

	mux.HandleFunc("PUT /api/modems/{id}/sim/status", a.withModem(a.handleSetSIMStatus))
	mux.HandleFunc("GET /api/modems/{id}/sim/files/{file}", a.withModem(a.handleReadEF))
	mux.HandleFunc("PUT /api/modems/{id}/sim/files/{file}", a.withModem(a.handleWriteEF))
}

type modemHandler func(w http.ResponseWriter, r *http.Request, m *modem.Modem)

// withModem resolves {id} before calling h.
func (a *API) withModem(h modemHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.Atoi(r.PathValue("id"))
		if err != nil {
			a.writeError(w, fmt.Errorf("%w: %q", errBadRequest, r.PathValue("id")))
			return
		}
		inst, err := a.reg.Get(id)
		if err != nil {
			a.writeError(w, err)
			return
		}
		h(w, r, inst.Modem)
	}
}

var errBadRequest = errors.New("bad request")

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrUnknownInstance), errors.Is(err, modem.ErrNoSuchCall):
		return http.StatusNotFound
	case errors.Is(err, modem.ErrTooManyCalls):
		return http.StatusConflict
	case errors.Is(err, registry.ErrHistoryDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errBadRequest),
		errors.Is(err, modem.ErrInvalidRange),
		errors.Is(err, modem.ErrInvalidValue),
		errors.Is(err, modem.ErrUnknownEntity),
		errors.Is(err, modem.ErrBadNumber),
		errors.Is(err, modem.ErrBadPresentation),
		errors.Is(err, modem.ErrBadPDU),
		errors.Is(err, modem.ErrEmptyMask),
		errors.Is(err, modem.ErrTechNotInMask),
		errors.Is(err, sms.ErrBadAddress):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Warn("Failed to encode response", logger.Error(err))
	}
}

func (a *API) writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		a.logger.Error("Console request failed", logger.Error(err))
	}
	a.writeJSON(w, status, map[string]string{"error": err.Error()})
}

func decode(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: %v", errBadRequest, err)
	}
	return nil
}

// done answers a successful state change and tells the event feed.
func (a *API) done(w http.ResponseWriter, m *modem.Modem, operation string) {
	if a.hub != nil {
		a.hub.BroadcastConsole(m.Instance(), operation)
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleStatus handles the /api/status endpoint
func (a *API) HandleStatus(w http.ResponseWriter, r *http.Request) {
	b := Build()
	a.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":     "running",
		"service":    "modem-emu",
		"version":    b.Version,
		"commit":     b.Commit,
		"build_time": b.BuildTime,
		"instances":  len(a.reg.Instances()),
		"uptime":     time.Since(a.started).Round(time.Second).String(),
	})
}

// HandleModems lists the status of every instance.
func (a *API) HandleModems(w http.ResponseWriter, r *http.Request) {
	instances := a.reg.Instances()
	out := make([]modem.Status, 0, len(instances))
	for _, inst := range instances {
		out = append(out, inst.Modem.Status())
	}
	a.writeJSON(w, http.StatusOK, out)
}

func (a *API) handleModem(w http.ResponseWriter, r *http.Request, m *modem.Modem) {
	a.writeJSON(w, http.StatusOK, m.Status())
}

func (a *API) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil {
		a.writeError(w, fmt.Errorf("%w: %q", errBadRequest, r.PathValue("id")))
		return
	}
	limit, err := historyLimit(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	recs, err := a.reg.History(id, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, recs)
}

// handleNumberHistory lists calls to or from ?number= across instances.
func (a *API) handleNumberHistory(w http.ResponseWriter, r *http.Request) {
	number := r.URL.Query().Get("number")
	if number == "" {
		a.writeError(w, fmt.Errorf("%w: number is required", errBadRequest))
		return
	}
	limit, err := historyLimit(r)
	if err != nil {
		a.writeError(w, err)
		return
	}
	recs, err := a.reg.HistoryByNumber(number, limit)
	if err != nil {
		a.writeError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, recs)
}

func historyLimit(r *http.Request) (int, error) {
	s := r.URL.Query().Get("limit")
	if s == "" {
		return defaultHistoryLimit, nil
	}
	limit, err := strconv.Atoi(s)
	if err != nil || limit <= 0 {
		return 0, fmt.Errorf("%w: limit %q", errBadRequest, s)
	}
	return limit, nil
}

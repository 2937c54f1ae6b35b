package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/registry"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/sim"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Config{Level: "error", Output: io.Discard})
}

func newTestRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg, err := registry.New(registry.Options{
		BasePort:  5554,
		Instances: 2,
		Scheduler: schedule.NewManualScheduler(),
		OpenStore: registry.MemoryStores(testLogger()),
		Logger:    testLogger(),
	})
	if err != nil {
		t.Fatalf("registry.New: %v", err)
	}
	t.Cleanup(reg.Close)
	return reg
}

func newTestMux(t *testing.T) (*http.ServeMux, *registry.Registry) {
	t.Helper()
	reg := newTestRegistry(t)
	mux := http.NewServeMux()
	NewAPI(reg, nil, testLogger()).Register(mux)
	return mux, reg
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func expectStatus(t *testing.T, w *httptest.ResponseRecorder, want int) {
	t.Helper()
	if w.Code != want {
		t.Fatalf("Expected status %d, got %d: %s", want, w.Code, w.Body.String())
	}
}

func modemOf(t *testing.T, reg *registry.Registry, id int) *modem.Modem {
	t.Helper()
	inst, err := reg.Get(id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return inst.Modem
}

func TestAPI_Status(t *testing.T) {
	SetVersionInfo("1.2.3", "", "")
	t.Cleanup(func() { SetVersionInfo("dev", "unknown", "unknown") })
	mux, _ := newTestMux(t)

	w := do(t, mux, http.MethodGet, "/api/status", "")
	expectStatus(t, w, http.StatusOK)

	var result map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&result); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if result["status"] != "running" || result["instances"] != float64(2) {
		t.Errorf("unexpected status %v", result)
	}
	if result["version"] != "1.2.3" || result["commit"] != "unknown" {
		t.Errorf("unexpected build stamps %v", result)
	}
}

func TestAPI_Modems(t *testing.T) {
	mux, _ := newTestMux(t)

	w := do(t, mux, http.MethodGet, "/api/modems", "")
	expectStatus(t, w, http.StatusOK)
	var list []modem.Status
	if err := json.NewDecoder(w.Body).Decode(&list); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(list) != 2 || list[1].Number != "15555215556" {
		t.Fatalf("unexpected modems %+v", list)
	}

	w = do(t, mux, http.MethodGet, "/api/modems/0", "")
	expectStatus(t, w, http.StatusOK)
	var st modem.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if st.Instance != 0 || st.SIM != "READY" {
		t.Errorf("unexpected status %+v", st)
	}

	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/9", ""), http.StatusNotFound)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/abc", ""), http.StatusBadRequest)
}

func TestAPI_Calls(t *testing.T) {
	mux, reg := newTestMux(t)
	m := modemOf(t, reg, 0)

	w := do(t, mux, http.MethodPost, "/api/modems/0/calls", `{"number":"5551234","name":"Bob"}`)
	expectStatus(t, w, http.StatusNoContent)

	w = do(t, mux, http.MethodGet, "/api/modems/0/calls", "")
	expectStatus(t, w, http.StatusOK)
	var calls []callView
	if err := json.NewDecoder(w.Body).Decode(&calls); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(calls) != 1 || calls[0].Direction != "inbound" || calls[0].State != "incoming" {
		t.Fatalf("unexpected calls %+v", calls)
	}

	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls/5551234/accept", ""), http.StatusNoContent)
	if c := m.Calls(); c[0].State != modem.CallActive {
		t.Errorf("expected active call, got %s", c[0].State)
	}
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls/5551234/hold", ""), http.StatusNoContent)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls/5551234/ring", ""), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls/5550000/busy", ""), http.StatusNotFound)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls/5551234/busy", ""), http.StatusNoContent)
	if m.LastCallFailCause() != modem.CauseBusy {
		t.Errorf("expected busy cause, got %d", m.LastCallFailCause())
	}

	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls", `{"number":"abc"}`), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/calls", `{bad json`), http.StatusBadRequest)

	do(t, mux, http.MethodPost, "/api/modems/0/calls", `{"number":"5551234"}`)
	expectStatus(t, do(t, mux, http.MethodDelete, "/api/modems/0/calls", ""), http.StatusNoContent)
	if n := len(m.Calls()); n != 0 {
		t.Errorf("expected no calls, got %d", n)
	}
}

func TestAPI_SignalAndLocation(t *testing.T) {
	mux, reg := newTestMux(t)
	m := modemOf(t, reg, 1)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/1/signal", `{"rssi":20}`), http.StatusNoContent)
	if s := m.Signal(); s.RSSI != 20 || s.BER != 99 {
		t.Errorf("unexpected signal %+v", s)
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/1/signal", `{"rssi":40}`), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/1/signal/lte", `{"rxlev":30,"rsrp":100,"rssnr":-10}`), http.StatusNoContent)

	w := do(t, mux, http.MethodGet, "/api/modems/1/signal", "")
	expectStatus(t, w, http.StatusOK)
	var s modem.Signal
	if err := json.NewDecoder(w.Body).Decode(&s); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if s.RxLev != 30 || s.RSRP != 100 || s.RSSNR != -10 {
		t.Errorf("unexpected signal %+v", s)
	}

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/1/location", `{"lac":4660,"ci":86}`), http.StatusNoContent)
	w = do(t, mux, http.MethodGet, "/api/modems/1/location", "")
	if !strings.Contains(w.Body.String(), `"lac":4660`) {
		t.Errorf("unexpected location %s", w.Body.String())
	}
}

func TestAPI_RegistrationAndTechnology(t *testing.T) {
	mux, reg := newTestMux(t)
	m := modemOf(t, reg, 0)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/registration", `{"voice":"roaming","data_network":"lte"}`), http.StatusNoContent)
	if m.VoiceRegistration() != modem.RegRoaming || m.DataNetworkType() != modem.NetworkLTE {
		t.Errorf("registration not applied: %s %s", m.VoiceRegistration(), m.DataNetworkType())
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/registration", `{"voice":"home","data":"sideways"}`), http.StatusBadRequest)
	if m.VoiceRegistration() != modem.RegRoaming {
		t.Error("a rejected request must not change anything")
	}

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/technology", `{"technology":"cdma","preferred_mask":"cdma/evdo"}`), http.StatusNoContent)
	w := do(t, mux, http.MethodGet, "/api/modems/0/technology", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"technology":"cdma","preferred_mask":"cdma/evdo"}` {
		t.Errorf("unexpected technology %s", got)
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/technology", `{"technology":"gsm"}`), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/technology", `{"technology":"6g"}`), http.StatusBadRequest)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/cdma", `{"subscription_source":"ruim","prl_version":7}`), http.StatusNoContent)
	if m.SubscriptionSource() != modem.SubscriptionRUIM || m.PRLVersion() != 7 {
		t.Errorf("cdma settings not applied")
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/cdma", `{"subscription_source":"flash"}`), http.StatusBadRequest)
}

func TestAPI_Operators(t *testing.T) {
	mux, _ := newTestMux(t)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/operators/1", `{"long":"Other Net"}`), http.StatusNoContent)
	w := do(t, mux, http.MethodGet, "/api/modems/0/operators", "")
	var ops []operatorView
	if err := json.NewDecoder(w.Body).Decode(&ops); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(ops) != 2 || ops[1].Long != "Other Net" || ops[1].Numeric != "310295" {
		t.Errorf("unexpected operators %+v", ops)
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/operators/9", `{"long":"x"}`), http.StatusBadRequest)
}

func TestAPI_MessagesAndSIM(t *testing.T) {
	mux, reg := newTestMux(t)
	inst, _ := reg.Get(0)
	var out strings.Builder
	inst.Attach(func(text string) { out.WriteString(text) })

	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/sms", `{"from":"5551234","text":"hi"}`), http.StatusNoContent)
	if !strings.HasPrefix(out.String(), "+CMT: 0\r\n") {
		t.Errorf("expected SMS delivery, got %q", out.String())
	}
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/sms", `{"pdu":"zz"}`), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/cbs", `{"pdu":"0102"}`), http.StatusNoContent)
	expectStatus(t, do(t, mux, http.MethodPost, "/api/modems/0/stk", `{"pdu":"d00a"}`), http.StatusNoContent)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/sim/files/6f13", `{"data":"4142"}`), http.StatusOK)
	w := do(t, mux, http.MethodGet, "/api/modems/0/sim/files/6f13", "")
	expectStatus(t, w, http.StatusOK)
	var ef efView
	if err := json.NewDecoder(w.Body).Decode(&ef); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if ef.Data != "4142" || ef.SW1 != 0x90 {
		t.Errorf("unexpected file %+v", ef)
	}
	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/0/sim/files/1234", ""), http.StatusUnprocessableEntity)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/0/sim/files/xyz", ""), http.StatusBadRequest)

	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/sim/status", `{"status":"pin"}`), http.StatusNoContent)
	if inst.Modem.SIMStatus() != sim.StatusPIN {
		t.Errorf("expected pin status, got %s", inst.Modem.SIMStatus())
	}
	expectStatus(t, do(t, mux, http.MethodPut, "/api/modems/0/sim/status", `{"status":"lost"}`), http.StatusBadRequest)
}

func TestAPI_HistoryDisabled(t *testing.T) {
	mux, _ := newTestMux(t)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/0/history", ""), http.StatusServiceUnavailable)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/modems/0/history?limit=0", ""), http.StatusBadRequest)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/history?number=15555215554", ""), http.StatusServiceUnavailable)
	expectStatus(t, do(t, mux, http.MethodGet, "/api/history", ""), http.StatusBadRequest)
}

package modem

import (
	"fmt"
	"strings"
)

// unsetInt is what +CSQ reports for an LTE field without a valid value.
const unsetInt = 0x7fffffff

// Signal is the reported GSM and LTE signal strength.
type Signal struct {
	RSSI  int `json:"rssi"`
	BER   int `json:"ber"`
	RxLev int `json:"rxlev"`
	RSRP  int `json:"rsrp"`
	RSSNR int `json:"rssnr"`
}

func clamp(v, lo, hi, unset int) int {
	if v < lo || v > hi {
		return unset
	}
	return v
}

func (m *Modem) csqLine() string {
	return fmt.Sprintf("+CSQ: %d,%d,85,130,90,6,4,%d,%d,2147483647,%d,2147483647\r\n",
		clamp(m.rssi, 0, 31, 99),
		clamp(m.ber, 0, 7, 99),
		clamp(m.rxlev, 0, 63, 99),
		clamp(m.rsrp, 44, 140, unsetInt),
		clamp(m.rssnr, -200, 300, unsetInt))
}

// timeUpdate formats %CTZV with the UTC time and the local offset in
// quarter hours.
func (m *Modem) timeUpdate() string {
	now := m.now()
	utc := now.UTC()
	_, offset := now.Zone()
	sign := '+'
	if offset < 0 {
		sign = '-'
		offset = -offset
	}
	return fmt.Sprintf("%%CTZV: %02d/%02d/%02d,%02d:%02d:%02d%c%d,%d\r\n",
		utc.Year()%100, int(utc.Month()), utc.Day(),
		utc.Hour(), utc.Minute(), utc.Second(),
		sign, offset/(15*60), boolInt(now.IsDST()))
}

// handleSignalStrength also carries a time update because the guest polls
// +CSQ periodically.
func (m *Modem) handleSignalStrength(string) string {
	var b strings.Builder
	if m.timeUpdates {
		b.WriteString(m.timeUpdate())
	}
	b.WriteString(m.csqLine())
	return b.String()
}

func (m *Modem) handleEndOfInit(string) string {
	return m.timeUpdate()
}

// Signal returns the stored signal values.
func (m *Modem) Signal() Signal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Signal{RSSI: m.rssi, BER: m.ber, RxLev: m.rxlev, RSRP: m.rsrp, RSSNR: m.rssnr}
}

// SetSignal sets the GSM signal and resets the LTE values. The new values
// are pushed to the guest as an unsolicited +CSQ.
func (m *Modem) SetSignal(rssi, ber int) error {
	if (rssi < 0 || rssi > 31) && rssi != 99 {
		return fmt.Errorf("%w: rssi must be 0..31 or 99", ErrInvalidRange)
	}
	if (ber < 0 || ber > 7) && ber != 99 {
		return fmt.Errorf("%w: ber must be 0..7 or 99", ErrInvalidRange)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rssi, m.ber = rssi, ber
	m.rxlev, m.rsrp, m.rssnr = 99, 65535, 65535
	m.emit(m.handleSignalStrength(""))
	return nil
}

// SetLTESignal sets the LTE signal and marks the GSM values unknown.
func (m *Modem) SetLTESignal(rxlev, rsrp, rssnr int) error {
	if (rxlev < 0 || rxlev > 63) && rxlev != 99 {
		return fmt.Errorf("%w: rxlev must be 0..63 or 99", ErrInvalidRange)
	}
	if (rsrp < 44 || rsrp > 140) && rsrp != 65535 {
		return fmt.Errorf("%w: rsrp must be 44..140 or 65535", ErrInvalidRange)
	}
	if (rssnr < -200 || rssnr > 300) && rssnr != 65535 {
		return fmt.Errorf("%w: rssnr must be -200..300 or 65535", ErrInvalidRange)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rxlev, m.rsrp, m.rssnr = rxlev, rsrp, rssnr
	m.rssi, m.ber = 99, 99
	m.emit(m.handleSignalStrength(""))
	return nil
}

// SendTimeUpdate pushes the current network time to the guest.
func (m *Modem) SendTimeUpdate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit(m.timeUpdate())
}

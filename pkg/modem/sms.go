package modem

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/sms"
)

// ErrBadPDU is returned for injected PDUs that are not valid hex.
var ErrBadPDU = errors.New("invalid PDU")

func (m *Modem) handleSendSMS(string) string {
	m.waitSMS = true
	return "> "
}

// handleSMSPDU takes the line following +CMGS: the hex SMS-SUBMIT. The
// guest gets its +CMGS before the message is routed.
func (m *Modem) handleSMSPDU(line string) string {
	sub, err := sms.DecodeSubmitHex(line)
	if err != nil {
		m.log.Debug("Invalid SMS PDU", logger.Line("pdu", line), logger.Error(err))
		if errors.Is(err, sms.ErrBadAddress) {
			return "+CMS ERROR: BAD SMS RECEIVER ADDRESS"
		}
		return "+CMS ERROR: INVALID SMS PDU"
	}
	if sub.Destination.Number == "" {
		return "+CMS ERROR: BAD SMS RECEIVER ADDRESS"
	}

	m.reply("+CMGS: 0")
	m.observer.SMSSent(m.instance)

	to := sub.Destination.Number
	if len(to) > MaxNumberLen {
		to = to[:MaxNumberLen]
	}
	to = m.expandNumber(to)
	if !m.remote.Reachable(to) {
		m.log.Info("SMS to unknown number dropped", logger.String("to", to))
		return alreadyReplied
	}
	from := sms.Address{Number: m.number, TOA: sms.TOAUnknown}
	if err := m.remote.SendSMS(to, sms.DeliverFromSubmit(sub, from, m.now())); err != nil {
		m.log.Warn("Failed to route SMS", logger.String("to", to), logger.Error(err))
	}
	return alreadyReplied
}

// ReceiveSMS delivers an SMS-DELIVER to the guest.
func (m *Modem) ReceiveSMS(d *sms.Deliver) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer.SMSReceived(m.instance)
	m.emit("+CMT: 0\r\n" + d.Hex() + "\r\n")
}

// SendText delivers a text message from number, e.g. for the console.
func (m *Modem) SendText(from, text string) error {
	addr, err := sms.ParseAddress(from)
	if err != nil {
		return err
	}
	d, err := sms.NewTextDeliver(addr, text, m.now())
	if err != nil {
		return err
	}
	m.ReceiveSMS(d)
	return nil
}

func checkHex(pdu string) (string, error) {
	pdu = strings.TrimSpace(pdu)
	if pdu == "" || len(pdu)%2 != 0 {
		return "", fmt.Errorf("%w: odd or empty hex", ErrBadPDU)
	}
	if _, err := hex.DecodeString(pdu); err != nil {
		return "", fmt.Errorf("%w: %v", ErrBadPDU, err)
	}
	return pdu, nil
}

// ReceiveSMSPDU delivers a raw SMS-DELIVER given as hex.
func (m *Modem) ReceiveSMSPDU(pdu string) error {
	pdu, err := checkHex(pdu)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer.SMSReceived(m.instance)
	m.emit("+CMT: 0\r\n" + pdu + "\r\n")
	return nil
}

// ReceiveCBS delivers a cell broadcast page given as hex.
func (m *Modem) ReceiveCBS(pdu string) error {
	pdu, err := checkHex(pdu)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.emit("+CBM: 0\r\n" + pdu + "\r\n")
	return nil
}

// SendSTK sends a SIM toolkit proactive command given as hex.
func (m *Modem) SendSTK(pdu string) error {
	pdu, err := checkHex(pdu)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unsol("+CUSATP: %s", pdu)
	return nil
}

func (m *Modem) handleSMSCAddress(cmd string) string {
	arg := strings.TrimPrefix(cmd, "+CSCA")
	if arg == "?" {
		return fmt.Sprintf(`+CSCA: "%s",%d`, m.smsc.String(), m.smsc.TOA)
	}
	if !strings.HasPrefix(arg, "=") {
		return "+CMS ERROR: 304"
	}
	addr, rest, ok := cutQuoted(arg[1:])
	if !ok {
		return "+CMS ERROR: 304"
	}
	toa := 0
	if t, found := strings.CutPrefix(rest, ","); found {
		if _, err := fmt.Sscanf(t, "%d", &toa); err != nil {
			return "+CMS ERROR: 304"
		}
	}
	if err := m.setSMSC(addr, toa); err != nil {
		return "+CMS ERROR: 304"
	}
	return "OK"
}

// setSMSC accepts addr when toa is 0 or matches the address type.
func (m *Modem) setSMSC(addr string, toa int) error {
	a, err := sms.ParseAddress(addr)
	if err != nil {
		return err
	}
	if toa != 0 && toa != int(a.TOA) {
		return fmt.Errorf("%w: type %d does not match %q", ErrInvalidValue, toa, addr)
	}
	m.smsc = a
	m.persistString(nvSMSCAddress, addr)
	return nil
}

// SMSCAddress returns the service center address.
func (m *Modem) SMSCAddress() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.smsc.String()
}

// SetSMSCAddress changes the service center address.
func (m *Modem) SetSMSCAddress(addr string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setSMSC(addr, 0)
}

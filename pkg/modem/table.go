package modem

import "strings"

type handlerFunc func(m *Modem, cmd string) string

// entry is one row of the command table. Prefix rows match any command
// starting with cmd; the others must match exactly.
type entry struct {
	cmd     string
	prefix  bool
	answer  string
	handler handlerFunc
}

func exact(cmd, answer string, h handlerFunc) entry {
	return entry{cmd: cmd, answer: answer, handler: h}
}

func prefix(cmd string, h handlerFunc) entry {
	return entry{cmd: cmd, prefix: true, handler: h}
}

func ok(cmd string) entry { return entry{cmd: cmd} }

// commands is scanned in order and the first match wins, so specific rows
// must come before the prefixes that would swallow them.
var commands = []entry{
	ok("%CPHS=1"),
	ok("%CTZV=1"),
	exact("+CSMS=1", "+CSMS: 1, 1, 1", nil),
	ok("+CNMI=1,2,2,1,1"),
	exact("+CFUN=0", "", (*Modem).handleRadioPower),
	exact("+CFUN=1", "", (*Modem).handleRadioPower),
	exact("+CFUN?", "", (*Modem).handleRadioPowerQuery),

	exact("+CTEC=?", "+CTEC: 0,1,2,3,4", nil),
	prefix("+CTEC", (*Modem).handleTech),
	exact("+WRMP=?", "+WRMP: 0,1,2", nil),
	prefix("+WRMP", (*Modem).handleRoamPref),
	exact("+CCSS=?", "+CCSS: 0,1", nil),
	prefix("+CCSS", (*Modem).handleSubscriptionSource),
	exact("+WSOS=?", "+WSOS: 0", nil),
	prefix("+WSOS", (*Modem).handleEmergencyMode),
	prefix("+WPRL", (*Modem).handlePRLVersion),

	exact("+CGACT?", "", (*Modem).handleListPDPContexts),
	exact("+CGACT=?", "+CGACT: (0-1)\r\n", nil),
	exact("+COPS=3,0;+COPS?;+COPS=3,1;+COPS?;+COPS=3,2;+COPS?", "", (*Modem).handleRequestOperator),
	exact("+COPS=0", "", (*Modem).handleOperatorSelection),
	prefix("+COPS", (*Modem).handleOperatorSelection),
	exact("+CLCC", "", (*Modem).handleListCurrentCalls),
	prefix("+CMGW=", func(*Modem, string) string { return "ERROR: unimplemented" }),
	prefix("+CHLD=", (*Modem).handleHangup),
	exact("+CSQ", "", (*Modem).handleSignalStrength),
	prefix("+CREG", (*Modem).handleNetworkRegistration),
	prefix("+CGREG", (*Modem).handleNetworkRegistration),

	prefix("+CMGS=", (*Modem).handleSendSMS),
	ok("+CNMA=1"),
	ok("+CNMA=2"),
	prefix("+CMGD=", nil),

	ok(`%CPRIM="GMM","CONFIG MULTISLOT_CLASS=<10>"`),
	ok(`%DATA=2,"UART",1,,"SER","UART",0`),
	exact("+CGDCONT?", "", (*Modem).handleQueryPDPContext),
	prefix("+CGDCONT=", (*Modem).handleDefinePDPContext),
	exact("+CGCONTRDP=?", "", (*Modem).handleListPDPContextIDs),
	prefix("+CGCONTRDP", (*Modem).handleReadPDPContext),
	ok("+CGQREQ=1"),
	ok("+CGQMIN=1"),
	ok("+CGEREP=1,0"),
	prefix("+CGACT=", (*Modem).handleActivatePDPContext),
	prefix("D*99***", (*Modem).handleStartPDPContext),

	prefix("D", (*Modem).handleDial),
	exact("A", "", (*Modem).handleAnswer),
	exact("H", "", (*Modem).handleHangupIncoming),
	prefix("+VTS=", nil),
	exact("+CEER", "", (*Modem).handleLastCallFailCause),

	prefix("+CRSM=", (*Modem).handleSIMIO),
	exact("+CPIN?", "", (*Modem).handleSIMStatus),
	prefix("+CPIN=", (*Modem).handleChangeOrEnterPIN),
	prefix("+CPINR=", (*Modem).handlePINRetries),

	exact("+CIMI", "310260000000000", nil),
	exact("+CGSN", "000000000000000", nil),
	ok("+CUSD=1"),
	ok("+CUSD=2"),
	exact("+CNMI?", "+CNMI: 1,2,2,1,1", nil),

	ok("E0Q0V1"),
	ok("S0=0"),
	ok("+CMEE=1"),
	ok("+CCWA=1"),
	ok("+CMOD=0"),
	ok("+CMUT=0"),
	ok("+CSSN=0,1"),
	ok("+COLP=0"),
	ok(`+CSCS="HEX"`),
	exact("+CMGF=0", "", (*Modem).handleEndOfInit),
	ok("%CPI=3"),
	ok("%CSTAT=1"),
	prefix("+CSCA", (*Modem).handleSMSCAddress),
}

func lookup(cmd string) (entry, bool) {
	for _, e := range commands {
		if e.prefix {
			if strings.HasPrefix(cmd, e.cmd) {
				return e, true
			}
		} else if cmd == e.cmd {
			return e, true
		}
	}
	return entry{}, false
}

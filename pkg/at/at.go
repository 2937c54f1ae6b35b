// Package at holds the AT protocol vocabulary shared by the modem and its
// transports, and the framer that turns guest bytes into command lines.
package at

import "strings"

const (
	// Terminal control
	CR     = "\r"
	CRLF   = "\r\n"
	Prompt = "> "
	CtrlZ  = 0x1a
	Escape = 0x1b

	// Final result codes
	OK       = "OK"
	ERROR    = "ERROR"
	CmeError = "+CME ERROR"
	CmsError = "+CMS ERROR"

	// Unsolicited result codes
	NoCarrier    = "NO CARRIER"
	Ring         = "RING"
	UrcCallRing  = "+CRING:"
	UrcRegVoice  = "+CREG:"
	UrcRegData   = "+CGREG:"
	UrcNewSMS    = "+CMT:"
	UrcBroadcast = "+CBM:"
	UrcSTK       = "+CUSATP:"
	UrcTime      = "%CTZV:"
	UrcCallState = "CALL STATE CHANGED"
	UrcTech      = "+CTEC:"
	UrcSubSource = "+CCSS:"
	UrcPRL       = "+WPRL:"
	UrcEmergency = "+WSOS:"
)

// Terminators start the last line of a complete command response.
var Terminators = []string{OK, ERROR, CmeError, CmsError, Prompt}

type ResponseType int

const (
	TypeFinal  ResponseType = iota // OK, ERROR
	TypeURC                        // Asynchronous notifications
	TypeData                       // Intermediate command output (+CSQ: ...)
	TypePrompt                     // SMS input prompt
)

func (t ResponseType) String() string {
	switch t {
	case TypeFinal:
		return "final"
	case TypeURC:
		return "urc"
	case TypePrompt:
		return "prompt"
	default:
		return "data"
	}
}

var urcPrefixes = []string{
	NoCarrier, Ring, UrcCallRing, UrcRegVoice, UrcRegData, UrcNewSMS,
	UrcBroadcast, UrcSTK, UrcTime, UrcCallState, UrcTech, UrcSubSource, UrcPRL, UrcEmergency,
}

// Classify identifies the nature of one line of modem output. A +CTEC or
// +CREG line is reported as a URC even when it answers a command.
func Classify(line string) ResponseType {
	if line == Prompt || line == strings.TrimRight(Prompt, " ") {
		return TypePrompt
	}
	for _, t := range Terminators[:4] {
		if strings.HasPrefix(line, t) {
			return TypeFinal
		}
	}
	for _, p := range urcPrefixes {
		if strings.HasPrefix(line, p) {
			return TypeURC
		}
	}
	return TypeData
}

// Terminated reports whether the last line of a response is a terminator.
func Terminated(response string) bool {
	trimmed := strings.TrimRight(response, CRLF)
	last := trimmed
	if i := strings.LastIndexAny(trimmed, CRLF); i >= 0 {
		last = trimmed[i+1:]
	}
	for _, t := range Terminators {
		if strings.HasPrefix(last, t) {
			return true
		}
	}
	return false
}

// Lines splits modem output into its non-empty lines. A bare prompt is kept
// with its trailing space.
func Lines(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool { return r == '\r' || r == '\n' })
	lines := fields[:0]
	for _, f := range fields {
		if strings.TrimSpace(f) != "" || f == Prompt {
			lines = append(lines, f)
		}
	}
	return lines
}

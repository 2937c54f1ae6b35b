package sms

import (
	"encoding/hex"
	"fmt"
	"strings"
	"time"
)

// First-octet fields.
const (
	mtiMask       = 0x03
	mtiDeliver    = 0x00
	mtiSubmit     = 0x01
	vpfMask       = 0x18
	vpfRelative   = 0x10
	vpfEnhanced   = 0x08
	vpfAbsolute   = 0x18
	flagMMS       = 0x04 // no more messages to send (deliver)
	flagUDHI      = 0x40
	flagReplyPath = 0x80
)

// dcsUCS2 is the data coding scheme of 16-bit text.
const dcsUCS2 = 0x08

// Submit is a decoded SMS-SUBMIT.
type Submit struct {
	SMSC        *Address
	Reference   byte
	Destination Address
	PID         byte
	DCS         byte
	UDHI        bool
	// UDL is the user data length in septets or octets, per DCS.
	UDL      byte
	UserData []byte
}

// DecodeSubmitHex decodes the hex text the guest sends after +CMGS. A
// trailing Ctrl-Z is ignored.
func DecodeSubmitHex(s string) (*Submit, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), "\x1a")
	data, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("decode hex: %w", err)
	}
	return DecodeSubmit(data)
}

// DecodeSubmit decodes an SMS-SUBMIT with its leading SMSC field.
func DecodeSubmit(data []byte) (*Submit, error) {
	if len(data) < 1 {
		return nil, ErrTruncated
	}
	sub := &Submit{}

	smscLen := int(data[0])
	if len(data) < 1+smscLen {
		return nil, ErrTruncated
	}
	if smscLen > 1 {
		digits, err := unpackSemiOctets(data[2:1+smscLen], 2*(smscLen-1))
		if err != nil {
			return nil, err
		}
		sub.SMSC = &Address{Number: digits, TOA: data[1]}
	}
	p := data[1+smscLen:]

	if len(p) < 2 {
		return nil, ErrTruncated
	}
	first := p[0]
	if first&mtiMask != mtiSubmit {
		return nil, ErrNotSubmit
	}
	sub.UDHI = first&flagUDHI != 0
	sub.Reference = p[1]
	p = p[2:]

	dest, n, err := decodeAddress(p)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}
	sub.Destination = dest
	p = p[n:]

	if len(p) < 2 {
		return nil, ErrTruncated
	}
	sub.PID, sub.DCS = p[0], p[1]
	p = p[2:]

	switch first & vpfMask {
	case vpfRelative:
		n = 1
	case vpfEnhanced, vpfAbsolute:
		n = 7
	default:
		n = 0
	}
	if len(p) < n+1 {
		return nil, ErrTruncated
	}
	p = p[n:]

	sub.UDL = p[0]
	sub.UserData = append([]byte(nil), p[1:]...)
	if len(sub.UserData) < userDataOctets(sub.DCS, sub.UDL) {
		return nil, ErrTruncated
	}
	return sub, nil
}

// userDataOctets is the number of octets UDL covers.
func userDataOctets(dcs, udl byte) int {
	if isSeptets(dcs) {
		return (int(udl)*7 + 7) / 8
	}
	return int(udl)
}

// isSeptets reports whether dcs selects the GSM 7-bit alphabet (TS 23.038).
func isSeptets(dcs byte) bool {
	switch dcs & 0xf0 {
	case 0x00, 0x10, 0x20, 0x30, 0x40, 0x50, 0x60, 0x70:
		return dcs&0x0c == 0x00
	case 0xc0, 0xd0:
		return true
	case 0xf0:
		return dcs&0x04 == 0
	}
	return false
}

// Deliver is an SMS-DELIVER about to be sent to the guest.
type Deliver struct {
	Originator Address
	PID        byte
	DCS        byte
	UDHI       bool
	Timestamp  time.Time
	UDL        byte
	UserData   []byte
}

// DeliverFromSubmit turns a submitted message into the deliver its
// recipient sees, keeping the user data as is.
func DeliverFromSubmit(sub *Submit, from Address, ts time.Time) *Deliver {
	return &Deliver{
		Originator: from,
		PID:        sub.PID,
		DCS:        sub.DCS,
		UDHI:       sub.UDHI,
		Timestamp:  ts,
		UDL:        sub.UDL,
		UserData:   append([]byte(nil), sub.UserData...),
	}
}

// Encode serializes the deliver with an empty SMSC field.
func (d *Deliver) Encode() []byte {
	first := byte(mtiDeliver | flagMMS)
	if d.UDHI {
		first |= flagUDHI
	}
	out := []byte{0x00, first}
	out = append(out, d.Originator.encode()...)
	out = append(out, d.PID, d.DCS)
	out = append(out, encodeTimestamp(d.Timestamp)...)
	out = append(out, d.UDL)
	return append(out, d.UserData...)
}

// Hex is Encode as lower-case hex, the form +CMT carries.
func (d *Deliver) Hex() string { return hex.EncodeToString(d.Encode()) }

// encodeTimestamp writes the 7-octet service centre time stamp.
func encodeTimestamp(t time.Time) []byte {
	_, offset := t.Zone()
	quarters := offset / (15 * 60)
	negative := quarters < 0
	if negative {
		quarters = -quarters
	}
	tz := swapBCD(quarters)
	if negative {
		tz |= 0x08
	}
	return []byte{
		swapBCD(t.Year() % 100),
		swapBCD(int(t.Month())),
		swapBCD(t.Day()),
		swapBCD(t.Hour()),
		swapBCD(t.Minute()),
		swapBCD(t.Second()),
		tz,
	}
}

func swapBCD(v int) byte {
	return byte((v%10)<<4 | (v/10)%10)
}

package sms

import (
	"time"
	"unicode/utf16"
)

// gsm7Basic is the GSM 03.38 default alphabet; the index is the septet.
var gsm7Basic = []rune("@£$¥èéùìòÇ\nØø\rÅåΔ_ΦΓΛΩΠΨΣΘΞ\x1bÆæßÉ !\"#¤%&'()*+,-./0123456789:;<=>?" +
	"¡ABCDEFGHIJKLMNOPQRSTUVWXYZÄÖÑÜ§¿abcdefghijklmnopqrstuvwxyzäöñüà")

// maxUserData is the user data capacity of one PDU in octets.
const maxUserData = 140

// EncodeText builds the user data for text, using the default alphabet when
// every character is in it and UCS-2 otherwise. It returns DCS, UDL and data.
func EncodeText(text string) (dcs, udl byte, data []byte, err error) {
	if septets, ok := toSeptets(text); ok {
		if len(septets) > maxUserData*8/7 {
			return 0, 0, nil, ErrTooLong
		}
		return 0x00, byte(len(septets)), packSeptets(septets), nil
	}
	units := utf16.Encode([]rune(text))
	if len(units)*2 > maxUserData {
		return 0, 0, nil, ErrTooLong
	}
	data = make([]byte, 0, len(units)*2)
	for _, u := range units {
		data = append(data, byte(u>>8), byte(u))
	}
	return dcsUCS2, byte(len(data)), data, nil
}

// DecodeText returns the text of 7-bit or UCS-2 user data without a header.
func DecodeText(dcs, udl byte, data []byte) string {
	if isSeptets(dcs) {
		septets := unpackSeptets(data, int(udl))
		out := make([]rune, 0, len(septets))
		for _, s := range septets {
			if int(s) < len(gsm7Basic) {
				out = append(out, gsm7Basic[s])
			}
		}
		return string(out)
	}
	if dcs&0x0c == dcsUCS2 {
		units := make([]uint16, 0, len(data)/2)
		for i := 0; i+1 < len(data); i += 2 {
			units = append(units, uint16(data[i])<<8|uint16(data[i+1]))
		}
		return string(utf16.Decode(units))
	}
	return string(data)
}

// NewTextDeliver builds a single-part deliver carrying text.
func NewTextDeliver(from Address, text string, ts time.Time) (*Deliver, error) {
	dcs, udl, data, err := EncodeText(text)
	if err != nil {
		return nil, err
	}
	return &Deliver{Originator: from, DCS: dcs, Timestamp: ts, UDL: udl, UserData: data}, nil
}

func toSeptets(text string) ([]byte, bool) {
	out := make([]byte, 0, len(text))
	for _, r := range text {
		idx := -1
		for i, c := range gsm7Basic {
			if c == r && c != '\x1b' {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, false
		}
		out = append(out, byte(idx))
	}
	return out, true
}

func packSeptets(septets []byte) []byte {
	out := make([]byte, 0, (len(septets)*7+7)/8)
	var acc uint
	bits := 0
	for _, s := range septets {
		acc |= uint(s&0x7f) << bits
		bits += 7
		for bits >= 8 {
			out = append(out, byte(acc))
			acc >>= 8
			bits -= 8
		}
	}
	if bits > 0 {
		out = append(out, byte(acc))
	}
	return out
}

func unpackSeptets(data []byte, count int) []byte {
	out := make([]byte, 0, count)
	var acc uint
	bits := 0
	for _, b := range data {
		acc |= uint(b) << bits
		bits += 8
		for bits >= 7 && len(out) < count {
			out = append(out, byte(acc&0x7f))
			acc >>= 7
			bits -= 7
		}
	}
	return out
}

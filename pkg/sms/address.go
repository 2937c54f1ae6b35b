// Package sms encodes and decodes the TP-layer PDUs (3GPP TS 23.040) the
// modem exchanges with the guest in PDU mode.
package sms

import (
	"errors"
	"fmt"
	"strings"
)

// Type-of-address values.
const (
	TOAUnknown       byte = 0x81
	TOAInternational byte = 0x91
)

// semiOctetDigits maps a BCD nibble to its dial character.
const semiOctetDigits = "0123456789*#abc"

var (
	ErrTruncated  = errors.New("pdu truncated")
	ErrBadAddress = errors.New("invalid address")
	ErrNotSubmit  = errors.New("pdu is not an SMS-SUBMIT")
	ErrTooLong    = errors.New("user data too long")
)

// Address is a phone number with its type of address.
type Address struct {
	Number string // dial digits without the leading '+'
	TOA    byte
}

// ParseAddress reads a dial string; a leading '+' makes it international.
func ParseAddress(s string) (Address, error) {
	a := Address{TOA: TOAUnknown}
	if strings.HasPrefix(s, "+") {
		a.TOA = TOAInternational
		s = s[1:]
	}
	if s == "" {
		return Address{}, ErrBadAddress
	}
	for _, c := range s {
		if !strings.ContainsRune(semiOctetDigits, c) {
			return Address{}, fmt.Errorf("%w: %q", ErrBadAddress, c)
		}
	}
	a.Number = s
	return a, nil
}

// String renders the address as a dial string.
func (a Address) String() string {
	if a.TOA == TOAInternational {
		return "+" + a.Number
	}
	return a.Number
}

// encode writes the TP address field: digit count, TOA, swapped BCD.
func (a Address) encode() []byte {
	out := []byte{byte(len(a.Number)), a.TOA}
	return append(out, packSemiOctets(a.Number)...)
}

// EncodeSMSC writes the RP SMSC field: octet count, TOA, swapped BCD.
func (a Address) EncodeSMSC() []byte {
	digits := packSemiOctets(a.Number)
	out := []byte{byte(len(digits) + 1), a.TOA}
	return append(out, digits...)
}

func packSemiOctets(digits string) []byte {
	out := make([]byte, 0, (len(digits)+1)/2)
	for i := 0; i < len(digits); i += 2 {
		lo := byte(strings.IndexByte(semiOctetDigits, digits[i]))
		hi := byte(0xf)
		if i+1 < len(digits) {
			hi = byte(strings.IndexByte(semiOctetDigits, digits[i+1]))
		}
		out = append(out, hi<<4|lo)
	}
	return out
}

func unpackSemiOctets(data []byte, count int) (string, error) {
	var b strings.Builder
	for i := 0; i < count; i++ {
		nibble := data[i/2]
		if i%2 == 1 {
			nibble >>= 4
		}
		nibble &= 0xf
		if nibble == 0xf {
			break // filler
		}
		if int(nibble) >= len(semiOctetDigits) {
			return "", ErrBadAddress
		}
		b.WriteByte(semiOctetDigits[nibble])
	}
	return b.String(), nil
}

// decodeAddress reads a TP address field from the start of data and returns
// the number of bytes consumed.
func decodeAddress(data []byte) (Address, int, error) {
	if len(data) < 2 {
		return Address{}, 0, ErrTruncated
	}
	count := int(data[0])
	size := 2 + (count+1)/2
	if len(data) < size {
		return Address{}, 0, ErrTruncated
	}
	number, err := unpackSemiOctets(data[2:size], count)
	if err != nil {
		return Address{}, 0, err
	}
	return Address{Number: number, TOA: data[1]}, size, nil
}

package sms

import (
	"errors"
	"testing"
	"time"
)

func TestDecodeSubmitHex(t *testing.T) {
	tests := []struct {
		name string
		pdu  string
	}{
		{"no validity period", "0001000b815155255155f6000004d4f29c0e"},
		{"relative validity period", "0011000b815155255155f60000ff04d4f29c0e"},
		{"trailing ctrl-z", "0001000b815155255155f6000004d4f29c0e\x1a"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sub, err := DecodeSubmitHex(tt.pdu)
			if err != nil {
				t.Fatalf("DecodeSubmitHex: %v", err)
			}
			if sub.Destination.Number != "15555215556" || sub.Destination.TOA != TOAUnknown {
				t.Errorf("unexpected destination %+v", sub.Destination)
			}
			if got := DecodeText(sub.DCS, sub.UDL, sub.UserData); got != "Test" {
				t.Errorf("unexpected text %q", got)
			}
		})
	}
}

func TestDecodeSubmit_WithSMSC(t *testing.T) {
	sub, err := DecodeSubmitHex("069121436587f901000b815155255155f6000004d4f29c0e")
	if err != nil {
		t.Fatalf("DecodeSubmitHex: %v", err)
	}
	if sub.SMSC == nil || sub.SMSC.String() != "+123456789" {
		t.Fatalf("unexpected smsc %+v", sub.SMSC)
	}
}

func TestDecodeSubmit_Errors(t *testing.T) {
	tests := []struct {
		name string
		pdu  string
		want error
	}{
		{"deliver instead of submit", "0004000b815155255155f6000004d4f29c0e", ErrNotSubmit},
		{"truncated address", "0001000b8151", ErrTruncated},
		{"missing user data", "0001000b815155255155f6000004d4", ErrTruncated},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeSubmitHex(tt.pdu); !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
	if _, err := DecodeSubmitHex("zz"); err == nil {
		t.Error("expected error for non-hex input")
	}
}

func TestDeliverFromSubmit(t *testing.T) {
	sub, err := DecodeSubmitHex("0001000b815155255155f6000004d4f29c0e")
	if err != nil {
		t.Fatalf("DecodeSubmitHex: %v", err)
	}
	from, _ := ParseAddress("15555215554")
	ts := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

	got := DeliverFromSubmit(sub, from, ts).Hex()
	want := "00040b815155255155f40000" + "42305041709000" + "04d4f29c0e"
	if got != want {
		t.Fatalf("deliver hex\n got %s\nwant %s", got, want)
	}
}

func TestEncodeTimestamp_NegativeZone(t *testing.T) {
	ts := time.Date(2024, 12, 31, 23, 59, 58, 0, time.FixedZone("EST", -5*3600))
	scts := encodeTimestamp(ts)
	// 20 quarter hours, sign bit set.
	if scts[6] != 0x0a {
		t.Fatalf("unexpected zone octet %#x", scts[6])
	}
	if scts[0] != 0x42 || scts[1] != 0x21 {
		t.Fatalf("unexpected date octets % x", scts[:3])
	}
}

func TestEncodeText(t *testing.T) {
	dcs, udl, data, err := EncodeText("hellohello")
	if err != nil {
		t.Fatalf("EncodeText: %v", err)
	}
	if dcs != 0 || udl != 10 || len(data) != 9 || data[0] != 0xe8 || data[8] != 0x37 {
		t.Fatalf("unexpected 7-bit encoding dcs=%d udl=%d % x", dcs, udl, data)
	}

	dcs, udl, data, err = EncodeText("日本")
	if err != nil {
		t.Fatalf("EncodeText: %v", err)
	}
	if dcs != dcsUCS2 || udl != 4 || DecodeText(dcs, udl, data) != "日本" {
		t.Fatalf("unexpected UCS-2 encoding dcs=%d udl=%d % x", dcs, udl, data)
	}

	if _, _, _, err := EncodeText(string(make([]byte, 200))); !errors.Is(err, ErrTooLong) {
		t.Fatalf("expected ErrTooLong, got %v", err)
	}
}

func TestParseAddress(t *testing.T) {
	a, err := ParseAddress("+123456789")
	if err != nil || a.TOA != TOAInternational || a.Number != "123456789" {
		t.Fatalf("unexpected address %+v %v", a, err)
	}
	if got := a.EncodeSMSC(); len(got) != 7 || got[0] != 6 || got[6] != 0xf9 {
		t.Fatalf("unexpected smsc encoding % x", got)
	}
	for _, bad := range []string{"", "+", "12x4"} {
		if _, err := ParseAddress(bad); err == nil {
			t.Errorf("ParseAddress(%q) should fail", bad)
		}
	}
}

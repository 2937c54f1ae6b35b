package sim

import (
	"strings"
	"testing"
)

func TestIO_ReadBinary(t *testing.T) {
	c := New(5554, 0)
	got := c.IO("176,28589,0,0,4").String()
	if got != "+CRSM: 144,0,00000003" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestIO_ICCIDDependsOnInstance(t *testing.T) {
	got := New(5554, 3).IO("176,12258,0,0,10").String()
	if got != "+CRSM: 144,0,98101430121181157032" {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestIO_UpdateThenReadBinary(t *testing.T) {
	c := New(5554, 0)
	if r := c.IO(`214,28435,0,0,2,"4142"`); !r.OK() {
		t.Fatalf("update failed: %s", r)
	}
	if got := c.IO("176,28435,0,0,2").String(); got != "+CRSM: 144,0,4142" {
		t.Fatalf("unexpected reply %q", got)
	}
	if c.IO("176,28435,0,0,3") != WrongLength {
		t.Error("expected wrong length when reading past the end")
	}
	r := c.IO("192,28435,0,0,15")
	if !r.OK() || len(r.Data) != 30 {
		t.Fatalf("get response failed: %s", r)
	}
	if size := r.Data[4:8]; size != "0002" {
		t.Errorf("header size = %s, want 0002", size)
	}
}

func TestIO_ReadRecord(t *testing.T) {
	c := New(5554, 0)
	r := c.IO("178,28480,1,4,32")
	if !r.OK() {
		t.Fatalf("read record failed: %s", r)
	}
	if !strings.Contains(r.Data, "0781515525") || !strings.HasSuffix(r.Data, "f4ffffffffffff") {
		t.Fatalf("unexpected msisdn record %q", r.Data)
	}
	if c.IO("178,28480,5,4,32") != RecordNotFound {
		t.Error("expected record not found past the last record")
	}
	if c.IO("178,28480,1,4,33") != WrongLength {
		t.Error("expected wrong length for p3 beyond record size")
	}
	if c.IO("178,28480,1,2,32") != IncorrectParameters {
		t.Error("expected incorrect parameters for relative addressing")
	}
	if c.IO("178,28589,1,4,4") != FunctionNotSupported {
		t.Error("expected not supported when reading records of a binary file")
	}
}

func TestIO_UpdateRecord(t *testing.T) {
	c := New(5554, 0)
	if r := c.IO(`220,28474,2,4,2,"4142"`); !r.OK() {
		t.Fatalf("update record failed: %s", r)
	}
	r := c.IO("178,28474,2,4,32")
	if !strings.HasPrefix(r.Data, "4142") || len(r.Data) != 64 {
		t.Fatalf("unexpected record %q", r.Data)
	}
	if c.IO(`220,28474,256,4,2,"4142"`) != RecordNotFound {
		t.Error("expected record not found")
	}
	if c.IO(`220,28474,1,4,2,"414"`) != IncorrectParameters {
		t.Error("expected incorrect parameters for odd hex")
	}
	long := strings.Repeat("00", 0x21)
	if c.IO(`220,28474,1,4,0,"`+long+`"`) != WrongLength {
		t.Error("expected wrong length for oversize payload")
	}
}

func TestIO_AccessConditions(t *testing.T) {
	c := New(5554, 0)
	if c.IO(`214,28589,0,0,4,"00000001"`) != ConditionNotSatisfied {
		t.Error("expected read-only file to reject update")
	}
	c.SetStatus(StatusPIN)
	if c.IO("176,28436,0,0,0") != SecurityNotSatisfied {
		t.Error("expected PIN-protected file to be unreadable before PIN entry")
	}
	if r := c.IO("192,28436,0,0,15"); !r.OK() {
		t.Errorf("GET RESPONSE must not need the PIN, got %s", r)
	}
	if r := c.IO("176,28589,0,0,4"); !r.OK() {
		t.Errorf("unprotected file should stay readable, got %s", r)
	}
}

func TestIO_GetResponse(t *testing.T) {
	c := New(5554, 0)
	tests := []struct {
		name string
		args string
		want string
	}{
		{"transparent read-only pin", "192,28436,0,0,15", "000000146f1404001aa0aa00020000"},
		{"linear pin", "192,28474,0,0,15", "00001fe06f3a040011a0aa00020120"},
		{"linear no access", "192,20256,0,0,15", "000000644f20040000a0aa00020114"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := c.IO(tt.args)
			if !r.OK() || r.Data != tt.want {
				t.Fatalf("got %s, want data %s", r, tt.want)
			}
		})
	}
	if c.IO("192,28436,0,0,14") != IncorrectParameters {
		t.Error("expected incorrect parameters when p3 != 15")
	}
}

func TestIO_Errors(t *testing.T) {
	c := New(5554, 0)
	if c.IO("176,1234,0,0,0") != FileNotFound {
		t.Error("expected file not found")
	}
	if c.IO("242,28589,0,0,0") != FunctionNotSupported {
		t.Error("expected STATUS to be unsupported")
	}
	if c.IO("176,28589") != IncorrectParameters {
		t.Error("expected incorrect parameters for a short command")
	}
	if c.IO("abc,28589,0,0,0") != IncorrectParameters {
		t.Error("expected incorrect parameters for a non-numeric field")
	}
}

func TestReadWriteEF(t *testing.T) {
	c := New(5554, 0)
	if r := c.WriteEF(EFVMFlag, 0, "aa"); !r.OK() {
		t.Fatalf("WriteEF: %s", r)
	}
	if r := c.ReadEF(EFVMFlag, 0); r.Data != "aa" {
		t.Fatalf("ReadEF: %s", r)
	}
	if r := c.WriteEF(EFVMWI, 1, "02"); !r.OK() {
		t.Fatalf("WriteEF record: %s", r)
	}
	if r := c.ReadEF(EFVMWI, 1); r.Data != "02000000" {
		t.Fatalf("ReadEF record: %s", r)
	}
}

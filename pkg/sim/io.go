package sim

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Commands of +CRSM, see TS 27.007 8.18.
const (
	CmdReadBinary   = 176
	CmdReadRecord   = 178
	CmdGetResponse  = 192
	CmdUpdateBinary = 214
	CmdUpdateRecord = 220
)

// recordAbsoluteMode is the only P2 addressing mode supported for records.
const recordAbsoluteMode = 4

// getResponseLength is the P3 a GET RESPONSE must carry.
const getResponseLength = 15

// Response is the status word of a SIM command plus optional hex payload.
type Response struct {
	SW1, SW2 byte
	Data     string
}

// Status words, TS 102.221 10.2.1.
var (
	NormalEnding          = Response{SW1: 0x90, SW2: 0x00}
	ExecutionError        = Response{SW1: 0x64, SW2: 0x00}
	WrongLength           = Response{SW1: 0x67, SW2: 0x00}
	SecurityNotSatisfied  = Response{SW1: 0x69, SW2: 0x82}
	ConditionNotSatisfied = Response{SW1: 0x69, SW2: 0x85}
	FunctionNotSupported  = Response{SW1: 0x6a, SW2: 0x81}
	FileNotFound          = Response{SW1: 0x6a, SW2: 0x82}
	RecordNotFound        = Response{SW1: 0x6a, SW2: 0x83}
	IncorrectParameters   = Response{SW1: 0x6a, SW2: 0x86}
)

// OK reports a normal ending.
func (r Response) OK() bool { return r.SW1 == 0x90 && r.SW2 == 0x00 }

// String formats the +CRSM reply, e.g. "+CRSM: 144,0,4142".
func (r Response) String() string {
	if r.Data == "" {
		return fmt.Sprintf("+CRSM: %d,%d", r.SW1, r.SW2)
	}
	return fmt.Sprintf("+CRSM: %d,%d,%s", r.SW1, r.SW2, r.Data)
}

func withData(data string) Response {
	r := NormalEnding
	r.Data = data
	return r
}

// Command is one parsed +CRSM request. P3 is -1 when the caller does not
// care about the length.
type Command struct {
	Op     int
	FileID int
	P1     int
	P2     int
	P3     int
	Data   string
}

// ParseCommand parses the text after "+CRSM=": cmd,id,p1,p2,p3[,data[,path]].
func ParseCommand(args string) (Command, error) {
	fields := strings.Split(args, ",")
	if len(fields) < 5 {
		return Command{}, fmt.Errorf("expected at least 5 parameters, got %d", len(fields))
	}
	var nums [5]int
	for i := 0; i < 5; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(fields[i]))
		if err != nil {
			return Command{}, fmt.Errorf("parameter %d: %w", i+1, err)
		}
		nums[i] = n
	}
	cmd := Command{Op: nums[0], FileID: nums[1], P1: nums[2], P2: nums[3], P3: nums[4]}
	if len(fields) > 5 {
		cmd.Data = strings.Trim(strings.TrimSpace(fields[5]), `"`)
	}
	return cmd, nil
}

// IO handles the arguments of a +CRSM command and returns its reply.
func (c *Card) IO(args string) Response {
	cmd, err := ParseCommand(args)
	if err != nil {
		return IncorrectParameters
	}
	return c.Exec(cmd)
}

// Exec runs a parsed command.
func (c *Card) Exec(cmd Command) Response {
	switch cmd.Op {
	case CmdGetResponse:
		return c.getResponse(cmd)
	case CmdReadBinary:
		return c.readBinary(cmd)
	case CmdReadRecord:
		return c.readRecord(cmd)
	case CmdUpdateBinary:
		return c.updateBinary(cmd)
	case CmdUpdateRecord:
		return c.updateRecord(cmd)
	default:
		return FunctionNotSupported
	}
}

// locked reports whether a PIN-protected file is unreachable.
func (c *Card) locked(f File) bool {
	return f.Flags()&NeedPIN != 0 && c.status != StatusReady
}

func (c *Card) getResponse(cmd Command) Response {
	f, ok := c.files[uint16(cmd.FileID)]
	if !ok {
		return FileNotFound
	}
	if cmd.P1 != 0 || cmd.P2 != 0 || cmd.P3 != getResponseLength {
		return IncorrectParameters
	}
	return withData(fileHeader(f))
}

// fileHeader encodes the GET RESPONSE data of an EF, TS 51.011 9.2.1.
func fileHeader(f File) string {
	var structure, recLen byte
	switch f := f.(type) {
	case *Transparent:
		structure = 0x00
	case *Records:
		structure = 0x01
		if f.cyclic {
			structure = 0x03
		}
		recLen = byte(f.recLen)
	}

	var access byte
	switch flags := f.Flags(); {
	case flags&ReadOnly != 0 && flags&NeedPIN != 0:
		access = 0x1a
	case flags&ReadOnly != 0:
		access = 0x0a
	case flags&NeedPIN != 0:
		access = 0x11
	}

	size := f.Size()
	header := []byte{
		0x00, 0x00, // RFU
		byte(size >> 8), byte(size),
		byte(f.ID() >> 8), byte(f.ID()),
		0x04, // EF
		0x00, // RFU, INCREASE not supported
		access, 0xa0, 0xaa,
		0x00, // status: not invalidated
		0x02, // length of what follows
		structure,
		recLen,
	}
	return hex.EncodeToString(header)
}

func (c *Card) readBinary(cmd Command) Response {
	f, ok := c.files[uint16(cmd.FileID)]
	if !ok {
		return FileNotFound
	}
	if cmd.P1 != 0 || cmd.P2 != 0 {
		return IncorrectParameters
	}
	t, ok := f.(*Transparent)
	if !ok {
		return FunctionNotSupported
	}
	if c.locked(f) {
		return SecurityNotSatisfied
	}
	if cmd.P3 != -1 && cmd.P3 > len(t.data) {
		return WrongLength
	}
	return withData(hex.EncodeToString(t.data))
}

func (c *Card) readRecord(cmd Command) Response {
	f, ok := c.files[uint16(cmd.FileID)]
	if !ok {
		return FileNotFound
	}
	if cmd.P2 != recordAbsoluteMode || cmd.P1 <= 0 {
		return IncorrectParameters
	}
	r, ok := f.(*Records)
	if !ok {
		return FunctionNotSupported
	}
	if cmd.P1 > r.Count() {
		return RecordNotFound
	}
	if c.locked(f) {
		return SecurityNotSatisfied
	}
	if cmd.P3 != -1 && cmd.P3 > r.recLen {
		return WrongLength
	}
	rec, err := r.Record(cmd.P1)
	if err != nil {
		return ExecutionError
	}
	return withData(hex.EncodeToString(rec))
}

func (c *Card) updateBinary(cmd Command) Response {
	f, ok := c.files[uint16(cmd.FileID)]
	if !ok {
		return FileNotFound
	}
	if cmd.P1 != 0 || cmd.P2 != 0 {
		return IncorrectParameters
	}
	t, ok := f.(*Transparent)
	if !ok {
		return FunctionNotSupported
	}
	if f.Flags()&ReadOnly != 0 {
		return ConditionNotSatisfied
	}
	if c.locked(f) {
		return SecurityNotSatisfied
	}
	if len(cmd.Data)%2 == 1 {
		return IncorrectParameters
	}
	if cmd.P3 > 0 && cmd.P3 != len(cmd.Data)/2 {
		return WrongLength
	}
	if err := t.update(cmd.Data); err != nil {
		return IncorrectParameters
	}
	return NormalEnding
}

func (c *Card) updateRecord(cmd Command) Response {
	f, ok := c.files[uint16(cmd.FileID)]
	if !ok {
		return FileNotFound
	}
	if cmd.P2 != recordAbsoluteMode || cmd.P1 <= 0 {
		return IncorrectParameters
	}
	r, ok := f.(*Records)
	if !ok {
		return FunctionNotSupported
	}
	if f.Flags()&ReadOnly != 0 {
		return ConditionNotSatisfied
	}
	if c.locked(f) {
		return SecurityNotSatisfied
	}
	if cmd.P3 > r.recLen {
		return WrongLength
	}
	if cmd.P1 > r.Count() {
		return RecordNotFound
	}
	if len(cmd.Data)%2 == 1 {
		return IncorrectParameters
	}
	switch err := r.Put(cmd.P1, cmd.Data); err {
	case nil:
		return NormalEnding
	case errTooLong:
		return WrongLength
	case errBadHex:
		return IncorrectParameters
	default:
		return ExecutionError
	}
}

// ReadEF returns the content of a file the way the console shows it: a
// record when record > 0, otherwise the whole binary file.
func (c *Card) ReadEF(id uint16, record int) Response {
	if record > 0 {
		return c.Exec(Command{Op: CmdReadRecord, FileID: int(id), P1: record, P2: recordAbsoluteMode, P3: -1})
	}
	return c.Exec(Command{Op: CmdReadBinary, FileID: int(id), P3: -1})
}

// WriteEF updates a record (record > 0) or a whole binary file with hex data,
// applying the same checks as the guest commands.
func (c *Card) WriteEF(id uint16, record int, data string) Response {
	if record > 0 {
		return c.Exec(Command{Op: CmdUpdateRecord, FileID: int(id), P1: record, P2: recordAbsoluteMode, P3: len(data) / 2, Data: data})
	}
	return c.Exec(Command{Op: CmdUpdateBinary, FileID: int(id), P3: len(data) / 2, Data: data})
}

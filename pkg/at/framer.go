package at

// MaxLine is the largest command line the framer buffers. A longer line is
// discarded.
const MaxLine = 1024

// LineHandler receives one complete line and reports whether the modem now
// waits for an SMS PDU.
type LineHandler func(line string) (smsMode bool)

// Framer splits the bytes a guest writes into command lines. CR or LF ends a
// command line and empty lines are skipped. After a line that switched the
// modem to SMS mode, everything up to and including Ctrl-Z forms the next
// line. A Framer is not safe for concurrent use; give each connection its
// own.
type Framer struct {
	handle  LineHandler
	buf     [MaxLine]byte
	pos     int
	sms     bool
	dropped int
}

// NewFramer creates a framer delivering lines to handle.
func NewFramer(handle LineHandler) *Framer {
	return &Framer{handle: handle}
}

// Write consumes guest bytes. It never fails, so a Framer can be the
// destination of io.Copy.
func (f *Framer) Write(p []byte) (int, error) {
	for _, c := range p {
		f.feed(c)
	}
	return len(p), nil
}

func (f *Framer) feed(c byte) {
	if f.pos >= MaxLine {
		f.pos = 0
		f.dropped++
	}
	if f.sms {
		f.buf[f.pos] = c
		f.pos++
		if c == CtrlZ {
			f.flush()
		}
		return
	}
	if c == '\r' || c == '\n' {
		if f.pos > 0 {
			f.flush()
		}
		return
	}
	f.buf[f.pos] = c
	f.pos++
}

func (f *Framer) flush() {
	line := string(f.buf[:f.pos])
	f.pos = 0
	f.sms = f.handle(line)
}

// SMSMode reports whether the framer collects an SMS PDU.
func (f *Framer) SMSMode() bool { return f.sms }

// Dropped returns how many overlong lines were discarded.
func (f *Framer) Dropped() int { return f.dropped }

// Reset discards buffered input and leaves SMS mode.
func (f *Framer) Reset() {
	f.pos = 0
	f.sms = false
}

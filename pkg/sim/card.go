// Package sim emulates the SIM card of a modem instance: its lock state,
// PIN/PUK handling and the elementary files reachable through +CRSM.
package sim

import "sort"

const (
	DefaultPIN = "0000"
	DefaultPUK = "12345678"

	// PINRetries failed PIN checks block the PIN; PUKRetries failed PUK
	// checks remove the card.
	PINRetries = 3
	PUKRetries = 6

	PINLength = 4
	PUKLength = 8
)

// Card is one SIM. It is not safe for concurrent use; the owning modem
// serializes access.
type Card struct {
	status      Status
	pin         string
	puk         string
	pinFailures int
	pukFailures int
	basePort    int
	instance    int
	files       map[uint16]File
}

// New creates a ready card populated with the built-in files for the given
// emulator port and instance.
func New(basePort, instance int) *Card {
	c := &Card{
		status:   StatusReady,
		pin:      DefaultPIN,
		puk:      DefaultPUK,
		basePort: basePort,
		instance: instance,
		files:    make(map[uint16]File),
	}
	installBuiltinFiles(c)
	return c
}

func (c *Card) Status() Status          { return c.status }
func (c *Card) SetStatus(status Status) { c.status = status }
func (c *Card) PIN() string             { return c.pin }
func (c *Card) PUK() string             { return c.puk }

// SetPIN replaces the PIN without any check.
func (c *Card) SetPIN(pin string) { c.pin = truncate(pin, PINLength) }

// SetPUK replaces the PUK without any check.
func (c *Card) SetPUK(puk string) { c.puk = truncate(puk, PUKLength) }

// PINRetriesLeft is the number of PIN checks left before the PIN blocks.
func (c *Card) PINRetriesLeft() int {
	if c.pinFailures >= PINRetries {
		return 0
	}
	return PINRetries - c.pinFailures
}

// PUKRetriesLeft is the number of PUK checks left before the card is lost.
func (c *Card) PUKRetriesLeft() int { return PUKRetries - c.pukFailures }

// CheckPIN verifies pin. Only a PIN-pending or ready card accepts a check.
// The PINRetries-th consecutive failure on a PIN-pending card blocks the
// PIN and the card then wants the PUK; a ready card stays ready.
func (c *Card) CheckPIN(pin string) bool {
	if c.status != StatusPIN && c.status != StatusReady {
		return false
	}
	if pin == c.pin {
		c.status = StatusReady
		c.pinFailures = 0
		return true
	}
	c.pinFailures++
	if c.pinFailures >= PINRetries && c.status != StatusReady {
		c.status = StatusPUK
	}
	return false
}

// CheckPUK verifies puk and installs newPIN on success. Exhausting the PUK
// retries leaves the card absent.
func (c *Card) CheckPUK(puk, newPIN string) bool {
	if c.status != StatusPUK {
		return false
	}
	if puk == c.puk {
		c.pin = truncate(newPIN, PINLength)
		c.status = StatusReady
		c.pinFailures = 0
		c.pukFailures = 0
		return true
	}
	c.pukFailures++
	if c.pukFailures >= PUKRetries {
		c.status = StatusAbsent
	}
	return false
}

// ChangePIN replaces the PIN after verifying the old one.
func (c *Card) ChangePIN(oldPIN, newPIN string) bool {
	if !c.CheckPIN(oldPIN) {
		return false
	}
	c.pin = truncate(newPIN, PINLength)
	return true
}

// File looks up an elementary file by id.
func (c *Card) File(id uint16) (File, bool) {
	f, ok := c.files[id]
	return f, ok
}

// Add installs or replaces a file.
func (c *Card) Add(f File) { c.files[f.ID()] = f }

// Files returns all files ordered by id.
func (c *Card) Files() []File {
	out := make([]File, 0, len(c.files))
	for _, f := range c.files {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID() < out[j].ID() })
	return out
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

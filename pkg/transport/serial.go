package transport

import (
	"context"
	"fmt"

	"go.bug.st/serial"

	"github.com/dbehnke/modem-emu/pkg/logger"
)

// DefaultBaud is used when a serial binding names no speed.
const DefaultBaud = 115200

// OpenFunc opens a serial device. Tests replace it.
type OpenFunc func(device string, mode *serial.Mode) (serial.Port, error)

// SerialLink binds one instance to a serial device or pty.
type SerialLink struct {
	Device string
	Baud   int

	ep   Endpoint
	open OpenFunc
	log  *logger.Logger
}

// NewSerialLink creates a binding that opens device with go.bug.st/serial.
func NewSerialLink(device string, baud, instance int, ep Endpoint, log *logger.Logger) *SerialLink {
	if baud <= 0 {
		baud = DefaultBaud
	}
	return &SerialLink{
		Device: device,
		Baud:   baud,
		ep:     ep,
		open:   serial.Open,
		log:    log.WithComponent(fmt.Sprintf("transport.serial.%d", instance)),
	}
}

// Start opens the device and serves it until ctx is done or the device
// goes away.
func (l *SerialLink) Start(ctx context.Context) error {
	mode := &serial.Mode{
		BaudRate: l.Baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := l.open(l.Device, mode)
	if err != nil {
		return fmt.Errorf("failed to open serial port %s: %w", l.Device, err)
	}
	l.log.Info("Serial port opened", logger.String("device", l.Device), logger.Int("baud", l.Baud))

	if err := Serve(ctx, l.ep, port, l.log); err != nil {
		return fmt.Errorf("serial port %s: %w", l.Device, err)
	}
	l.log.Info("Serial port closed", logger.String("device", l.Device))
	return nil
}

// Package transport connects guests to modem instances over TCP, WebSocket
// and serial lines.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"

	"github.com/dbehnke/modem-emu/pkg/at"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
)

// outboxSize bounds the modem output queued for one slow guest.
const outboxSize = 256

// Endpoint is the modem side of a guest connection.
type Endpoint interface {
	Send(line string) bool
	Attach(fn modem.UnsolFunc) (detach func())
}

// Lookup finds the endpoint of an instance.
type Lookup func(id int) (Endpoint, bool)

// Serve pumps one guest connection until it closes or ctx is done. Modem
// output is queued and written from a separate goroutine, so a stalled
// guest never blocks the modem.
func Serve(ctx context.Context, ep Endpoint, conn io.ReadWriteCloser, log *logger.Logger) error {
	outbox := make(chan string, outboxSize)
	detach := ep.Attach(func(text string) {
		select {
		case outbox <- text:
		default:
			log.Warn("Guest output queue full, dropping", logger.Line("text", text))
		}
	})

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		for text := range outbox {
			if _, err := io.WriteString(conn, text); err != nil {
				log.Debug("Guest write failed", logger.Error(err))
				_ = conn.Close()
				for range outbox {
				}
				return
			}
		}
	}()

	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	framer := at.NewFramer(ep.Send)
	_, err := io.Copy(framer, conn)

	detach()
	close(outbox)
	<-writerDone
	_ = conn.Close()

	if ctx.Err() != nil || isClosed(err) {
		return nil
	}
	return err
}

func isClosed(err error) bool {
	return err == nil || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe)
}

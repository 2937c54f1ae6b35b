package modem

import (
	"time"

	"github.com/dbehnke/modem-emu/pkg/sms"
)

// RemoteEvent is a call event mirrored to the modem on the other end of a
// bridged call.
type RemoteEvent int

const (
	RemoteDial RemoteEvent = iota
	RemoteBusy
	RemoteHangup
	RemoteHold
	RemoteAccept
	// RemoteDialFailed tells the caller the peer could not take the call.
	RemoteDialFailed
)

func (e RemoteEvent) String() string {
	switch e {
	case RemoteDial:
		return "dial"
	case RemoteBusy:
		return "busy"
	case RemoteHangup:
		return "hangup"
	case RemoteHold:
		return "hold"
	case RemoteAccept:
		return "accept"
	case RemoteDialFailed:
		return "dial-failed"
	default:
		return "unknown"
	}
}

//go:generate mockgen -destination mock_remote_test.go -package modem -source remote.go Remote
//go:generate mockgen -destination mock_link_test.go -package modem github.com/dbehnke/modem-emu/pkg/datanet LinkController

// Remote reaches other modem instances. Notify and SendSMS must not call
// back into the sending modem synchronously; deliveries are expected to be
// scheduled.
type Remote interface {
	// Reachable reports whether number belongs to a running instance.
	Reachable(number string) bool
	// Notify delivers a call event from one number to another.
	Notify(from, to string, ev RemoteEvent)
	// SendSMS routes an SMS-DELIVER to the instance owning to.
	SendSMS(to string, d *sms.Deliver) error
}

type noRemote struct{}

func (noRemote) Reachable(string) bool              { return false }
func (noRemote) Notify(string, string, RemoteEvent) {}
func (noRemote) SendSMS(string, *sms.Deliver) error { return ErrUnreachable }

// CallRecord describes a finished call.
type CallRecord struct {
	Instance int
	CallID   int
	Inbound  bool
	Number   string
	Remote   bool
	Answered bool
	Cause    Cause
	Started  time.Time
	Ended    time.Time
}

// CallRecorder stores finished calls.
type CallRecorder interface {
	RecordCall(rec CallRecord)
}

// Observer is told about modem activity, e.g. to count it.
type Observer interface {
	CommandHandled(instance int, supported bool)
	CallStarted(instance int, inbound bool)
	CallEnded(instance int, cause int)
	DataContextChanged(instance int, active bool)
	SIMCommand(instance int, ok bool)
	SMSSent(instance int)
	SMSReceived(instance int)
}

type nopObserver struct{}

func (nopObserver) CommandHandled(int, bool)     {}
func (nopObserver) CallStarted(int, bool)        {}
func (nopObserver) CallEnded(int, int)           {}
func (nopObserver) DataContextChanged(int, bool) {}
func (nopObserver) SIMCommand(int, bool)         {}
func (nopObserver) SMSSent(int)                  {}
func (nopObserver) SMSReceived(int)              {}

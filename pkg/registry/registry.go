// Package registry hosts the modem instances of one emulator process and
// bridges calls and SMS between them.
package registry

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dbehnke/modem-emu/pkg/database"
	"github.com/dbehnke/modem-emu/pkg/datanet"
	"github.com/dbehnke/modem-emu/pkg/logger"
	"github.com/dbehnke/modem-emu/pkg/modem"
	"github.com/dbehnke/modem-emu/pkg/nvram"
	"github.com/dbehnke/modem-emu/pkg/schedule"
	"github.com/dbehnke/modem-emu/pkg/sim"
	"github.com/dbehnke/modem-emu/pkg/sms"
)

// RemoteDelay is how long a bridged event takes to reach the other modem.
const RemoteDelay = 100 * time.Millisecond

var (
	ErrUnknownInstance = errors.New("unknown modem instance")
	ErrHistoryDisabled = errors.New("call history is disabled")
)

// Direction tells which way a tapped line travelled.
type Direction int

const (
	FromGuest Direction = iota
	ToGuest
)

func (d Direction) String() string {
	if d == FromGuest {
		return "command"
	}
	return "unsolicited"
}

// Tap observes every line exchanged with a guest.
type Tap func(instance int, dir Direction, text string)

// StoreOpener opens the persistence store of one instance.
type StoreOpener func(instance int) (nvram.Store, error)

// Options configure a Registry. OpenStore and Scheduler are required.
type Options struct {
	BasePort    int
	Instances   int
	TimeUpdates bool
	Scheduler   schedule.Scheduler
	Pool        *datanet.Pool
	Link        datanet.LinkController
	OpenStore   StoreOpener
	History     *database.CallRecordRepository
	Observer    modem.Observer
	Tap         Tap
	Logger      *logger.Logger
	Clock       func() time.Time
}

// Registry owns all modem instances and implements modem.Remote for them.
type Registry struct {
	instances []*Instance
	byNumber  map[string]*Instance
	sched     schedule.Scheduler
	history   *database.CallRecordRepository
	tap       Tap
	log       *logger.Logger
	seq       atomic.Uint64

	// dials in flight, keyed by caller and callee
	dialMu sync.Mutex
	dials  map[string]string
}

// Instance is one hosted modem with its guest listeners.
type Instance struct {
	ID    int
	Modem *modem.Modem

	reg       *Registry
	mu        sync.RWMutex
	listeners map[int]modem.UnsolFunc
	nextID    int
}

// New creates every instance and loads its persisted settings.
func New(opts Options) (*Registry, error) {
	if opts.Instances <= 0 {
		return nil, fmt.Errorf("at least one instance is required")
	}
	if opts.OpenStore == nil || opts.Scheduler == nil {
		return nil, fmt.Errorf("store opener and scheduler are required")
	}
	log := opts.Logger
	if log == nil {
		log = logger.New(logger.Config{Level: "error"})
	}
	r := &Registry{
		byNumber: make(map[string]*Instance),
		dials:    make(map[string]string),
		sched:    opts.Scheduler,
		history:  opts.History,
		tap:      opts.Tap,
		log:      log.WithComponent("registry"),
	}

	var recorder modem.CallRecorder
	if opts.History != nil {
		recorder = &historyRecorder{repo: opts.History, log: r.log}
	}

	for i := 0; i < opts.Instances; i++ {
		store, err := opts.OpenStore(i)
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("failed to open store of instance %d: %w", i, err)
		}
		inst := &Instance{ID: i, reg: r, listeners: make(map[int]modem.UnsolFunc)}
		inst.Modem = modem.New(modem.Options{
			BasePort:    opts.BasePort,
			Instance:    i,
			Store:       store,
			SIM:         sim.New(opts.BasePort, i),
			Scheduler:   opts.Scheduler,
			Pool:        opts.Pool,
			Link:        opts.Link,
			Remote:      r,
			Recorder:    recorder,
			Observer:    opts.Observer,
			Logger:      log,
			TimeUpdates: opts.TimeUpdates,
			Clock:       opts.Clock,
		}, inst.deliver)
		r.instances = append(r.instances, inst)
		r.byNumber[inst.Modem.Number()] = inst
		r.log.Info("Modem instance ready",
			logger.Int("instance", i),
			logger.String("number", inst.Modem.Number()))
	}
	return r, nil
}

// Get returns the instance with the given index.
func (r *Registry) Get(id int) (*Instance, error) {
	if id < 0 || id >= len(r.instances) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownInstance, id)
	}
	return r.instances[id], nil
}

// Instances returns all instances ordered by index.
func (r *Registry) Instances() []*Instance {
	return append([]*Instance(nil), r.instances...)
}

// ByNumber finds the instance owning a phone number.
func (r *Registry) ByNumber(number string) (*Instance, bool) {
	inst, ok := r.byNumber[number]
	return inst, ok
}

// Reachable implements modem.Remote.
func (r *Registry) Reachable(number string) bool {
	_, ok := r.byNumber[number]
	return ok
}

func (r *Registry) nextKey() string {
	return fmt.Sprintf("remote.%d", r.seq.Add(1))
}

// Notify implements modem.Remote. The event reaches the target after
// RemoteDelay; a dial the target refuses is answered the same way.
func (r *Registry) Notify(from, to string, ev modem.RemoteEvent) {
	target, ok := r.byNumber[to]
	if !ok {
		r.log.Debug("Remote event for unknown number", logger.String("to", to), logger.String("event", ev.String()))
		return
	}
	if ev == modem.RemoteHangup && r.cancelDial(from, to) {
		r.log.Debug("Call released before reaching the callee",
			logger.String("from", from), logger.String("to", to))
		return
	}
	key := r.nextKey()
	if ev == modem.RemoteDial {
		r.dialMu.Lock()
		r.dials[from+">"+to] = key
		r.dialMu.Unlock()
	}
	r.sched.Schedule(key, RemoteDelay, func() {
		if ev == modem.RemoteDial {
			r.dialMu.Lock()
			if r.dials[from+">"+to] == key {
				delete(r.dials, from+">"+to)
			}
			r.dialMu.Unlock()
		}
		err := target.Modem.HandleRemote(from, ev)
		if err == nil {
			return
		}
		r.log.Debug("Remote event not applied",
			logger.String("from", from),
			logger.String("to", to),
			logger.String("event", ev.String()),
			logger.Error(err))
		if ev != modem.RemoteDial {
			return
		}
		reply := modem.RemoteDialFailed
		if errors.Is(err, modem.ErrTooManyCalls) {
			reply = modem.RemoteBusy
		}
		r.Notify(to, from, reply)
	})
}

// cancelDial drops a dial from one number to another that has not been
// delivered yet.
func (r *Registry) cancelDial(from, to string) bool {
	r.dialMu.Lock()
	defer r.dialMu.Unlock()
	key, ok := r.dials[from+">"+to]
	if !ok {
		return false
	}
	delete(r.dials, from+">"+to)
	r.sched.Cancel(key)
	return true
}

// SendSMS implements modem.Remote.
func (r *Registry) SendSMS(to string, d *sms.Deliver) error {
	target, ok := r.byNumber[to]
	if !ok {
		return fmt.Errorf("%w: %s", modem.ErrUnreachable, to)
	}
	r.sched.Schedule(r.nextKey(), RemoteDelay, func() {
		target.Modem.ReceiveSMS(d)
	})
	return nil
}

// History returns the most recent finished calls of an instance.
func (r *Registry) History(instance, limit int) ([]database.CallRecord, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	if _, err := r.Get(instance); err != nil {
		return nil, err
	}
	return r.history.GetRecent(instance, limit)
}

// HistoryByNumber returns the most recent calls to or from number on any
// instance.
func (r *Registry) HistoryByNumber(number string, limit int) ([]database.CallRecord, error) {
	if r.history == nil {
		return nil, ErrHistoryDisabled
	}
	return r.history.GetByNumber(number, limit)
}

// PruneHistory deletes calls that ended before the given time.
func (r *Registry) PruneHistory(before time.Time) (int64, error) {
	if r.history == nil {
		return 0, ErrHistoryDisabled
	}
	n, err := r.history.DeleteOlderThan(before)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		r.log.Info("Pruned call history", logger.Int("records", int(n)))
	}
	return n, nil
}

// Close closes every modem. Bridge events still pending are left to the
// scheduler owner.
func (r *Registry) Close() {
	for _, inst := range r.instances {
		inst.Modem.Close()
	}
}

// Attach registers fn for everything the modem sends to the guest. The
// returned function detaches it.
func (i *Instance) Attach(fn modem.UnsolFunc) (detach func()) {
	i.mu.Lock()
	id := i.nextID
	i.nextID++
	i.listeners[id] = fn
	i.mu.Unlock()

	return func() {
		i.mu.Lock()
		delete(i.listeners, id)
		i.mu.Unlock()
	}
}

// Listeners returns how many guest connections are attached.
func (i *Instance) Listeners() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.listeners)
}

// Send feeds one guest line to the modem and reports whether it now waits
// for an SMS PDU.
func (i *Instance) Send(line string) bool {
	if i.reg.tap != nil {
		i.reg.tap(i.ID, FromGuest, line)
	}
	return i.Modem.Send(line)
}

func (i *Instance) deliver(text string) {
	if i.reg.tap != nil {
		i.reg.tap(i.ID, ToGuest, text)
	}
	i.mu.RLock()
	defer i.mu.RUnlock()
	for _, fn := range i.listeners {
		fn(text)
	}
}

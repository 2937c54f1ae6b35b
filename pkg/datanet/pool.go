// Package datanet manages the host-side network bindings handed to active
// PDP contexts. The pool is shared by every modem instance in the process;
// a binding is checked out by at most one context at a time.
package datanet

import (
	"errors"
	"fmt"
	"net/netip"
	"sync"
)

// MaxDNS is the number of DNS servers +CGCONTRDP can report.
const MaxDNS = 2

// hostOffset is added to the subnet base to number the bindings.
const hostOffset = 100

// ErrPoolExhausted is returned when every binding is checked out.
var ErrPoolExhausted = errors.New("no free data network")

// Net is one network binding, e.g. rmnet.0.
type Net struct {
	Name    string
	Addr    netip.Addr
	Gateway netip.Addr
	DNS     []netip.Addr
}

// Bearer is the interface number reported to the guest: the part of the
// name after prefix.
func (n *Net) Bearer(prefix string) string {
	if len(n.Name) > len(prefix) && n.Name[:len(prefix)] == prefix {
		return n.Name[len(prefix):]
	}
	return n.Name
}

// Options describe the pool to build.
type Options struct {
	Prefix  string
	Count   int
	Subnet  string
	Gateway string
	DNS     []string
}

// Pool hands out Nets with exclusive checkout.
type Pool struct {
	mu     sync.Mutex
	prefix string
	nets   []*Net
	owner  map[*Net]string
}

// NewPool numbers Count bindings <prefix>0..N-1 at subnet base + 100 + N.
func NewPool(opts Options) (*Pool, error) {
	prefix, err := netip.ParsePrefix(opts.Subnet)
	if err != nil {
		return nil, fmt.Errorf("invalid subnet %q: %w", opts.Subnet, err)
	}
	if !prefix.Addr().Is4() {
		return nil, fmt.Errorf("subnet %q is not IPv4", opts.Subnet)
	}
	gw, err := netip.ParseAddr(opts.Gateway)
	if err != nil {
		return nil, fmt.Errorf("invalid gateway %q: %w", opts.Gateway, err)
	}
	var dns []netip.Addr
	for i, s := range opts.DNS {
		if i == MaxDNS {
			break
		}
		a, err := netip.ParseAddr(s)
		if err != nil {
			return nil, fmt.Errorf("invalid dns server %q: %w", s, err)
		}
		dns = append(dns, a)
	}

	base := prefix.Masked().Addr().As4()
	p := &Pool{prefix: opts.Prefix, owner: make(map[*Net]string)}
	for i := 0; i < opts.Count; i++ {
		host := int(base[3]) + hostOffset + i
		if host > 0xfe {
			return nil, fmt.Errorf("subnet %s cannot hold %d data networks", opts.Subnet, opts.Count)
		}
		addr := base
		addr[3] = byte(host)
		p.nets = append(p.nets, &Net{
			Name:    fmt.Sprintf("%s%d", opts.Prefix, i),
			Addr:    netip.AddrFrom4(addr),
			Gateway: gw,
			DNS:     dns,
		})
	}
	return p, nil
}

// Prefix is the interface name prefix of the pool.
func (p *Pool) Prefix() string { return p.prefix }

// Acquire checks out the first free Net for owner. It never blocks.
func (p *Pool) Acquire(owner string) (*Net, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, n := range p.nets {
		if _, taken := p.owner[n]; !taken {
			p.owner[n] = owner
			return n, nil
		}
	}
	return nil, ErrPoolExhausted
}

// Release returns n to the pool. Releasing a free Net is a no-op.
func (p *Pool) Release(n *Net) {
	if n == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.owner, n)
}

// Nets returns all bindings in name order.
func (p *Pool) Nets() []*Net {
	return append([]*Net(nil), p.nets...)
}

// Free is the number of bindings not checked out.
func (p *Pool) Free() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.nets) - len(p.owner)
}

// Owner reports which context holds n.
func (p *Pool) Owner(n *Net) (string, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	o, ok := p.owner[n]
	return o, ok
}

// Package netmon reports network reachability for sync gating.
package netmon

import (
	"context"
	"net"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// State is one connectivity observation.
type State struct {
	Online bool
	At     time.Time
}

// Monitor reports current reachability and streams transitions.
type Monitor interface {
	// Online re-derives reachability on every call; never a cached flag.
	Online() bool
	// Subscribe returns a channel receiving connectivity transitions.
	// Slow consumers miss intermediate states, never block the monitor.
	Subscribe() <-chan State
}

const defaultPollInterval = 15 * time.Second

// InterfaceMonitor derives reachability from the OS interface table: any
// non-loopback interface that is up and carries a global unicast address.
type InterfaceMonitor struct {
	log       *zap.Logger
	clock     clockwork.Clock
	pollEvery time.Duration
	probe     func() bool

	mu   sync.Mutex
	subs []chan State
}

// Option customizes an InterfaceMonitor.
type Option func(*InterfaceMonitor)

// WithClock substitutes the time source (tests).
func WithClock(clk clockwork.Clock) Option {
	return func(m *InterfaceMonitor) { m.clock = clk }
}

// WithPollInterval overrides how often Run re-checks connectivity.
func WithPollInterval(d time.Duration) Option {
	return func(m *InterfaceMonitor) { m.pollEvery = d }
}

// WithProbe substitutes the reachability check itself (tests).
func WithProbe(probe func() bool) Option {
	return func(m *InterfaceMonitor) { m.probe = probe }
}

// New constructs an interface-table monitor.
func New(log *zap.Logger, opts ...Option) *InterfaceMonitor {
	m := &InterfaceMonitor{
		log:       log,
		clock:     clockwork.NewRealClock(),
		pollEvery: defaultPollInterval,
	}
	m.probe = interfacesUp
	for _, o := range opts {
		o(m)
	}
	return m
}

// Online re-derives reachability from the current OS network state.
func (m *InterfaceMonitor) Online() bool { return m.probe() }

// Subscribe registers a transition listener. Safe from any goroutine.
func (m *InterfaceMonitor) Subscribe() <-chan State {
	ch := make(chan State, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch
}

// Run polls until ctx is cancelled, broadcasting online/offline transitions.
func (m *InterfaceMonitor) Run(ctx context.Context) error {
	last := m.Online()
	ticker := m.clock.NewTicker(m.pollEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			cur := m.Online()
			if cur == last {
				continue
			}
			last = cur
			m.log.Info("connectivity changed", zap.Bool("online", cur))
			m.broadcast(State{Online: cur, At: m.clock.Now()})
		}
	}
}

func (m *InterfaceMonitor) broadcast(s State) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		select {
		case ch <- s:
		default:
			// drop stale state rather than block; replace buffered value
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- s:
			default:
			}
		}
	}
}

// interfacesUp scans the interface table for a usable route out.
func interfacesUp() bool {
	ifaces, err := net.Interfaces()
	if err != nil {
		return false
	}
	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}
		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}
		for _, addr := range addrs {
			var ip net.IP
			switch a := addr.(type) {
			case *net.IPNet:
				ip = a.IP
			case *net.IPAddr:
				ip = a.IP
			}
			if ip != nil && ip.IsGlobalUnicast() {
				return true
			}
		}
	}
	return false
}

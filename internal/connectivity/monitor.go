package connectivity

import (
	"context"
	"sync"
	"time"

	"github.com/fekuna/omnipos-offline-sync/internal/logger"
	"github.com/fekuna/omnipos-offline-sync/internal/metrics"
	"go.uber.org/zap"
)

type Event int

const (
	Offline Event = iota
	Online
)

func (e Event) String() string {
	if e == Online {
		return "online"
	}
	return "offline"
}

// Listener is called synchronously, in subscription order, on every transition.
type Listener func(ctx context.Context, ev Event)

// Prober reports whether the remote store is reachable.
type Prober interface {
	Probe(ctx context.Context) error
}

type Monitor struct {
	mu        sync.RWMutex
	online    bool
	listeners []Listener

	// notifyMu serializes listener dispatch so transitions are observed in order.
	notifyMu sync.Mutex

	prober   Prober
	interval time.Duration
	timeout  time.Duration
	metrics  *metrics.Metrics
	logger   logger.ZapLogger
}

// NewMonitor starts offline; the first probe establishes the real state.
func NewMonitor(prober Prober, interval time.Duration, m *metrics.Metrics, log logger.ZapLogger) *Monitor {
	timeout := interval / 2
	if timeout <= 0 || timeout > 5*time.Second {
		timeout = 5 * time.Second
	}
	return &Monitor{
		prober:   prober,
		interval: interval,
		timeout:  timeout,
		metrics:  m,
		logger:   log,
	}
}

func (m *Monitor) IsOnline() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.online
}

func (m *Monitor) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Set records the current state and notifies listeners if it changed.
func (m *Monitor) Set(ctx context.Context, online bool) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	changed := m.online != online
	m.online = online
	listeners := append([]Listener(nil), m.listeners...)
	m.mu.Unlock()

	if m.metrics != nil {
		if online {
			m.metrics.Online.Set(1)
		} else {
			m.metrics.Online.Set(0)
		}
	}
	if !changed {
		return
	}

	ev := Offline
	if online {
		ev = Online
	}
	m.logger.Info("connectivity changed", zap.String("state", ev.String()))
	for _, fn := range listeners {
		fn(ctx, ev)
	}
}

// Check runs one probe and applies its result.
func (m *Monitor) Check(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	err := m.prober.Probe(probeCtx)
	if err != nil && ctx.Err() != nil {
		return m.IsOnline()
	}
	if err != nil {
		m.logger.Debug("connectivity probe failed", zap.Error(err))
	}
	m.Set(ctx, err == nil)
	return err == nil
}

// Run probes immediately and then every interval until ctx is done.
func (m *Monitor) Run(ctx context.Context) {
	m.Check(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Checker is what command paths consult before choosing online or offline.
type Checker interface {
	IsOnline() bool
}

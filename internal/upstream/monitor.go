package upstream

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Status is the outcome of one reachability probe.
type Status struct {
	Healthy    bool          `json:"healthy"`
	StatusCode int           `json:"status_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	CheckedAt  time.Time     `json:"checked_at"`
}

// Monitor probes the backend on a cron schedule and keeps the last result.
type Monitor struct {
	client   *Client
	schedule string
	timeout  time.Duration
	cron     *cron.Cron
	logger   zerolog.Logger

	mu       sync.RWMutex
	last     Status
	observer func(Status)
	running  bool
}

// NewMonitor creates a Monitor. schedule accepts standard cron specs and
// descriptors such as "@every 30s".
func NewMonitor(c *Client, schedule string, logger zerolog.Logger) *Monitor {
	return &Monitor{
		client:   c,
		schedule: schedule,
		timeout:  5 * time.Second,
		logger:   logger.With().Str("component", "upstream_monitor").Logger(),
	}
}

// OnCheck registers fn to receive every probe result.
func (m *Monitor) OnCheck(fn func(Status)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.observer = fn
}

// Start runs one probe immediately and then follows the schedule.
func (m *Monitor) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.running {
		return errors.New("upstream monitor already running")
	}

	// A stopped cron keeps its entries, so each run gets a fresh scheduler.
	sched := cron.New()
	if _, err := sched.AddFunc(m.schedule, func() { m.Check(context.Background()) }); err != nil {
		return err
	}

	m.cron = sched
	m.cron.Start()
	m.running = true
	go m.Check(context.Background())

	m.logger.Info().Str("schedule", m.schedule).Msg("upstream monitor started")
	return nil
}

// Stop halts the schedule. The returned context is done once running probes
// have finished.
func (m *Monitor) Stop() context.Context {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	m.running = false
	m.logger.Info().Msg("stopping upstream monitor")
	return m.cron.Stop()
}

// Check probes the backend now and records the result. Any answer below 500
// counts as healthy.
func (m *Monitor) Check(ctx context.Context) Status {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	code, err := m.client.Probe(ctx)
	st := Status{
		Healthy:    err == nil && code < 500,
		StatusCode: code,
		Latency:    time.Since(start),
		CheckedAt:  time.Now().UTC(),
	}
	if err != nil {
		st.Error = err.Error()
	}

	m.mu.Lock()
	prev := m.last
	m.last = st
	observer := m.observer
	m.mu.Unlock()

	if observer != nil {
		observer(st)
	}

	if !st.Healthy && (prev.Healthy || prev.CheckedAt.IsZero()) {
		m.logger.Warn().Str("error", st.Error).Int("status", code).Msg("upstream unreachable")
	} else if st.Healthy && !prev.Healthy && !prev.CheckedAt.IsZero() {
		m.logger.Info().Dur("latency", st.Latency).Msg("upstream recovered")
	}
	return st
}

// Last returns the most recent probe result; CheckedAt is zero before the
// first probe.
func (m *Monitor) Last() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.last
}

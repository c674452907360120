package prometheus

import (
	"context"
	"sync"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"github.com/Swind/go-task-patterns/core"
)

// ControllerSnapshotProvider provides current controller stats snapshots.
type ControllerSnapshotProvider interface {
	Stats() core.ControllerStats
}

// RunnerSnapshotProvider provides current runner stats snapshots.
type RunnerSnapshotProvider interface {
	Stats() core.RunnerStats
}

// PoolSnapshotProvider provides current pool stats snapshots.
type PoolSnapshotProvider interface {
	Stats() core.PoolStats
}

// PollerOptions configures a SnapshotPoller.
type PollerOptions struct {
	Namespace string
	Interval  time.Duration
	Clock     core.Clock
}

var allStates = []core.RunState{
	core.StateIdle,
	core.StateRunning,
	core.StateFinished,
	core.StateCancelled,
	core.StateFailed,
}

// SnapshotPoller periodically exports controller, runner and pool Stats()
// snapshots into Prometheus gauges.
type SnapshotPoller struct {
	interval time.Duration
	clock    core.Clock

	mu          sync.RWMutex
	controllers map[string]ControllerSnapshotProvider
	runners     map[string]RunnerSnapshotProvider
	pools       map[string]PoolSnapshotProvider

	controllerState        *prom.GaugeVec
	controllerActiveUnits  *prom.GaugeVec
	controllerWaitingUnits *prom.GaugeVec
	controllerStarted      *prom.GaugeVec
	controllerRejected     *prom.GaugeVec

	runnerPending  *prom.GaugeVec
	runnerRunning  *prom.GaugeVec
	runnerRejected *prom.GaugeVec
	runnerClosed   *prom.GaugeVec

	poolQueued   *prom.GaugeVec
	poolActive   *prom.GaugeVec
	poolRejected *prom.GaugeVec
	poolWorkers  *prom.GaugeVec
	poolRunning  *prom.GaugeVec

	stateMu sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewSnapshotPoller creates a snapshot poller and registers its collectors.
func NewSnapshotPoller(reg prom.Registerer, opts PollerOptions) (*SnapshotPoller, error) {
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	if opts.Namespace == "" {
		opts.Namespace = defaultNamespace
	}
	if opts.Interval <= 0 {
		opts.Interval = time.Second
	}
	if opts.Clock == nil {
		opts.Clock = core.NewRealClock()
	}
	ns := opts.Namespace

	gauge := func(name, help string, labels ...string) *prom.GaugeVec {
		return prom.NewGaugeVec(prom.GaugeOpts{Namespace: ns, Name: name, Help: help}, labels)
	}

	p := &SnapshotPoller{
		interval:    opts.Interval,
		clock:       opts.Clock,
		controllers: make(map[string]ControllerSnapshotProvider),
		runners:     make(map[string]RunnerSnapshotProvider),
		pools:       make(map[string]PoolSnapshotProvider),

		controllerState:        gauge("controller_state", "Controller run state (1 for the current state).", "controller", "state"),
		controllerActiveUnits:  gauge("controller_active_units", "Units currently scheduled or running per controller.", "controller"),
		controllerWaitingUnits: gauge("controller_waiting_units", "Units parked on a clock wait per controller.", "controller"),
		controllerStarted:      gauge("controller_runs_started", "Runs started per controller snapshot.", "controller"),
		controllerRejected:     gauge("controller_runs_rejected", "Refused run starts per controller snapshot.", "controller"),

		runnerPending:  gauge("runner_pending", "Number of pending tasks per runner.", "runner", "type"),
		runnerRunning:  gauge("runner_running", "Number of running tasks per runner.", "runner", "type"),
		runnerRejected: gauge("runner_rejected_total", "Runner rejected task count snapshot.", "runner", "type"),
		runnerClosed:   gauge("runner_closed", "Runner closed state (1=closed, 0=open).", "runner", "type"),

		poolQueued:   gauge("pool_queued", "Queued tasks per pool.", "pool"),
		poolActive:   gauge("pool_active", "Active tasks per pool.", "pool"),
		poolRejected: gauge("pool_rejected_total", "Rejected task count snapshot per pool.", "pool"),
		poolWorkers:  gauge("pool_workers", "Worker count per pool.", "pool"),
		poolRunning:  gauge("pool_running", "Pool running state (1=running, 0=stopped).", "pool"),
	}

	for _, vec := range []**prom.GaugeVec{
		&p.controllerState, &p.controllerActiveUnits, &p.controllerWaitingUnits, &p.controllerStarted, &p.controllerRejected,
		&p.runnerPending, &p.runnerRunning, &p.runnerRejected, &p.runnerClosed,
		&p.poolQueued, &p.poolActive, &p.poolRejected, &p.poolWorkers, &p.poolRunning,
	} {
		registered, err := registerCollector(reg, *vec)
		if err != nil {
			return nil, err
		}
		*vec = registered
	}
	return p, nil
}

// AddController adds or replaces a controller snapshot provider by name.
func (p *SnapshotPoller) AddController(name string, provider ControllerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.controllers[normalizeLabel(name, "controller")] = provider
	p.mu.Unlock()
}

// AddRunner adds or replaces a runner snapshot provider by name.
func (p *SnapshotPoller) AddRunner(name string, provider RunnerSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.runners[normalizeLabel(name, "runner")] = provider
	p.mu.Unlock()
}

// AddPool adds or replaces a pool snapshot provider by name.
func (p *SnapshotPoller) AddPool(name string, provider PoolSnapshotProvider) {
	if p == nil || provider == nil {
		return
	}
	p.mu.Lock()
	p.pools[normalizeLabel(name, "pool")] = provider
	p.mu.Unlock()
}

// Start begins periodic polling; repeated calls are no-ops.
func (p *SnapshotPoller) Start(ctx context.Context) {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if p.running {
		p.stateMu.Unlock()
		return
	}
	pollCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.running = true
	p.stateMu.Unlock()

	go p.loop(pollCtx, done)
}

// Stop stops periodic polling; repeated calls are safe.
func (p *SnapshotPoller) Stop() {
	if p == nil {
		return
	}

	p.stateMu.Lock()
	if !p.running {
		p.stateMu.Unlock()
		return
	}
	cancel := p.cancel
	done := p.done
	p.stateMu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}

	p.stateMu.Lock()
	p.running = false
	p.cancel = nil
	p.done = nil
	p.stateMu.Unlock()
}

func (p *SnapshotPoller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	p.CollectOnce()

	ticker := p.clock.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			p.CollectOnce()
		}
	}
}

// CollectOnce refreshes every gauge from the registered providers.
func (p *SnapshotPoller) CollectOnce() {
	p.mu.RLock()
	defer p.mu.RUnlock()

	for name, provider := range p.controllers {
		stats := provider.Stats()
		for _, s := range allStates {
			p.controllerState.WithLabelValues(name, s.String()).Set(boolGauge(stats.State == s))
		}
		p.controllerActiveUnits.WithLabelValues(name).Set(float64(stats.ActiveUnits))
		p.controllerWaitingUnits.WithLabelValues(name).Set(float64(stats.WaitingUnits))
		p.controllerStarted.WithLabelValues(name).Set(float64(stats.Started))
		p.controllerRejected.WithLabelValues(name).Set(float64(stats.Rejected))
	}

	for name, provider := range p.runners {
		stats := provider.Stats()
		typeLabel := normalizeLabel(stats.Type, "unknown")
		p.runnerPending.WithLabelValues(name, typeLabel).Set(float64(stats.Pending))
		p.runnerRunning.WithLabelValues(name, typeLabel).Set(float64(stats.Running))
		p.runnerRejected.WithLabelValues(name, typeLabel).Set(float64(stats.Rejected))
		p.runnerClosed.WithLabelValues(name, typeLabel).Set(boolGauge(stats.Closed))
	}

	for name, provider := range p.pools {
		stats := provider.Stats()
		p.poolQueued.WithLabelValues(name).Set(float64(stats.Queued))
		p.poolActive.WithLabelValues(name).Set(float64(stats.Active))
		p.poolRejected.WithLabelValues(name).Set(float64(stats.Rejected))
		p.poolWorkers.WithLabelValues(name).Set(float64(stats.Workers))
		p.poolRunning.WithLabelValues(name).Set(boolGauge(stats.Running))
	}
}

func boolGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

package orchestrator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Ayash-Bera/calypso/backend/internal/models"
	"github.com/Ayash-Bera/calypso/backend/internal/provider"
	"github.com/sirupsen/logrus"
)

const (
	// healthFreshFor bounds how long an on-demand probe result is
	// trusted before the next orchestrated call re-probes.
	healthFreshFor = 5 * time.Second

	probeTimeout = 5 * time.Second
)

// Registration binds a provider to its priority and call budget.
// Lower priority numbers are preferred.
type Registration struct {
	Provider     provider.Provider
	Priority     int
	Capabilities []string
	Timeout      time.Duration
}

// Options selects a provider and bounds a single orchestrated search.
type Options struct {
	Provider string // requested provider name; empty means highest priority
	Limit    int
}

// Outcome is the structured result of an orchestrated search. Provider
// failures never propagate past the orchestrator; they land here as
// Success=false with Error set.
type Outcome struct {
	Success  bool
	Provider string
	Failover bool
	Results  []models.Result
	Answer   string
	Error    string
	Duration time.Duration
}

// Orchestrator routes searches across a priority-ordered provider
// registry, refreshing health on demand and failing over at most once
// per request.
type Orchestrator struct {
	mu     sync.RWMutex
	regs   []Registration
	health map[string]provider.Health
	logger *logrus.Logger

	now func() time.Time
}

func New(logger *logrus.Logger) *Orchestrator {
	return &Orchestrator{
		health: make(map[string]provider.Health),
		logger: logger,
		now:    time.Now,
	}
}

// Register adds a provider to the registry. Its health starts unknown.
func (o *Orchestrator) Register(p provider.Provider, priority int, capabilities []string, timeout time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.regs = append(o.regs, Registration{
		Provider:     p,
		Priority:     priority,
		Capabilities: capabilities,
		Timeout:      timeout,
	})
	sort.SliceStable(o.regs, func(i, j int) bool {
		return o.regs[i].Priority < o.regs[j].Priority
	})

	o.health[p.Name()] = provider.Health{Status: provider.StatusUnknown}
}

// CheckHealth probes one provider with a bounded timeout and records
// the outcome.
func (o *Orchestrator) CheckHealth(ctx context.Context, name string) provider.Health {
	reg, ok := o.registration(name)
	if !ok {
		return provider.Health{Status: provider.StatusUnknown}
	}
	return o.probe(ctx, reg)
}

// HealthSummary returns the last recorded health of every provider.
func (o *Orchestrator) HealthSummary() map[string]provider.Health {
	o.mu.RLock()
	defer o.mu.RUnlock()

	summary := make(map[string]provider.Health, len(o.health))
	for name, h := range o.health {
		summary[name] = h
	}
	return summary
}

// ExecuteSearch resolves the requested (or preferred) provider,
// executes the search, and fails over exactly once to the next
// alternate on an unhealthy primary, an error, or a timeout.
func (o *Orchestrator) ExecuteSearch(ctx context.Context, query string, opts Options) Outcome {
	start := o.now()

	primary, alternate, ok := o.resolve(opts.Provider)
	if !ok {
		return Outcome{
			Success:  false,
			Error:    "no providers registered",
			Duration: o.now().Sub(start),
		}
	}

	var primaryErr error

	if h := o.freshHealth(ctx, primary); h.Status == provider.StatusHealthy || h.Status == provider.StatusUnknown {
		resp, err := o.call(ctx, primary, query, opts.Limit)
		if err == nil {
			return Outcome{
				Success:  true,
				Provider: primary.Provider.Name(),
				Results:  resp.Results,
				Answer:   resp.Answer,
				Duration: o.now().Sub(start),
			}
		}
		primaryErr = err
	} else {
		primaryErr = fmt.Errorf("provider %s is %s", primary.Provider.Name(), h.Status)
	}

	o.logger.WithError(primaryErr).WithField("provider", primary.Provider.Name()).Warn("Primary provider failed, attempting failover")

	if alternate == nil {
		return Outcome{
			Success:  false,
			Provider: primary.Provider.Name(),
			Error:    primaryErr.Error(),
			Duration: o.now().Sub(start),
		}
	}

	resp, err := o.call(ctx, *alternate, query, opts.Limit)
	if err != nil {
		return Outcome{
			Success:  false,
			Provider: alternate.Provider.Name(),
			Failover: true,
			Error:    fmt.Sprintf("primary: %v; failover: %v", primaryErr, err),
			Duration: o.now().Sub(start),
		}
	}

	return Outcome{
		Success:  true,
		Provider: alternate.Provider.Name(),
		Failover: true,
		Results:  resp.Results,
		Answer:   resp.Answer,
		Duration: o.now().Sub(start),
	}
}

// resolve picks the primary registration (requested by name, else the
// best priority) and the next-priority alternate.
func (o *Orchestrator) resolve(requested string) (Registration, *Registration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	if len(o.regs) == 0 {
		return Registration{}, nil, false
	}

	primaryIdx := 0
	if requested != "" {
		for i, reg := range o.regs {
			if reg.Provider.Name() == requested {
				primaryIdx = i
				break
			}
		}
	}

	primary := o.regs[primaryIdx]
	for i, reg := range o.regs {
		if i != primaryIdx {
			alt := reg
			return primary, &alt, true
		}
	}
	return primary, nil, true
}

func (o *Orchestrator) registration(name string) (Registration, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	for _, reg := range o.regs {
		if reg.Provider.Name() == name {
			return reg, true
		}
	}
	return Registration{}, false
}

// freshHealth returns the cached health when recent enough, probing
// otherwise. Keeps a request burst from re-probing per call.
func (o *Orchestrator) freshHealth(ctx context.Context, reg Registration) provider.Health {
	name := reg.Provider.Name()

	o.mu.RLock()
	h, ok := o.health[name]
	o.mu.RUnlock()

	if ok && h.Status != provider.StatusUnknown && o.now().Sub(h.CheckedAt) < healthFreshFor {
		return h
	}
	return o.probe(ctx, reg)
}

func (o *Orchestrator) probe(ctx context.Context, reg Registration) provider.Health {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	name := reg.Provider.Name()
	h := provider.Health{Status: provider.StatusHealthy, CheckedAt: o.now()}

	if err := reg.Provider.HealthCheck(probeCtx); err != nil {
		h.Status = provider.StatusUnhealthy
		h.LastError = err.Error()
		o.logger.WithError(err).WithField("provider", name).Warn("Provider health check failed")
	}

	o.mu.Lock()
	o.health[name] = h
	o.mu.Unlock()

	return h
}

func (o *Orchestrator) call(ctx context.Context, reg Registration, query string, limit int) (*provider.Response, error) {
	resp, err := reg.Provider.Search(ctx, query, provider.Options{
		Limit:   limit,
		Timeout: reg.Timeout,
	})

	name := reg.Provider.Name()
	if err != nil {
		o.recordHealth(name, provider.StatusUnhealthy, err.Error())
		return nil, err
	}
	if !resp.Success {
		err := fmt.Errorf("provider %s returned failure: %s", name, resp.Error)
		o.recordHealth(name, provider.StatusUnhealthy, resp.Error)
		return nil, err
	}

	o.recordHealth(name, provider.StatusHealthy, "")
	return resp, nil
}

func (o *Orchestrator) recordHealth(name string, status provider.Status, lastError string) {
	o.mu.Lock()
	o.health[name] = provider.Health{Status: status, CheckedAt: o.now(), LastError: lastError}
	o.mu.Unlock()
}

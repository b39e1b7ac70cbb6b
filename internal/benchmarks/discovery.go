package benchmarks

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

var ErrDiscoveryCoolingDown = errors.New("BENCHMARK_DISCOVERY_COOLING_DOWN")

// Finder produces a benchmark record for a tool nobody has catalogued yet.
type Finder interface {
	FindBenchmark(ctx context.Context, tool string) (*models.Benchmark, error)
}

// Discoverer runs best-effort discovery with one in-flight call per normalized tool name.
// Failed names are not retried until the cool-down passes.
type Discoverer struct {
	finder   Finder
	sink     Sink
	logger   logger.Logger
	timeout  time.Duration
	coolDown time.Duration
	onDone   func(tool string, err error)

	group singleflight.Group

	mu     sync.Mutex
	failed map[string]time.Time
	now    func() time.Time
}

// DiscovererOption configures a Discoverer.
type DiscovererOption func(*Discoverer)

// WithDiscoveryTimeout bounds each detached discovery.
func WithDiscoveryTimeout(d time.Duration) DiscovererOption {
	return func(x *Discoverer) { x.timeout = d }
}

// WithCoolDown sets how long a failed name is skipped.
func WithCoolDown(d time.Duration) DiscovererOption {
	return func(x *Discoverer) { x.coolDown = d }
}

// WithDoneHook is called after every detached discovery finishes.
func WithDoneHook(fn func(tool string, err error)) DiscovererOption {
	return func(x *Discoverer) { x.onDone = fn }
}

// NewDiscoverer creates a Discoverer writing results to sink.
func NewDiscoverer(finder Finder, sink Sink, log logger.Logger, opts ...DiscovererOption) *Discoverer {
	d := &Discoverer{
		finder:   finder,
		sink:     sink,
		logger:   log.WithFields(map[string]interface{}{"component": "benchmark-discovery"}),
		timeout:  20 * time.Second,
		coolDown: 10 * time.Minute,
		failed:   make(map[string]time.Time),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Trigger starts discovery for tool without waiting. Concurrent triggers for the same tool
// share one call.
func (d *Discoverer) Trigger(tool string) {
	k := Key(tool)
	if k == "" || d.coolingDown(k) {
		return
	}

	// DoChan runs fn on its own goroutine; the buffered result channel is simply dropped.
	d.group.DoChan(k, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
		defer cancel()
		b, err := d.run(ctx, k, tool)
		if d.onDone != nil {
			d.onDone(tool, err)
		}
		return b, err
	})
}

// Discover runs discovery synchronously, sharing any in-flight call for the same tool.
func (d *Discoverer) Discover(ctx context.Context, tool string) (*models.Benchmark, error) {
	k := Key(tool)
	if k == "" {
		return nil, ErrInvalidEntry
	}
	if d.coolingDown(k) {
		return nil, ErrDiscoveryCoolingDown
	}

	v, err, _ := d.group.Do(k, func() (interface{}, error) {
		return d.run(ctx, k, tool)
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.Benchmark), nil
}

func (d *Discoverer) run(ctx context.Context, key, tool string) (*models.Benchmark, error) {
	b, err := d.finder.FindBenchmark(ctx, tool)
	if err == nil {
		err = Validate(*b)
	}
	if err == nil {
		err = d.sink.Upsert(ctx, *b)
	}
	if err != nil {
		d.markFailed(key)
		d.logger.Warn("benchmark discovery failed", map[string]interface{}{
			"tool":  tool,
			"error": err,
		})
		return nil, fmt.Errorf("discover %q: %w", tool, err)
	}

	d.logger.Info("benchmark discovered", map[string]interface{}{
		"tool":      tool,
		"canonical": b.Name,
		"plans":     len(b.Plans),
	})
	return b, nil
}

func (d *Discoverer) coolingDown(key string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	at, ok := d.failed[key]
	if !ok {
		return false
	}
	if d.now().Sub(at) >= d.coolDown {
		delete(d.failed, key)
		return false
	}
	return true
}

func (d *Discoverer) markFailed(key string) {
	d.mu.Lock()
	d.failed[key] = d.now()
	d.mu.Unlock()
}

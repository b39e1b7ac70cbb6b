package benchmarks

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"subscription-intake/internal/common/logger"
	"subscription-intake/internal/models"
)

type fakeFinder struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (f *fakeFinder) FindBenchmark(ctx context.Context, tool string) (*models.Benchmark, error) {
	f.calls.Add(1)
	if f.release != nil {
		select {
		case <-f.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return &models.Benchmark{Name: "Loom", Plans: []string{"Business", "Enterprise"}}, nil
}

func TestDiscoverer_TriggerDeduplicatesInFlight(t *testing.T) {
	finder := &fakeFinder{release: make(chan struct{})}
	catalog := newTestCatalog(t)

	done := make(chan error, 8)
	d := NewDiscoverer(finder, catalog, logger.NewTestLogger(t),
		WithDoneHook(func(_ string, err error) { done <- err }))

	for i := 0; i < 5; i++ {
		d.Trigger("Loom")
		d.Trigger(" loom ")
	}
	close(finder.release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("discovery did not finish")
	}

	assert.Equal(t, int32(1), finder.calls.Load())
	_, ok := catalog.ResolveCanonical(context.Background(), "Loom")
	assert.True(t, ok)
}

func TestDiscoverer_CoolDownAfterFailure(t *testing.T) {
	finder := &fakeFinder{err: errors.New("generation failed")}
	d := NewDiscoverer(finder, newTestCatalog(t), logger.NewTestLogger(t), WithCoolDown(time.Hour))

	_, err := d.Discover(context.Background(), "Loom")
	require.Error(t, err)

	_, err = d.Discover(context.Background(), "Loom")
	assert.ErrorIs(t, err, ErrDiscoveryCoolingDown)
	assert.Equal(t, int32(1), finder.calls.Load())
}

func TestDiscoverer_RejectsInvalidRecord(t *testing.T) {
	finder := &invalidFinder{}
	d := NewDiscoverer(finder, newTestCatalog(t), logger.NewTestLogger(t))

	_, err := d.Discover(context.Background(), "Loom")
	assert.ErrorIs(t, err, ErrInvalidEntry)
}

type invalidFinder struct{}

func (invalidFinder) FindBenchmark(context.Context, string) (*models.Benchmark, error) {
	return &models.Benchmark{Name: ""}, nil
}

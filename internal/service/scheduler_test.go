package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCleaner struct {
	mu         sync.Mutex
	retentions []int
}

func (f *fakeCleaner) CleanupOldChannels(ctx context.Context, retentionDays int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retentions = append(f.retentions, retentionDays)
	return nil
}

func (f *fakeCleaner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.retentions)
}

func TestSchedulerRunsCleanupOnStart(t *testing.T) {
	cleaner := &fakeCleaner{}
	scheduler := NewScheduler(cleaner, 30, 1, quietLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		scheduler.Start(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool {
		return cleaner.count() == 1
	}, time.Second, 10*time.Millisecond)

	cleaner.mu.Lock()
	assert.Equal(t, 30, cleaner.retentions[0])
	cleaner.mu.Unlock()

	cancel()
	<-done
}

func TestSchedulerStopsOnStopSignal(t *testing.T) {
	cleaner := &fakeCleaner{}
	scheduler := NewScheduler(cleaner, 7, 1, quietLogger())

	done := make(chan struct{})
	go func() {
		scheduler.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool {
		return cleaner.count() == 1
	}, time.Second, 10*time.Millisecond)

	scheduler.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}

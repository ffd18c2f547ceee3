package cleanup

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	deleted int64
	called  chan struct{}
}

func (f *fakePruner) DeleteEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	f.mu.Lock()
	f.cutoffs = append(f.cutoffs, cutoff)
	f.mu.Unlock()

	select {
	case f.called <- struct{}{}:
	default:
	}
	return f.deleted, nil
}

func TestCleanerPrunesOnStart(t *testing.T) {
	pruner := &fakePruner{deleted: 3, called: make(chan struct{}, 1)}
	retention := 48 * time.Hour

	cleaner := NewCleaner(pruner, time.Hour, retention)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	cleaner.Start(ctx)

	select {
	case <-pruner.called:
	case <-time.After(2 * time.Second):
		t.Fatal("cleaner did not run on start")
	}

	pruner.mu.Lock()
	defer pruner.mu.Unlock()
	if len(pruner.cutoffs) == 0 {
		t.Fatal("no cutoff recorded")
	}

	// Cutoff sits one retention window in the past
	want := time.Now().UTC().Add(-retention)
	got := pruner.cutoffs[0]
	if diff := want.Sub(got); diff < -time.Minute || diff > time.Minute {
		t.Errorf("cutoff %v too far from expected %v", got, want)
	}
}

func TestCleanerDefaults(t *testing.T) {
	cleaner := NewCleaner(&fakePruner{called: make(chan struct{}, 1)}, 0, 0)

	if cleaner.interval != time.Hour {
		t.Errorf("expected default interval 1h, got %v", cleaner.interval)
	}
	if cleaner.retention != 90*24*time.Hour {
		t.Errorf("expected default retention 90d, got %v", cleaner.retention)
	}
}

package resources_test

import (
	"context"
	"testing"
	"time"

	"github.com/gambtho/container-assist/internal/resources"
)

func TestSweepPurgesExpiredEntries(t *testing.T) {
	store := resources.NewMemoryStore()
	p := resources.NewPublisher(store, "cassist", 3600, 1)
	ctx := context.Background()

	fresh, err := p.Publish(ctx, "sess-1", "fresh", resources.MimeText)
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	stale, err := p.Publish(ctx, "sess-1", "stale", resources.MimeText, resources.WithTTL(60))
	if err != nil {
		t.Fatalf("Publish() error = %v", err)
	}

	entry, _ := store.Get(ctx, stale.URI)
	entry.CreatedAt = entry.CreatedAt.Add(-2 * time.Minute)
	store.Put(ctx, entry)

	var purged int
	sweeper := resources.NewSweeper(store, time.Hour, func(n int) { purged = n })

	if removed := sweeper.Sweep(ctx); removed != 1 {
		t.Errorf("Sweep() removed %d, want 1", removed)
	}
	if purged != 1 {
		t.Errorf("onPurge hook got %d, want 1", purged)
	}
	if _, err := store.Get(ctx, fresh.URI); err != nil {
		t.Errorf("fresh entry purged: %v", err)
	}
	if _, err := store.Get(ctx, stale.URI); err == nil {
		t.Error("stale entry survived the sweep")
	}
}

func TestSweeperStartStop(t *testing.T) {
	store := resources.NewMemoryStore()
	sweeper := resources.NewSweeper(store, time.Hour, nil)

	sweeper.Start(context.Background())
	sweeper.Stop() // must not hang or panic
}

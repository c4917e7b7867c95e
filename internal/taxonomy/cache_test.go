package taxonomy

import (
	"context"
	"testing"
	"time"

	"safetyreport_backend/platform/logger"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

type countingLoader struct {
	calls int
	snap  Snapshot
}

func (l *countingLoader) Load(ctx context.Context) (Snapshot, error) {
	l.calls++
	return l.snap, nil
}

func testSnapshot() Snapshot {
	return Snapshot{
		Entries: []Entry{
			{Code: "A1", Name: "Confined Spaces", Category: "Work at Risk"},
			{Code: "A15", Name: "Working at Height", Category: "Work at Risk"},
		},
		Locations: []string{"Site Office"},
	}
}

func TestCachedProviderCachesSnapshot(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	loader := &countingLoader{snap: testSnapshot()}
	provider := NewCachedProvider(loader, rdb, time.Minute, logger.New("development"))

	first, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("first snapshot: %v", err)
	}
	if len(first.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(first.Entries))
	}

	second, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second snapshot: %v", err)
	}
	if loader.calls != 1 {
		t.Fatalf("expected one loader call, got %d", loader.calls)
	}
	if len(second.Entries) != 2 || second.Entries[1].Code != "A15" {
		t.Fatalf("cached snapshot mismatch: %+v", second)
	}
}

func TestCachedProviderReloadsAfterExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	loader := &countingLoader{snap: testSnapshot()}
	provider := NewCachedProvider(loader, rdb, time.Minute, logger.New("development"))

	if _, err := provider.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := provider.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after expiry: %v", err)
	}
	if loader.calls != 2 {
		t.Fatalf("expected reload after TTL expiry, got %d loader calls", loader.calls)
	}
}

func TestCachedProviderDegradesWhenCacheDown(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	mr.Close()

	loader := &countingLoader{snap: testSnapshot()}
	provider := NewCachedProvider(loader, rdb, time.Minute, logger.New("development"))

	snap, err := provider.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("cache outage must not fail the snapshot: %v", err)
	}
	if len(snap.Entries) != 2 {
		t.Fatalf("expected loader snapshot, got %+v", snap)
	}
	if loader.calls != 1 {
		t.Fatalf("expected direct load, got %d calls", loader.calls)
	}
}

func TestSnapshotLookup(t *testing.T) {
	snap := testSnapshot()

	entry, ok := snap.Lookup("a15")
	if !ok || entry.Name != "Working at Height" {
		t.Fatalf("Lookup(a15) = (%+v, %v)", entry, ok)
	}

	if _, ok := snap.Lookup("Z9"); ok {
		t.Fatal("unknown code must not resolve")
	}
}

package discovery

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"actionbroker/internal/common"
)

// fakeSource is a scriptable Source for cache tests.
type fakeSource struct {
	mu        sync.Mutex
	endpoints []Endpoint
	err       error
	delay     time.Duration
	calls     atomic.Int64
}

func (f *fakeSource) Scan(ctx context.Context) ([]Endpoint, error) {
	f.calls.Add(1)
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	out := make([]Endpoint, len(f.endpoints))
	copy(out, f.endpoints)
	return out, nil
}

func (f *fakeSource) Root() string { return "fake" }

func (f *fakeSource) set(endpoints []Endpoint, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.endpoints = endpoints
	f.err = err
}

var testEndpoints = []Endpoint{
	{PathTemplate: "/api/crm/companies", Methods: []string{"GET", "POST"}},
	{PathTemplate: "/api/crm/contacts", Methods: []string{"GET"}},
}

func TestCache_Snapshot_CachesWithinWindow(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	first, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("first snapshot failed: %v", err)
	}
	second, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("second snapshot failed: %v", err)
	}

	if got := c.ScanCount(); got != 1 {
		t.Errorf("expected 1 scan within freshness window, got %d", got)
	}
	if !reflect.DeepEqual(first.Endpoints, second.Endpoints) {
		t.Error("expected identical endpoint sets within freshness window")
	}
	if !first.BuiltAt.Equal(second.BuiltAt) {
		t.Error("expected the same snapshot instance within freshness window")
	}
}

func TestCache_Snapshot_RescansAfterExpiry(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, 20*time.Millisecond, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	time.Sleep(40 * time.Millisecond)
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after expiry failed: %v", err)
	}

	if got := c.ScanCount(); got != 2 {
		t.Errorf("expected 2 scans after expiry, got %d", got)
	}
}

func TestCache_Refresh_ForcesRescan(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	updated := append([]Endpoint{}, testEndpoints...)
	updated = append(updated, Endpoint{PathTemplate: "/api/crm/deals", Methods: []string{"GET"}})
	src.set(updated, nil)

	snap, err := c.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if len(snap.Endpoints) != 3 {
		t.Errorf("expected refreshed snapshot with 3 endpoints, got %d", len(snap.Endpoints))
	}
	if got := c.ScanCount(); got != 2 {
		t.Errorf("expected refresh to scan despite fresh window, got %d scans", got)
	}
}

func TestCache_Invalidate_ForcesRescanOnNextAccess(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	c.Invalidate()
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after invalidate failed: %v", err)
	}

	if got := c.ScanCount(); got != 2 {
		t.Errorf("expected invalidation to force a rescan, got %d scans", got)
	}
}

func TestCache_FailedRescanServesPreviousSnapshot(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("initial snapshot failed: %v", err)
	}

	src.set(nil, errors.New("route tree vanished"))
	c.Invalidate()

	snap, err := c.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("expected stale snapshot on failed rescan, got error: %v", err)
	}
	if !reflect.DeepEqual(snap.Endpoints, testEndpoints) {
		t.Errorf("expected previous endpoint set, got %+v", snap.Endpoints)
	}
	if got := c.ScanCount(); got != 2 {
		t.Errorf("expected failed rescan to be attempted once, got %d scans", got)
	}

	// The window is re-armed: the very next access serves the stale set
	// without hammering the broken source.
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot after failed rescan errored: %v", err)
	}
	if got := c.ScanCount(); got != 2 {
		t.Errorf("expected no additional scan within re-armed window, got %d", got)
	}
}

func TestCache_InitialScanFailureIsError(t *testing.T) {
	src := &fakeSource{err: errors.New("boom")}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err == nil {
		t.Fatal("expected error when the initial scan fails")
	}
}

func TestCache_ConcurrentExpiryCollapsesToOneScan(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints, delay: 50 * time.Millisecond}
	c := NewCache(src, time.Minute, common.NewSilentLogger())

	const callers = 20
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := c.Snapshot(context.Background()); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent snapshot failed: %v", err)
	}

	if got := c.ScanCount(); got != 1 {
		t.Errorf("expected concurrent callers to share one scan, got %d", got)
	}
}

func TestCache_ZeroTTLUsesDefault(t *testing.T) {
	src := &fakeSource{endpoints: testEndpoints}
	c := NewCache(src, 0, common.NewSilentLogger())

	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if _, err := c.Snapshot(context.Background()); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
	if got := c.ScanCount(); got != 1 {
		t.Errorf("expected default freshness window to hold, got %d scans", got)
	}
}

package state

import (
	"errors"
	"sync"
	"testing"
	"time"
)

func TestBeginRejectsConcurrentFlow(t *testing.T) {
	mgr := NewMemoryManager(time.Hour)
	if _, err := mgr.Begin(1, "create", "awaiting_name", nil); err != nil {
		t.Fatalf("first begin: %v", err)
	}
	if _, err := mgr.Begin(1, "create", "awaiting_name", nil); !errors.Is(err, ErrFlowInProgress) {
		t.Fatalf("second begin = %v, want ErrFlowInProgress", err)
	}
	// A different category conflicts as well.
	if _, err := mgr.Begin(1, "remove", "awaiting_pack_selection", nil); !errors.Is(err, ErrFlowInProgress) {
		t.Fatalf("cross-category begin = %v, want ErrFlowInProgress", err)
	}
	// Other users are unaffected.
	if _, err := mgr.Begin(2, "create", "awaiting_name", nil); err != nil {
		t.Fatalf("begin for other user: %v", err)
	}
}

func TestBeginRaceKeepsOneSession(t *testing.T) {
	mgr := NewMemoryManager(time.Hour)
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = mgr.Begin(7, "create", "awaiting_name", nil)
		}(i)
	}
	wg.Wait()

	won := 0
	for _, err := range errs {
		if err == nil {
			won++
		} else if !errors.Is(err, ErrFlowInProgress) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if won != 1 {
		t.Fatalf("winners = %d, want exactly 1", won)
	}
}

func TestCancelReportsOpenSession(t *testing.T) {
	mgr := NewMemoryManager(time.Hour)
	if mgr.Cancel(1) {
		t.Fatal("cancel with no session should report false")
	}
	if _, err := mgr.Begin(1, "delete", "awaiting_pack_selection", nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	if !mgr.Cancel(1) {
		t.Fatal("cancel with open session should report true")
	}
	if mgr.InProgress(1) {
		t.Fatal("session should be gone after cancel")
	}
	if st := mgr.GetState(1); st != StateIdle {
		t.Fatalf("state after cancel = %s, want idle", st)
	}
}

func TestAdvanceUpdatesState(t *testing.T) {
	mgr := NewMemoryManager(time.Hour)
	if _, err := mgr.Begin(1, "create", "awaiting_name", nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	mgr.Advance(1, "awaiting_first_item")
	if st := mgr.GetState(1); st != "awaiting_first_item" {
		t.Fatalf("state = %s, want awaiting_first_item", st)
	}
	sess, ok := mgr.Active(1)
	if !ok {
		t.Fatal("session should be active")
	}
	if sess.Category != "create" {
		t.Fatalf("category = %s, want create", sess.Category)
	}
}

func TestIdleSessionExpires(t *testing.T) {
	mgr := NewMemoryManager(time.Minute).(*memoryManager)
	base := time.Unix(1_700_000_000, 0)
	mgr.now = func() time.Time { return base }

	if _, err := mgr.Begin(1, "create", "awaiting_name", nil); err != nil {
		t.Fatalf("begin: %v", err)
	}

	// Within TTL the session survives and Advance refreshes it.
	base = base.Add(50 * time.Second)
	mgr.Advance(1, "awaiting_first_item")
	base = base.Add(50 * time.Second)
	if !mgr.InProgress(1) {
		t.Fatal("refreshed session should still be live")
	}

	// Past TTL the session is pruned and a new flow may start.
	base = base.Add(2 * time.Minute)
	if mgr.InProgress(1) {
		t.Fatal("expired session should be discarded")
	}
	if _, err := mgr.Begin(1, "remove", "awaiting_pack_selection", nil); err != nil {
		t.Fatalf("begin after expiry: %v", err)
	}
}

func TestZeroTTLNeverExpires(t *testing.T) {
	mgr := NewMemoryManager(0).(*memoryManager)
	base := time.Unix(1_700_000_000, 0)
	mgr.now = func() time.Time { return base }

	if _, err := mgr.Begin(1, "create", "awaiting_name", nil); err != nil {
		t.Fatalf("begin: %v", err)
	}
	base = base.Add(1000 * time.Hour)
	if !mgr.InProgress(1) {
		t.Fatal("session should be immortal with ttl=0")
	}
}

package store

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newConn(caregiverID, elderlyID, status string) ConnectionData {
	return ConnectionData{
		ID:          GenNewID(),
		CaregiverID: caregiverID,
		ElderlyID:   elderlyID,
		Status:      status,
		CreatedAt:   time.Now(),
	}
}

func TestTransitionConditions(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConnectionStore()

	c := newConn("c1", "e1", StatusPending)
	if err := s.Insert(ctx, c); err != nil {
		t.Fatal(err)
	}

	got, err := s.Transition(ctx, c.ID, StatusPending, StatusApproved, time.Now())
	if err != nil {
		t.Fatalf("transition pending→approved: %v", err)
	}
	if got.Status != StatusApproved || got.ConfirmedAt == nil {
		t.Errorf("got status %q, confirmedAt %v", got.Status, got.ConfirmedAt)
	}

	// Terminal record must not transition again.
	if _, err := s.Transition(ctx, c.ID, StatusPending, StatusRejected, time.Now()); !errors.Is(err, ErrWrongStatus) {
		t.Errorf("second transition error = %v, want ErrWrongStatus", err)
	}
	after, _ := s.Get(ctx, c.ID)
	if after.Status != StatusApproved {
		t.Errorf("record mutated by failed transition: %q", after.Status)
	}

	// Unknown record.
	if _, err := s.Transition(ctx, GenNewID(), StatusPending, StatusApproved, time.Now()); !errors.Is(err, ErrNotFound) {
		t.Errorf("unknown record error = %v, want ErrNotFound", err)
	}
}

func TestFindActiveByPair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConnectionStore()

	// No record yet.
	if _, err := s.FindActiveByPair(ctx, "c1", "e1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("empty store error = %v, want ErrNotFound", err)
	}

	// A rejected record is not active; a later pending one is.
	rejected := newConn("c1", "e1", StatusRejected)
	pending := newConn("c1", "e1", StatusPending)
	s.Insert(ctx, rejected)
	s.Insert(ctx, pending)

	got, err := s.FindActiveByPair(ctx, "c1", "e1")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID != pending.ID {
		t.Errorf("active record = %s, want the pending one %s", got.ID, pending.ID)
	}
}

func TestListOrderIsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConnectionStore()

	first := newConn("c1", "e1", StatusApproved)
	second := newConn("c1", "e2", StatusApproved)
	s.Insert(ctx, first)
	s.Insert(ctx, second)

	list, err := s.ListByCaregiver(ctx, "c1", StatusApproved)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != first.ID || list[1].ID != second.ID {
		t.Errorf("list order not deterministic: %v", list)
	}
}

func TestDeleteApprovedPair(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryConnectionStore()

	approved := newConn("c1", "e1", StatusApproved)
	rejected := newConn("c1", "e1", StatusRejected)
	s.Insert(ctx, approved)
	s.Insert(ctx, rejected)

	removed, err := s.DeleteApprovedPair(ctx, "c1", "e1")
	if err != nil || !removed {
		t.Fatalf("removed=%v err=%v, want true,nil", removed, err)
	}

	// Idempotent: second delete removes nothing, no error.
	removed, err = s.DeleteApprovedPair(ctx, "c1", "e1")
	if err != nil || removed {
		t.Fatalf("second delete removed=%v err=%v, want false,nil", removed, err)
	}

	// Rejected history survives a sever.
	if _, err := s.Get(ctx, rejected.ID); err != nil {
		t.Errorf("rejected record deleted by sever: %v", err)
	}
}

func TestCachedUserStore(t *testing.T) {
	ctx := context.Background()
	inner := NewMemoryUserStore()
	cached, err := NewCachedUserStore(inner, 8)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := cached.Get(ctx, "u1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown user error = %v, want ErrNotFound", err)
	}

	u := UserData{ID: "u1", FullName: "Grace H."}
	if err := cached.Put(ctx, u); err != nil {
		t.Fatal(err)
	}

	got, err := cached.Get(ctx, "u1")
	if err != nil || got.FullName != "Grace H." {
		t.Fatalf("got %+v, %v", got, err)
	}

	// Put through the wrapper must refresh the cached entry.
	u.FullName = "Grace Hopper"
	cached.Put(ctx, u)
	got, _ = cached.Get(ctx, "u1")
	if got.FullName != "Grace Hopper" {
		t.Errorf("stale cache entry after Put: %q", got.FullName)
	}
}

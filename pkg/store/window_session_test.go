package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"orionos/pkg/domain"
)

func TestRedisWindowSessionStoreFocusAndStage(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisWindowSessionStore(mr.Addr(), "", time.Minute)
	defer s.Close()
	ctx := context.Background()

	if _, ok, err := s.Focus(ctx, "p1"); err != nil || ok {
		t.Fatalf("expected no focus, got ok=%v err=%v", ok, err)
	}
	if err := s.SetFocus(ctx, "p1", "w1"); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	focused, ok, err := s.Focus(ctx, "p1")
	if err != nil || !ok || focused != "w1" {
		t.Fatalf("unexpected focus: %q ok=%v err=%v", focused, ok, err)
	}

	g := domain.Geometry{Position: domain.Position{X: 10.5, Y: -3}, Size: domain.Size{Width: 640, Height: 480}}
	if err := s.StageGeometry(ctx, "p1", "w1", g); err != nil {
		t.Fatalf("stage: %v", err)
	}
	got, ok, err := s.StagedGeometry(ctx, "p1", "w1")
	if err != nil || !ok {
		t.Fatalf("staged geometry missing: ok=%v err=%v", ok, err)
	}
	if got != g {
		t.Fatalf("staged geometry mismatch: %+v != %+v", got, g)
	}
	if ttl := mr.TTL(stagedKey("p1", "w1")); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("unexpected ttl: %v", ttl)
	}

	if err := s.ClearStaged(ctx, "p1", "w1"); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, ok, _ := s.StagedGeometry(ctx, "p1", "w1"); ok {
		t.Fatalf("expected staged geometry cleared")
	}
}

func TestRedisWindowSessionStoreExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	s := NewRedisWindowSessionStore(mr.Addr(), "", time.Second)
	defer s.Close()
	ctx := context.Background()

	if err := s.SetFocus(ctx, "p1", "w1"); err != nil {
		t.Fatalf("set focus: %v", err)
	}
	mr.FastForward(2 * time.Second)
	if _, ok, err := s.Focus(ctx, "p1"); err != nil || ok {
		t.Fatalf("expected focus expired, ok=%v err=%v", ok, err)
	}
}

func TestMemoryWindowSessionStoreExpires(t *testing.T) {
	s := NewMemoryWindowSessionStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }
	ctx := context.Background()

	g := domain.Geometry{Size: domain.Size{Width: 1, Height: 1}}
	if err := s.StageGeometry(ctx, "p1", "w1", g); err != nil {
		t.Fatalf("stage: %v", err)
	}
	if _, ok, _ := s.StagedGeometry(ctx, "p1", "w1"); !ok {
		t.Fatalf("expected staged geometry")
	}
	if _, ok, _ := s.StagedGeometry(ctx, "p2", "w1"); ok {
		t.Fatalf("staged geometry leaked across profiles")
	}
	now = now.Add(2 * time.Minute)
	if _, ok, _ := s.StagedGeometry(ctx, "p1", "w1"); ok {
		t.Fatalf("expected staged geometry expired")
	}
}

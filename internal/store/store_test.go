package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/dataguardian/dataguardian/internal/report"
	"github.com/dataguardian/dataguardian/internal/risk"
)

func TestMemoryStore(t *testing.T) {
	t.Run("SaveAndGet", func(t *testing.T) {
		s := NewMemoryStore()
		r := report.New("a.csv", risk.Summary{Level: risk.LevelLow, CountsByType: map[string]int{}}, nil, nil)

		if err := s.Save(context.Background(), r); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		got, err := s.Get(context.Background(), r.ID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.Target != "a.csv" {
			t.Errorf("expected target a.csv, got %q", got.Target)
		}
	})

	t.Run("GetMissing", func(t *testing.T) {
		s := NewMemoryStore()
		if _, err := s.Get(context.Background(), "nope"); err != ErrNotFound {
			t.Errorf("expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListNewestFirst", func(t *testing.T) {
		s := NewMemoryStore()
		for i := 0; i < 3; i++ {
			r := report.New(fmt.Sprintf("t%d", i), risk.Summary{Level: risk.LevelLow, CountsByType: map[string]int{}}, nil, nil)
			r.CreatedAt = time.Date(2026, 1, 1+i, 0, 0, 0, 0, time.UTC)
			if err := s.Save(context.Background(), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}

		got, err := s.List(context.Background(), 10)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 reports, got %d", len(got))
		}
		if got[0].Target != "t2" || got[2].Target != "t0" {
			t.Errorf("expected newest first, got %s..%s", got[0].Target, got[2].Target)
		}
	})

	t.Run("ListLimit", func(t *testing.T) {
		s := NewMemoryStore()
		for i := 0; i < 5; i++ {
			r := report.New("t", risk.Summary{Level: risk.LevelLow, CountsByType: map[string]int{}}, nil, nil)
			if err := s.Save(context.Background(), r); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		}
		got, err := s.List(context.Background(), 2)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 2 {
			t.Errorf("expected 2 reports, got %d", len(got))
		}
	})
}

func TestMaskDatabaseURL(t *testing.T) {
	cases := map[string]string{
		"postgres://user:secret@db:5432/reports": "postgres://user:***@db:5432/reports",
		"postgres://db:5432/reports":             "postgres://db:5432/reports",
	}
	for in, want := range cases {
		if got := maskDatabaseURL(in); got != want {
			t.Errorf("maskDatabaseURL(%q) = %q, want %q", in, got, want)
		}
	}
}

package postgres

import (
	"testing"
	"time"
)

func TestDayBoundsFollowLocation(t *testing.T) {
	taipei := time.FixedZone("UTC+8", 8*3600)
	from, to, err := dayBounds("2024-05-01", taipei)
	if err != nil {
		t.Fatalf("day bounds: %v", err)
	}
	if want := time.Date(2024, 4, 30, 16, 0, 0, 0, time.UTC); !from.Equal(want) {
		t.Fatalf("expected start %v, got %v", want, from.UTC())
	}
	if to.Sub(from) != 24*time.Hour {
		t.Fatalf("expected a 24h day, got %v", to.Sub(from))
	}
}

func TestDayBoundsRejectsGarbage(t *testing.T) {
	if _, _, err := dayBounds("01/05/2024", time.UTC); err == nil {
		t.Fatalf("expected parse error")
	}
}

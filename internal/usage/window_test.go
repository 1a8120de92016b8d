package usage

import (
	"testing"
	"time"
)

func TestCycleExpired(t *testing.T) {
	now := time.Date(2025, 5, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		last *time.Time
		want bool
	}{
		{"nil", nil, true},
		{"fresh", ptr(now.Add(-time.Hour)), false},
		{"just under", ptr(now.Add(-CycleLength + time.Second)), false},
		{"exactly 30 days", ptr(now.Add(-CycleLength)), true},
		{"old", ptr(now.Add(-45 * 24 * time.Hour)), true},
	}
	for _, tc := range cases {
		if got := CycleExpired(tc.last, now); got != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestMinutesFromSeconds(t *testing.T) {
	cases := map[int]int{-5: 0, 0: 0, 1: 1, 59: 1, 60: 1, 61: 2, 900: 15}
	for in, want := range cases {
		if got := MinutesFromSeconds(in); got != want {
			t.Fatalf("MinutesFromSeconds(%d): expected %d, got %d", in, want, got)
		}
	}
}

func ptr(t time.Time) *time.Time { return &t }

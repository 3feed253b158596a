package types

import (
	"testing"
	"time"
)

func TestNewProfileID_Unique(t *testing.T) {
	seen := make(map[ProfileID]bool)
	for i := 0; i < 1000; i++ {
		id := NewProfileID()
		if seen[id] {
			t.Fatalf("duplicate id generated: %s", id)
		}
		seen[id] = true
	}
}

func TestParseProfileID(t *testing.T) {
	id := NewProfileID()
	parsed, err := ParseProfileID(string(id))
	if err != nil {
		t.Fatalf("ParseProfileID(%s) error = %v", id, err)
	}
	if parsed != id {
		t.Errorf("parsed = %v, want %v", parsed, id)
	}

	if _, err := ParseProfileID("not-a-uuid"); err == nil {
		t.Error("ParseProfileID(invalid) error = nil, want error")
	}
}

func TestProfileIDTime(t *testing.T) {
	before := time.Now().Add(-time.Second)
	id := NewProfileID()
	after := time.Now().Add(time.Second)

	ts := ProfileIDTime(id)
	if ts.Before(before) || ts.After(after) {
		t.Errorf("ProfileIDTime() = %v, want within [%v, %v]", ts, before, after)
	}

	if !ProfileIDTime("garbage").IsZero() {
		t.Error("ProfileIDTime(invalid) not zero")
	}
}

func TestProfileID_TimeOrdered(t *testing.T) {
	a := NewProfileID()
	time.Sleep(2 * time.Millisecond)
	b := NewProfileID()
	if !(a < b) {
		t.Errorf("ids not time-ordered: %s >= %s", a, b)
	}
}

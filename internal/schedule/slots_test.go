package schedule

import (
	"fmt"
	"strings"
	"testing"
	"time"
)

func TestSlotsAreFixed(t *testing.T) {
	got := Slots()
	if len(got) != 11 {
		t.Fatalf("expected 11 slots, got %d", len(got))
	}
	for i, s := range got {
		want := fmt.Sprintf("%d:00", 13+i)
		if s.String() != want {
			t.Fatalf("slot %d: expected %s, got %s", i, want, s)
		}
	}

	again := Slots()
	for i := range got {
		if got[i] != again[i] {
			t.Fatal("slot sequence must be idempotent")
		}
	}
}

func TestSlotByNumber(t *testing.T) {
	if _, ok := SlotByNumber(0); ok {
		t.Fatal("0 is not a valid slot number")
	}
	if _, ok := SlotByNumber(12); ok {
		t.Fatal("12 is beyond the slot list")
	}
	s, ok := SlotByNumber(1)
	if !ok || s.String() != "13:00" {
		t.Fatalf("expected 13:00 for number 1, got %s", s)
	}
	s, ok = SlotByNumber(11)
	if !ok || s.String() != "23:00" {
		t.Fatalf("expected 23:00 for number 11, got %s", s)
	}
}

func TestAtAnchorsOnToday(t *testing.T) {
	loc := time.FixedZone("test", -3*3600)
	now := time.Date(2024, 6, 15, 9, 30, 0, 0, loc)
	s, _ := SlotByNumber(5)

	got := At(now, s)
	want := time.Date(2024, 6, 15, 17, 0, 0, 0, loc)
	if !got.Equal(want) {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestRenderSlotsListsAllOptions(t *testing.T) {
	out := RenderSlots("Maria")
	if !strings.Contains(out, "Olá Maria!") {
		t.Fatal("expected personalised greeting")
	}
	if !strings.Contains(out, "1. 13:00") || !strings.Contains(out, "11. 23:00") {
		t.Fatalf("expected all slots listed, got: %s", out)
	}
}

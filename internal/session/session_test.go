package session

import (
	"testing"

	"github.com/m3rciful/packbot/core/telegram/state"
)

func TestAccessorsNilSafe(t *testing.T) {
	if Create(nil) != nil || Add(nil) != nil || Remove(nil) != nil || Delete(nil) != nil || Adaptive(nil) != nil {
		t.Fatal("accessors must return nil for a nil session")
	}
}

func TestAccessorsRejectForeignPayload(t *testing.T) {
	// A session carrying another flow's payload yields nil, not a panic.
	s := &state.Session{Data: &CreateData{Name: "cats"}}
	if Add(s) != nil || Remove(s) != nil || Adaptive(s) != nil {
		t.Fatal("foreign payload should not be visible through other accessors")
	}
	if d := Create(s); d == nil || d.Name != "cats" {
		t.Fatalf("Create(s) = %+v, want the stored payload", d)
	}
}

func TestAccessorsShareThePointer(t *testing.T) {
	data := &AdaptiveData{PackID: 5}
	s := &state.Session{Data: data}
	got := Adaptive(s)
	got.Lines = append(got.Lines, "line")
	if len(data.Lines) != 1 {
		t.Fatal("accessor must hand out the live payload, not a copy")
	}
}

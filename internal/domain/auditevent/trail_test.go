package auditevent

import (
	"testing"

	"github.com/google/uuid"
)

func TestTrail_AppendAssignsSequenceAndID(t *testing.T) {
	tr := NewTrail()
	a := tr.Append(Event{Kind: KindPatientRegistered, Actor: "admin-1"})
	b := tr.Append(Event{Kind: KindDoctorRegistered, Actor: "admin-1"})

	if a.Sequence != 1 || b.Sequence != 2 {
		t.Errorf("expected sequences 1,2 got %d,%d", a.Sequence, b.Sequence)
	}
	if a.ID == uuid.Nil || a.ID == b.ID {
		t.Errorf("expected distinct non-nil ids, got %s and %s", a.ID, b.ID)
	}

	fixed := uuid.New()
	c := tr.Append(Event{ID: fixed, Kind: KindAdminTransferred})
	if c.ID != fixed {
		t.Error("a preset id must be kept")
	}
	if tr.Len() != 3 {
		t.Errorf("expected 3 events, got %d", tr.Len())
	}
}

func TestTrail_PreloadedContinuesSequence(t *testing.T) {
	tr := NewTrail(Event{Sequence: 1}, Event{Sequence: 2})
	e := tr.Append(Event{Kind: KindMedicalRecordAdded})
	if e.Sequence != 3 {
		t.Errorf("expected sequence 3, got %d", e.Sequence)
	}
}

func TestTrail_Page(t *testing.T) {
	tr := NewTrail()
	for i := 0; i < 5; i++ {
		tr.Append(Event{Kind: KindMedicalRecordAdded})
	}

	tests := []struct {
		offset, limit int
		wantLen       int
		wantFirst     uint64
	}{
		{0, 2, 2, 1},
		{3, 10, 2, 4},
		{4, 1, 1, 5},
		{5, 2, 0, 0},
		{-1, 0, 5, 1},
	}
	for _, tt := range tests {
		got := tr.Page(tt.offset, tt.limit)
		if len(got) != tt.wantLen {
			t.Errorf("Page(%d,%d): got %d events, want %d", tt.offset, tt.limit, len(got), tt.wantLen)
			continue
		}
		if got == nil {
			t.Errorf("Page(%d,%d): expected non-nil slice", tt.offset, tt.limit)
		}
		if tt.wantLen > 0 && got[0].Sequence != tt.wantFirst {
			t.Errorf("Page(%d,%d): first sequence %d, want %d", tt.offset, tt.limit, got[0].Sequence, tt.wantFirst)
		}
	}

	all := tr.All()
	all[0].Actor = "tampered"
	if tr.All()[0].Actor == "tampered" {
		t.Error("All() aliases the trail")
	}
}

package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

func TestExportImport(t *testing.T) {
	ctx := context.Background()
	src := seeded(t)
	if err := src.AuthorizeDoctor(ctx, testPat, testPat, testDoc); err != nil {
		t.Fatal(err)
	}
	if _, err := src.AddMedicalRecord(ctx, testDoc, testPat, "ecg normal", "Cardiology"); err != nil {
		t.Fatal(err)
	}

	st := src.Export()

	// The export is detached from the live ledger.
	st.Patients[testPat].Name = "changed"
	st.Patients[testPat].AuthorizedDoctors.Remove(testDoc)
	if info, _ := src.GetPatientInfo(testAdmin, testPat); info.Name != "Alice" {
		t.Fatal("export aliases live patient")
	}
	if !src.IsAuthorizedDoctor(testPat, testDoc) {
		t.Fatal("export aliases live authorization set")
	}

	st = src.Export()
	obs := &captureObserver{}
	dst := newTestLedger(t, WithObserver(obs))
	if err := dst.Import(st); err != nil {
		t.Fatalf("Import: %v", err)
	}
	if obs.records != 1 {
		t.Errorf("observer not told about restored record count, got %d", obs.records)
	}
	if !dst.IsAuthorizedDoctor(testPat, testDoc) {
		t.Error("grant lost")
	}
	id, err := dst.AddMedicalRecord(ctx, testDoc, testPat, "follow-up", "Cardiology")
	if err != nil {
		t.Fatal(err)
	}
	if id != 2 {
		t.Errorf("expected counter to continue at 2, got %d", id)
	}
	events, total, _ := dst.AuditEvents(testAdmin, 0, 0)
	if total != 6 || events[5].Sequence != 6 {
		t.Errorf("expected trail to continue at sequence 6, got total %d", total)
	}
}

func TestImport_RejectsBrokenState(t *testing.T) {
	l := newTestLedger(t)

	if err := l.Import(State{}); !errors.Is(err, ErrInvalidPrincipal) {
		t.Errorf("expected ErrInvalidPrincipal for missing admin, got %v", err)
	}

	broken := State{
		Admin:         testAdmin,
		RecordCounter: 1,
		Patients: map[string]*Patient{
			testPat: {MedicalHistory: []MedicalRecord{{ID: 1}, {ID: 2}}},
		},
	}
	if err := l.Import(broken); err == nil {
		t.Error("expected error for record id above the counter")
	}

	broken.RecordCounter = 5
	broken.Patients[testPat].MedicalHistory = []MedicalRecord{{ID: 3}, {ID: 2}}
	if err := l.Import(broken); err == nil {
		t.Error("expected error for out-of-order record ids")
	}

	// Record ids are global: two patients may not share one.
	broken.RecordCounter = 1
	broken.Patients = map[string]*Patient{
		testPat:     {MedicalHistory: []MedicalRecord{{ID: 1}}},
		"patient-2": {MedicalHistory: []MedicalRecord{{ID: 1}}},
	}
	if err := l.Import(broken); err == nil {
		t.Error("expected error for a record id held by two patients")
	}

	gappy := State{
		Admin: testAdmin,
		AuditEvents: []auditevent.Event{
			{Sequence: 1, Kind: auditevent.KindPatientRegistered},
			{Sequence: 3, Kind: auditevent.KindDoctorRegistered},
		},
	}
	if err := l.Import(gappy); err == nil {
		t.Error("expected error for a gap in audit sequences")
	}
	gappy.AuditEvents = []auditevent.Event{{Sequence: 2}}
	if err := l.Import(gappy); err == nil {
		t.Error("expected error for a trail not starting at 1")
	}

	if l.GetAdmin() != testAdmin || l.IsPatientRegistered(testPat) {
		t.Error("rejected import changed the ledger")
	}
}

package ledger

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// AddMedicalRecord appends a record to patient's history and returns its
// global id.
func (l *Ledger) AddMedicalRecord(ctx context.Context, caller, patient, content, recordType string) (_ uint64, err error) {
	defer l.track("add_medical_record", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
		l.patientActive(patient),
	); err != nil {
		return 0, err
	}

	l.recordCounter++
	rec := MedicalRecord{
		ID:         l.recordCounter,
		Content:    content,
		AddedBy:    caller,
		Timestamp:  l.timestamp(),
		RecordType: recordType,
	}
	p := l.patients[patient]
	p.MedicalHistory = append(p.MedicalHistory, rec)

	l.emit(ctx, auditevent.Event{Kind: auditevent.KindMedicalRecordAdded, Actor: caller, Patient: patient, RecordID: rec.ID})
	if l.observer != nil {
		l.observer.RecordCount(l.recordCounter)
	}
	return rec.ID, nil
}

// AddAllergy appends to the patient's allergy list. Duplicates are kept and
// no audit event is emitted.
func (l *Ledger) AddAllergy(_ context.Context, caller, patient, allergy string) (err error) {
	defer l.track("add_allergy", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
		l.patientActive(patient),
	); err != nil {
		return err
	}

	p := l.patients[patient]
	p.Allergies = append(p.Allergies, allergy)
	return nil
}

// GetMedicalHistory returns the whole history in insertion order. Reads are
// allowed on deactivated patients.
func (l *Ledger) GetMedicalHistory(caller, patient string) (_ []MedicalRecord, err error) {
	defer l.track("get_medical_history", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return nil, err
	}
	history := l.patients[patient].MedicalHistory
	out := make([]MedicalRecord, len(history))
	copy(out, history)
	return out, nil
}

// GetRecordsByType returns the records whose type equals recordType exactly
// (byte comparison, case-sensitive), in history order.
func (l *Ledger) GetRecordsByType(caller, patient, recordType string) (_ []MedicalRecord, err error) {
	defer l.track("get_records_by_type", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return nil, err
	}

	history := l.patients[patient].MedicalHistory
	n := 0
	for i := range history {
		if history[i].RecordType == recordType {
			n++
		}
	}
	out := make([]MedicalRecord, 0, n)
	for i := range history {
		if history[i].RecordType == recordType {
			out = append(out, history[i])
		}
	}
	return out, nil
}

// GetPatientInfo returns demographics, allergies and the active flag. The
// medical history is fetched separately.
func (l *Ledger) GetPatientInfo(caller, patient string) (_ PatientInfo, err error) {
	defer l.track("get_patient_info", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return PatientInfo{}, err
	}
	return l.patients[patient].info(), nil
}

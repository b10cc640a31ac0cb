package ledger

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// AuthorizeDoctor grants doctor standing access to patient's data. Granting
// an already present doctor fails with ErrAlreadyAuthorized.
func (l *Ledger) AuthorizeDoctor(ctx context.Context, caller, patient, doctor string) (err error) {
	defer l.track("authorize_doctor", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
		l.patientActive(patient),
		l.doctorRegistered(doctor),
		l.doctorNotAuthorized(patient, doctor),
	); err != nil {
		return err
	}

	l.patients[patient].AuthorizedDoctors.Add(doctor)
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindDoctorAuthorized, Actor: caller, Patient: patient, Subject: doctor})
	return nil
}

func (l *Ledger) AuthorizeInstitution(ctx context.Context, caller, patient, institution string) (err error) {
	defer l.track("authorize_institution", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
		l.patientActive(patient),
		l.institutionRegistered(institution),
		l.institutionNotAuthorized(patient, institution),
	); err != nil {
		return err
	}

	l.patients[patient].AuthorizedInstitutions.Add(institution)
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindInstitutionAuthorized, Actor: caller, Patient: patient, Subject: institution})
	return nil
}

// RevokeDoctor removes doctor from patient's authorized set. It works on
// deactivated patients, and revoking an absent doctor is a no-op. No audit
// event is emitted.
func (l *Ledger) RevokeDoctor(_ context.Context, caller, patient, doctor string) (err error) {
	defer l.track("revoke_doctor", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
	); err != nil {
		return err
	}

	l.patients[patient].AuthorizedDoctors.Remove(doctor)
	return nil
}

func (l *Ledger) RevokeInstitution(_ context.Context, caller, patient, institution string) (err error) {
	defer l.track("revoke_institution", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.authorizedFor(caller, patient),
		l.patientExists(patient),
	); err != nil {
		return err
	}

	l.patients[patient].AuthorizedInstitutions.Remove(institution)
	return nil
}

// IsAuthorizedDoctor reports whether doctor is in patient's authorized set.
// An unregistered patient has no authorized doctors.
func (l *Ledger) IsAuthorizedDoctor(patient, doctor string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.patients[patient]
	return ok && p.AuthorizedDoctors.Contains(doctor)
}

func (l *Ledger) IsAuthorizedInstitution(patient, institution string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.patients[patient]
	return ok && p.AuthorizedInstitutions.Contains(institution)
}

// GetAuthorizedDoctors returns the authorized doctors in backing order,
// which changes when a doctor other than the last one is revoked.
func (l *Ledger) GetAuthorizedDoctors(caller, patient string) (_ []string, err error) {
	defer l.track("get_authorized_doctors", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return nil, err
	}
	return l.patients[patient].AuthorizedDoctors.Items(), nil
}

func (l *Ledger) GetAuthorizedInstitutions(caller, patient string) (_ []string, err error) {
	defer l.track("get_authorized_institutions", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return nil, err
	}
	return l.patients[patient].AuthorizedInstitutions.Items(), nil
}

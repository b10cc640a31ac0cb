package ledger

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

func (l *Ledger) DeactivatePatient(ctx context.Context, caller, patient string) (err error) {
	defer l.track("deactivate_patient", time.Now(), &err)
	return l.setActive(ctx, caller, patient, false)
}

func (l *Ledger) ReactivatePatient(ctx context.Context, caller, patient string) (err error) {
	defer l.track("reactivate_patient", time.Now(), &err)
	return l.setActive(ctx, caller, patient, true)
}

func (l *Ledger) setActive(ctx context.Context, caller, patient string, active bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(l.onlyAdmin(caller), l.patientExists(patient)); err != nil {
		return err
	}

	l.patients[patient].IsActive = active
	kind := auditevent.KindPatientDeactivated
	if active {
		kind = auditevent.KindPatientReactivated
	}
	l.emit(ctx, auditevent.Event{Kind: kind, Actor: caller, Patient: patient})
	return nil
}

// UpdatePatientEmergencyContact is allowed on deactivated patients.
func (l *Ledger) UpdatePatientEmergencyContact(ctx context.Context, caller, patient, contact string) (err error) {
	defer l.track("update_emergency_contact", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(l.authorizedFor(caller, patient), l.patientExists(patient)); err != nil {
		return err
	}

	l.patients[patient].EmergencyContact = contact
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindEmergencyContactUpdated, Actor: caller, Patient: patient})
	return nil
}

// TransferAdmin hands the admin role to newAdmin immediately. The old admin
// keeps no privileges.
func (l *Ledger) TransferAdmin(ctx context.Context, caller, newAdmin string) (err error) {
	defer l.track("transfer_admin", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(l.onlyAdmin(caller), validPrincipal(newAdmin)); err != nil {
		return err
	}

	l.admin = newAdmin
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindAdminTransferred, Actor: caller, Subject: newAdmin})
	return nil
}

func (l *Ledger) GetAdmin() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.admin
}

// GetTotalRecords returns the number of records ever added, which is also
// the id of the latest record.
func (l *Ledger) GetTotalRecords(caller string) (_ uint64, err error) {
	defer l.track("get_total_records", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.onlyAdmin(caller)); err != nil {
		return 0, err
	}
	return l.recordCounter, nil
}

// AuditEvents pages through the audit trail. Admin only.
func (l *Ledger) AuditEvents(caller string, limit, offset int) (_ []auditevent.Event, total int, err error) {
	defer l.track("audit_events", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.onlyAdmin(caller)); err != nil {
		return nil, 0, err
	}
	return l.trail.Page(offset, limit), l.trail.Len(), nil
}

// CanWatchAudit reports whether caller may follow audit events live. The
// admin may follow the whole trail (empty patient) and any patient; a
// registered patient may follow its own events.
func (l *Ledger) CanWatchAudit(caller, patient string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if caller == "" {
		return false
	}
	if caller == l.admin {
		return true
	}
	_, registered := l.patients[patient]
	return patient != "" && caller == patient && registered
}

package ledger

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// EmergencyAccess lets any verified doctor read the safety-critical fields
// of any registered patient, active or not, without a per-patient grant.
// History and authorization lists are never part of the result.
//
// The read appends an EmergencyAccess event only when the ledger was built
// WithEmergencyAccessAudit(true).
func (l *Ledger) EmergencyAccess(ctx context.Context, caller, patient string) (_ EmergencyInfo, err error) {
	defer l.track("emergency_access", time.Now(), &err)
	if l.auditEmergency {
		l.mu.Lock()
		defer l.mu.Unlock()
	} else {
		l.mu.RLock()
		defer l.mu.RUnlock()
	}

	if err := check(l.verifiedDoctor(caller), l.patientExists(patient)); err != nil {
		return EmergencyInfo{}, err
	}

	p := l.patients[patient]
	info := EmergencyInfo{
		Name:             p.Name,
		BloodType:        p.BloodType,
		Allergies:        copyStrings(p.Allergies),
		EmergencyContact: p.EmergencyContact,
	}
	if l.auditEmergency {
		l.emit(ctx, auditevent.Event{Kind: auditevent.KindEmergencyAccess, Actor: caller, Patient: patient})
	}
	return info, nil
}

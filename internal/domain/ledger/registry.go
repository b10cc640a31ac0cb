package ledger

import (
	"context"
	"time"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// RegisterPatient creates a patient profile. Admin only; a principal can be
// registered as a patient once.
func (l *Ledger) RegisterPatient(ctx context.Context, caller string, r PatientRegistration) (err error) {
	defer l.track("register_patient", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.onlyAdmin(caller),
		func() error {
			if _, ok := l.patients[r.ID]; ok {
				return ErrAlreadyRegistered
			}
			return nil
		},
		validBirthYear(r.BirthYear),
		validPrincipal(r.ID),
	); err != nil {
		return err
	}

	l.patients[r.ID] = &Patient{
		ID:               r.ID,
		Name:             r.Name,
		BirthYear:        r.BirthYear,
		EmergencyContact: r.EmergencyContact,
		BloodType:        r.BloodType,
		Allergies:        []string{},
		MedicalHistory:   []MedicalRecord{},
		IsActive:         true,
		RegistrationDate: l.timestamp(),
	}
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindPatientRegistered, Actor: caller, Patient: r.ID, Subject: r.ID})
	return nil
}

// RegisterDoctor creates a doctor profile. Doctors are verified on
// registration.
func (l *Ledger) RegisterDoctor(ctx context.Context, caller string, r DoctorRegistration) (err error) {
	defer l.track("register_doctor", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.onlyAdmin(caller),
		func() error {
			if _, ok := l.doctors[r.ID]; ok {
				return ErrAlreadyRegistered
			}
			return nil
		},
		validPrincipal(r.ID),
	); err != nil {
		return err
	}

	l.doctors[r.ID] = &Doctor{
		ID:               r.ID,
		Name:             r.Name,
		Specialization:   r.Specialization,
		LicenseNumber:    r.LicenseNumber,
		IsVerified:       true,
		RegistrationDate: l.timestamp(),
	}
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindDoctorRegistered, Actor: caller, Subject: r.ID})
	return nil
}

// RegisterInstitution creates an institution profile, verified on
// registration.
func (l *Ledger) RegisterInstitution(ctx context.Context, caller string, r InstitutionRegistration) (err error) {
	defer l.track("register_institution", time.Now(), &err)
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := check(
		l.onlyAdmin(caller),
		func() error {
			if _, ok := l.institutions[r.ID]; ok {
				return ErrAlreadyRegistered
			}
			return nil
		},
		validPrincipal(r.ID),
	); err != nil {
		return err
	}

	l.institutions[r.ID] = &Institution{
		ID:               r.ID,
		Name:             r.Name,
		InstitutionType:  r.InstitutionType,
		AdminPrincipal:   r.AdminPrincipal,
		IsVerified:       true,
		RegistrationDate: l.timestamp(),
	}
	l.emit(ctx, auditevent.Event{Kind: auditevent.KindInstitutionRegistered, Actor: caller, Subject: r.ID})
	return nil
}

func (l *Ledger) IsPatientRegistered(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.patients[id]
	return ok
}

func (l *Ledger) IsDoctorRegistered(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.doctors[id]
	return ok
}

func (l *Ledger) IsInstitutionRegistered(id string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.institutions[id]
	return ok
}

// GetDoctorInfo is open to any caller.
func (l *Ledger) GetDoctorInfo(id string) (_ Doctor, err error) {
	defer l.track("get_doctor_info", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.doctorRegistered(id)); err != nil {
		return Doctor{}, err
	}
	return *l.doctors[id], nil
}

// GetInstitutionInfo is open to any caller.
func (l *Ledger) GetInstitutionInfo(id string) (_ Institution, err error) {
	defer l.track("get_institution_info", time.Now(), &err)
	l.mu.RLock()
	defer l.mu.RUnlock()

	if err := check(l.institutionRegistered(id)); err != nil {
		return Institution{}, err
	}
	return *l.institutions[id], nil
}

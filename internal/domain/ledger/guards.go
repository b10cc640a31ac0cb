package ledger

// guard is one precondition of an operation. Guards are evaluated in the
// order given, against the state as it was when the operation started, and
// the first failure is the operation's error.
//
// Per-operation order is: caller capability, patient existence, patient
// active state, then argument and target checks.
type guard func() error

func check(guards ...guard) error {
	for _, g := range guards {
		if err := g(); err != nil {
			return err
		}
	}
	return nil
}

func (l *Ledger) onlyAdmin(caller string) guard {
	return func() error {
		if caller != l.admin {
			return ErrNotAdmin
		}
		return nil
	}
}

// authorizedFor is the access predicate: the patient themself, the admin,
// or a member of either authorization set. It does not require the patient
// to exist; an unregistered patient has empty sets.
func (l *Ledger) authorizedFor(caller, patient string) guard {
	return func() error {
		if l.isAuthorized(caller, patient) {
			return nil
		}
		return ErrAccessDenied
	}
}

func (l *Ledger) isAuthorized(caller, patient string) bool {
	if caller == patient || caller == l.admin {
		return true
	}
	p, ok := l.patients[patient]
	if !ok {
		return false
	}
	return p.AuthorizedDoctors.Contains(caller) || p.AuthorizedInstitutions.Contains(caller)
}

func (l *Ledger) patientExists(patient string) guard {
	return func() error {
		if _, ok := l.patients[patient]; !ok {
			return ErrPatientNotFound
		}
		return nil
	}
}

// patientActive assumes patientExists ran before it.
func (l *Ledger) patientActive(patient string) guard {
	return func() error {
		if !l.patients[patient].IsActive {
			return ErrInactiveAccount
		}
		return nil
	}
}

func (l *Ledger) verifiedDoctor(caller string) guard {
	return func() error {
		d, ok := l.doctors[caller]
		if !ok || !d.IsVerified {
			return ErrNotVerifiedDoctor
		}
		return nil
	}
}

func (l *Ledger) doctorRegistered(id string) guard {
	return func() error {
		if _, ok := l.doctors[id]; !ok {
			return ErrNotRegistered
		}
		return nil
	}
}

func (l *Ledger) institutionRegistered(id string) guard {
	return func() error {
		if _, ok := l.institutions[id]; !ok {
			return ErrNotRegistered
		}
		return nil
	}
}

func (l *Ledger) doctorNotAuthorized(patient, doctor string) guard {
	return func() error {
		if l.patients[patient].AuthorizedDoctors.Contains(doctor) {
			return ErrAlreadyAuthorized
		}
		return nil
	}
}

func (l *Ledger) institutionNotAuthorized(patient, institution string) guard {
	return func() error {
		if l.patients[patient].AuthorizedInstitutions.Contains(institution) {
			return ErrAlreadyAuthorized
		}
		return nil
	}
}

func validPrincipal(id string) guard {
	return func() error {
		if id == "" {
			return ErrInvalidPrincipal
		}
		return nil
	}
}

func validBirthYear(year int) guard {
	return func() error {
		if year <= MinBirthYearExclusive || year > MaxBirthYear {
			return ErrInvalidBirthYear
		}
		return nil
	}
}

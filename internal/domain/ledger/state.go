package ledger

import (
	"fmt"

	"github.com/medledger/medledger/internal/domain/auditevent"
)

// State is a detached copy of everything the ledger holds. It is what
// snapshot stores persist.
type State struct {
	Admin         string                  `json:"admin"`
	RecordCounter uint64                  `json:"record_counter"`
	Patients      map[string]*Patient     `json:"patients"`
	Doctors       map[string]*Doctor      `json:"doctors"`
	Institutions  map[string]*Institution `json:"institutions"`
	AuditEvents   []auditevent.Event      `json:"audit_events"`
}

// Export returns a deep copy of the current state.
func (l *Ledger) Export() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	s := State{
		Admin:         l.admin,
		RecordCounter: l.recordCounter,
		Patients:      make(map[string]*Patient, len(l.patients)),
		Doctors:       make(map[string]*Doctor, len(l.doctors)),
		Institutions:  make(map[string]*Institution, len(l.institutions)),
		AuditEvents:   l.trail.All(),
	}
	for id, p := range l.patients {
		s.Patients[id] = p.clone()
	}
	for id, d := range l.doctors {
		c := *d
		s.Doctors[id] = &c
	}
	for id, in := range l.institutions {
		c := *in
		s.Institutions[id] = &c
	}
	return s
}

// Import replaces the ledger's state with a copy of s. It refuses state
// with no admin, record ids that repeat or exceed the counter, or an audit
// trail whose sequence numbers are not 1, 2, 3...
func (l *Ledger) Import(s State) error {
	if s.Admin == "" {
		return fmt.Errorf("import state: %w", ErrInvalidPrincipal)
	}
	for i, e := range s.AuditEvents {
		if e.Sequence != uint64(i)+1 {
			return fmt.Errorf("import state: audit event %d has sequence %d", i+1, e.Sequence)
		}
	}
	seen := make(map[uint64]string)
	patients := make(map[string]*Patient, len(s.Patients))
	for id, p := range s.Patients {
		if p == nil {
			continue
		}
		var last uint64
		for _, rec := range p.MedicalHistory {
			if rec.ID <= last || rec.ID > s.RecordCounter {
				return fmt.Errorf("import state: patient %q record %d out of sequence (counter %d)", id, rec.ID, s.RecordCounter)
			}
			if owner, dup := seen[rec.ID]; dup {
				return fmt.Errorf("import state: record %d held by both %q and %q", rec.ID, owner, id)
			}
			seen[rec.ID] = id
			last = rec.ID
		}
		c := p.clone()
		c.ID = id
		if c.Allergies == nil {
			c.Allergies = []string{}
		}
		if c.MedicalHistory == nil {
			c.MedicalHistory = []MedicalRecord{}
		}
		patients[id] = c
	}
	doctors := make(map[string]*Doctor, len(s.Doctors))
	for id, d := range s.Doctors {
		if d == nil {
			continue
		}
		c := *d
		c.ID = id
		doctors[id] = &c
	}
	institutions := make(map[string]*Institution, len(s.Institutions))
	for id, in := range s.Institutions {
		if in == nil {
			continue
		}
		c := *in
		c.ID = id
		institutions[id] = &c
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.admin = s.Admin
	l.recordCounter = s.RecordCounter
	l.patients = patients
	l.doctors = doctors
	l.institutions = institutions
	l.trail = auditevent.NewTrail(s.AuditEvents...)
	if l.observer != nil {
		l.observer.RecordCount(l.recordCounter)
	}
	return nil
}

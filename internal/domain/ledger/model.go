package ledger

import (
	"time"
)

const (
	// Birth years are accepted in (MinBirthYearExclusive, MaxBirthYear].
	MinBirthYearExclusive = 1900
	MaxBirthYear          = 2024
)

// MedicalRecord is one immutable entry of a patient's history. IDs are
// global across all patients and strictly increasing.
type MedicalRecord struct {
	ID         uint64    `json:"id"`
	Content    string    `json:"content"`
	AddedBy    string    `json:"added_by"`
	Timestamp  time.Time `json:"timestamp"`
	RecordType string    `json:"record_type"`
}

// Patient is the full stored profile. It never leaves the package by
// pointer; readers get PatientInfo, EmergencyInfo or copied slices.
type Patient struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	BirthYear              int             `json:"birth_year"`
	EmergencyContact       string          `json:"emergency_contact"`
	BloodType              string          `json:"blood_type"`
	Allergies              []string        `json:"allergies"`
	MedicalHistory         []MedicalRecord `json:"medical_history"`
	AuthorizedDoctors      PrincipalSet    `json:"authorized_doctors"`
	AuthorizedInstitutions PrincipalSet    `json:"authorized_institutions"`
	IsActive               bool            `json:"is_active"`
	RegistrationDate       time.Time       `json:"registration_date"`
}

type Doctor struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Specialization   string    `json:"specialization"`
	LicenseNumber    string    `json:"license_number"`
	IsVerified       bool      `json:"is_verified"`
	RegistrationDate time.Time `json:"registration_date"`
}

type Institution struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	InstitutionType  string    `json:"institution_type"`
	AdminPrincipal   string    `json:"admin_principal"`
	IsVerified       bool      `json:"is_verified"`
	RegistrationDate time.Time `json:"registration_date"`
}

// PatientInfo is the demographic view returned to authorized callers. It
// carries no medical history and no authorization lists.
type PatientInfo struct {
	Name             string    `json:"name"`
	BirthYear        int       `json:"birth_year"`
	EmergencyContact string    `json:"emergency_contact"`
	BloodType        string    `json:"blood_type"`
	Allergies        []string  `json:"allergies"`
	IsActive         bool      `json:"is_active"`
	RegistrationDate time.Time `json:"registration_date"`
}

// EmergencyInfo is the safety-critical subset exposed to any verified doctor.
type EmergencyInfo struct {
	Name             string   `json:"name"`
	BloodType        string   `json:"blood_type"`
	Allergies        []string `json:"allergies"`
	EmergencyContact string   `json:"emergency_contact"`
}

type PatientRegistration struct {
	ID               string `json:"id"`
	Name             string `json:"name"`
	BirthYear        int    `json:"birth_year"`
	EmergencyContact string `json:"emergency_contact"`
	BloodType        string `json:"blood_type"`
}

type DoctorRegistration struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Specialization string `json:"specialization"`
	LicenseNumber  string `json:"license_number"`
}

type InstitutionRegistration struct {
	ID              string `json:"id"`
	Name            string `json:"name"`
	InstitutionType string `json:"institution_type"`
	AdminPrincipal  string `json:"admin_principal"`
}

func (p *Patient) info() PatientInfo {
	return PatientInfo{
		Name:             p.Name,
		BirthYear:        p.BirthYear,
		EmergencyContact: p.EmergencyContact,
		BloodType:        p.BloodType,
		Allergies:        copyStrings(p.Allergies),
		IsActive:         p.IsActive,
		RegistrationDate: p.RegistrationDate,
	}
}

func (p *Patient) clone() *Patient {
	c := *p
	c.Allergies = copyStrings(p.Allergies)
	c.MedicalHistory = append([]MedicalRecord(nil), p.MedicalHistory...)
	c.AuthorizedDoctors = NewPrincipalSet(p.AuthorizedDoctors.items...)
	c.AuthorizedInstitutions = NewPrincipalSet(p.AuthorizedInstitutions.items...)
	return &c
}

func copyStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}

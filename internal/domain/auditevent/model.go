package auditevent

import (
	"time"

	"github.com/google/uuid"
)

// Kind names a state-changing ledger action.
type Kind string

const (
	KindPatientRegistered       Kind = "PatientRegistered"
	KindDoctorRegistered        Kind = "DoctorRegistered"
	KindInstitutionRegistered   Kind = "InstitutionRegistered"
	KindDoctorAuthorized        Kind = "DoctorAuthorized"
	KindInstitutionAuthorized   Kind = "InstitutionAuthorized"
	KindMedicalRecordAdded      Kind = "MedicalRecordAdded"
	KindPatientDeactivated      Kind = "PatientDeactivated"
	KindPatientReactivated      Kind = "PatientReactivated"
	KindEmergencyContactUpdated Kind = "EmergencyContactUpdated"
	KindAdminTransferred        Kind = "AdminTransferred"
	// KindEmergencyAccess is only emitted when the ledger is configured to
	// audit emergency reads.
	KindEmergencyAccess Kind = "EmergencyAccess"
)

// Event is one entry of the append-only audit trail.
//
// Sequence is assigned by the Trail and is gapless from 1. Actor is the
// caller; Patient and Subject are the patient and the other principal
// involved (doctor, institution, registered id, new admin), when any.
type Event struct {
	ID        uuid.UUID `db:"id" json:"id"`
	Sequence  uint64    `db:"sequence" json:"sequence"`
	Kind      Kind      `db:"kind" json:"kind"`
	Actor     string    `db:"actor" json:"actor"`
	Patient   string    `db:"patient" json:"patient,omitempty"`
	Subject   string    `db:"subject" json:"subject,omitempty"`
	RecordID  uint64    `db:"record_id" json:"record_id,omitempty"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
}

package report

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

// Type classifies a diagnostic report.
type Type string

const (
	TypeBloodTest  Type = "blood_test"
	TypeUrineTest  Type = "urine_test"
	TypeXRay       Type = "x_ray"
	TypeCTScan     Type = "ct_scan"
	TypeMRI        Type = "mri"
	TypeUltrasound Type = "ultrasound"
	TypeOther      Type = "other"
)

var validTypes = map[Type]bool{
	TypeBloodTest: true, TypeUrineTest: true, TypeXRay: true,
	TypeCTScan: true, TypeMRI: true, TypeUltrasound: true, TypeOther: true,
}

func ParseType(s string) (Type, error) {
	t := Type(strings.ToLower(strings.TrimSpace(s)))
	if !validTypes[t] {
		return "", apperr.Validation("invalid report type: %q", s)
	}
	return t, nil
}

// Status is the report lifecycle state. Upload produces delivered,
// doctor-added placeholders start pending, feedback moves to reviewed.
type Status string

const (
	StatusUploaded  Status = "uploaded"
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusReviewed  Status = "reviewed"
)

// AccessLevel is the permission granted to a shared doctor.
type AccessLevel string

const (
	AccessView    AccessLevel = "view"
	AccessComment AccessLevel = "comment"
)

func ParseAccessLevel(s string) (AccessLevel, error) {
	if s == "" {
		return AccessView, nil
	}
	switch AccessLevel(strings.ToLower(strings.TrimSpace(s))) {
	case AccessView:
		return AccessView, nil
	case AccessComment:
		return AccessComment, nil
	default:
		return "", apperr.Validation("invalid access level: %q", s)
	}
}

// ShareGrant maps to the report_share table, unique per (report, doctor).
type ShareGrant struct {
	DoctorID    uuid.UUID   `db:"doctor_id" json:"doctorId"`
	AccessLevel AccessLevel `db:"access_level" json:"accessLevel"`
	SharedAt    time.Time   `db:"shared_at" json:"sharedAt"`
}

// Report maps to the report table with its share grants attached.
type Report struct {
	ID             uuid.UUID    `db:"id" json:"id"`
	PatientID      uuid.UUID    `db:"patient_id" json:"patientId"`
	LabID          uuid.UUID    `db:"lab_id" json:"labId"`
	Type           Type         `db:"type" json:"type"`
	Title          string       `db:"title" json:"title"`
	Description    *string      `db:"description" json:"description,omitempty"`
	FileKey        string       `db:"file_key" json:"-"`
	FileType       string       `db:"file_type" json:"fileType"`
	Status         Status       `db:"status" json:"status"`
	ReviewedBy     *uuid.UUID   `db:"reviewed_by" json:"reviewedBy,omitempty"`
	DoctorFeedback *string      `db:"doctor_feedback" json:"doctorFeedback,omitempty"`
	SharedWith     []ShareGrant `json:"sharedWith"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"updatedAt"`
}

// Grant returns the share grant for the doctor, or nil.
func (r *Report) Grant(doctorID uuid.UUID) *ShareGrant {
	for i := range r.SharedWith {
		if r.SharedWith[i].DoctorID == doctorID {
			return &r.SharedWith[i]
		}
	}
	return nil
}

// Access is the outcome of the per-request access decision.
type Access int

const (
	AccessNone Access = iota
	AccessPatientOwner
	AccessLabOwner
	AccessSharedDoctor
)

// Decide evaluates what the given account may do with this report. It is
// pure and evaluated on every request; nothing is cached.
func (r *Report) Decide(accountID uuid.UUID) Access {
	switch {
	case accountID == r.PatientID:
		return AccessPatientOwner
	case accountID == r.LabID:
		return AccessLabOwner
	case r.Grant(accountID) != nil:
		return AccessSharedDoctor
	default:
		return AccessNone
	}
}

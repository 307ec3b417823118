package account

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/healthlink/healthlink/internal/platform/apperr"
)

// Role is the closed set of account roles. ParseRole is the only way to
// obtain one from external input.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleLab     Role = "lab"
)

func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RolePatient:
		return RolePatient, nil
	case RoleDoctor:
		return RoleDoctor, nil
	case RoleLab:
		return RoleLab, nil
	default:
		return "", apperr.Validation("invalid role: %q", s)
	}
}

func (r Role) String() string { return string(r) }

// Account maps to the account table. Role-specific columns are nullable
// and populated only for the matching role.
type Account struct {
	ID           uuid.UUID `db:"id" json:"id"`
	Role         Role      `db:"role" json:"role"`
	Name         string    `db:"name" json:"name"`
	Phone        string    `db:"phone" json:"phone"`
	PasswordHash string    `db:"password_hash" json:"-"`

	// patient
	Age           *int    `db:"age" json:"age,omitempty"`
	AbhaID        *string `db:"abha_id" json:"abhaId,omitempty"`
	FamilyContact *string `db:"family_contact" json:"familyContact,omitempty"`

	// doctor
	LicenseID      *string `db:"license_id" json:"licenseId,omitempty"`
	Hospital       *string `db:"hospital" json:"hospital,omitempty"`
	Specialization *string `db:"specialization" json:"specialization,omitempty"`

	// lab
	LabID   *string `db:"lab_id" json:"labId,omitempty"`
	LabName *string `db:"lab_name" json:"labName,omitempty"`
	Address *string `db:"address" json:"address,omitempty"`

	RefreshToken *string   `db:"refresh_token" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// Identifier returns the role identifier used for login and uniqueness:
// abhaId for patients, licenseId for doctors, labId for labs.
func (a *Account) Identifier() string {
	switch a.Role {
	case RolePatient:
		return strVal(a.AbhaID)
	case RoleDoctor:
		return strVal(a.LicenseID)
	case RoleLab:
		return strVal(a.LabID)
	}
	return ""
}

// Registration is the closed set of per-role registration shapes.
type Registration interface {
	role() Role
	validate() error
	common() (name, phone, password string)
	apply(a *Account)
}

type PatientRegistration struct {
	Name          string `json:"name"`
	Phone         string `json:"phone"`
	Password      string `json:"password"`
	Age           int    `json:"age"`
	AbhaID        string `json:"abhaId"`
	FamilyContact string `json:"familyContact"`
}

func (r PatientRegistration) role() Role { return RolePatient }

func (r PatientRegistration) common() (string, string, string) { return r.Name, r.Phone, r.Password }

func (r PatientRegistration) validate() error {
	if err := validateCommon(r.Name, r.Phone, r.Password); err != nil {
		return err
	}
	if r.Age <= 0 {
		return apperr.Validation("age is required")
	}
	if r.AbhaID == "" {
		return apperr.Validation("abhaId is required")
	}
	if r.FamilyContact == "" {
		return apperr.Validation("familyContact is required")
	}
	return nil
}

func (r PatientRegistration) apply(a *Account) {
	a.Age = &r.Age
	a.AbhaID = strPtr(r.AbhaID)
	a.FamilyContact = strPtr(r.FamilyContact)
}

type DoctorRegistration struct {
	Name           string `json:"name"`
	Phone          string `json:"phone"`
	Password       string `json:"password"`
	LicenseID      string `json:"licenseId"`
	Hospital       string `json:"hospital"`
	Specialization string `json:"specialization"`
}

func (r DoctorRegistration) role() Role { return RoleDoctor }

func (r DoctorRegistration) common() (string, string, string) { return r.Name, r.Phone, r.Password }

func (r DoctorRegistration) validate() error {
	if err := validateCommon(r.Name, r.Phone, r.Password); err != nil {
		return err
	}
	if r.LicenseID == "" {
		return apperr.Validation("licenseId is required")
	}
	if r.Hospital == "" {
		return apperr.Validation("hospital is required")
	}
	if r.Specialization == "" {
		return apperr.Validation("specialization is required")
	}
	return nil
}

func (r DoctorRegistration) apply(a *Account) {
	a.LicenseID = strPtr(r.LicenseID)
	a.Hospital = strPtr(r.Hospital)
	a.Specialization = strPtr(r.Specialization)
}

type LabRegistration struct {
	Name     string `json:"name"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	LabID    string `json:"labId"`
	LabName  string `json:"labName"`
	Address  string `json:"address"`
}

func (r LabRegistration) role() Role { return RoleLab }

func (r LabRegistration) common() (string, string, string) { return r.Name, r.Phone, r.Password }

func (r LabRegistration) validate() error {
	if err := validateCommon(r.Name, r.Phone, r.Password); err != nil {
		return err
	}
	if r.LabID == "" {
		return apperr.Validation("labId is required")
	}
	if r.LabName == "" {
		return apperr.Validation("labName is required")
	}
	return nil
}

func (r LabRegistration) apply(a *Account) {
	a.LabID = strPtr(r.LabID)
	a.LabName = strPtr(r.LabName)
	if r.Address != "" {
		a.Address = strPtr(r.Address)
	}
}

func validateCommon(name, phone, password string) error {
	if name == "" {
		return apperr.Validation("name is required")
	}
	if phone == "" {
		return apperr.Validation("phone is required")
	}
	if len(password) < 6 {
		return apperr.Validation("password must be at least 6 characters")
	}
	return nil
}

func strPtr(s string) *string { return &s }

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

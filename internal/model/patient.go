package model

import "time"

type Patient struct {
	Base
	OwnerID     string `db:"user_id" json:"user_id"`
	Name        string `db:"name" json:"name"`
	Phone       string `db:"phone" json:"phone"`
	IDNumber    string `db:"id_number" json:"id_number"`
	Email       string `db:"email" json:"email"`
	DateOfBirth string `db:"date_of_birth" json:"date_of_birth"`
	Gender      string `db:"gender" json:"gender"`
	Address     string `db:"address" json:"address"`
	Notes       string `db:"notes" json:"notes"`
}

func (p *Patient) GetOwnerID() string { return p.OwnerID }

// PatientDetails is a patient together with its related records.
type PatientDetails struct {
	*Patient
	Demographic *DemographicRecord `json:"demographic"`
	Medical     *MedicalRecord     `json:"medical"`
	Visits      []*Visit           `json:"visits"`
	Payments    []*Payment         `json:"payments"`
}

type CreatePatientRequest struct {
	Name        string              `json:"name" binding:"required"`
	Phone       string              `json:"phone"`
	IDNumber    string              `json:"id_number"`
	Email       string              `json:"email" binding:"omitempty,email"`
	DateOfBirth string              `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender      string              `json:"gender" binding:"omitempty,gender"`
	Address     string              `json:"address"`
	Notes       string              `json:"notes"`
	Demographic *DemographicRequest `json:"demographic"`
	Medical     *MedicalRequest     `json:"medical"`
}

// Patient builds the patient row; ownership and timestamps are stamped by the service.
func (r *CreatePatientRequest) Patient() *Patient {
	return &Patient{
		Name:        r.Name,
		Phone:       r.Phone,
		IDNumber:    r.IDNumber,
		Email:       r.Email,
		DateOfBirth: r.DateOfBirth,
		Gender:      r.Gender,
		Address:     r.Address,
		Notes:       r.Notes,
	}
}

type UpdatePatientRequest struct {
	Name        *string `json:"name" binding:"omitempty,min=1"`
	Phone       *string `json:"phone"`
	IDNumber    *string `json:"id_number"`
	Email       *string `json:"email" binding:"omitempty,email"`
	DateOfBirth *string `json:"date_of_birth" binding:"omitempty,datetime=2006-01-02"`
	Gender      *string `json:"gender" binding:"omitempty,gender"`
	Address     *string `json:"address"`
	Notes       *string `json:"notes"`
}

// ApplyTo merges the non-nil fields of the patch into p.
func (r *UpdatePatientRequest) ApplyTo(p *Patient) {
	setIf(&p.Name, r.Name)
	setIf(&p.Phone, r.Phone)
	setIf(&p.IDNumber, r.IDNumber)
	setIf(&p.Email, r.Email)
	setIf(&p.DateOfBirth, r.DateOfBirth)
	setIf(&p.Gender, r.Gender)
	setIf(&p.Address, r.Address)
	setIf(&p.Notes, r.Notes)
}

// Searchable patient fields.
const (
	SearchFieldID       = "id"
	SearchFieldName     = "name"
	SearchFieldPhone    = "phone"
	SearchFieldIDNumber = "id_number"
)

type PatientFilters struct {
	OwnerID string
	Query   string
	Field   string
}

// Matches reports whether p satisfies the search part of the filters.
// Field must already be normalized.
func (f *PatientFilters) Matches(p *Patient) bool {
	if f.Query == "" {
		return true
	}
	var value string
	switch f.Field {
	case SearchFieldID:
		value = p.ID
	case SearchFieldPhone:
		value = p.Phone
	case SearchFieldIDNumber:
		value = p.IDNumber
	default:
		value = p.Name
	}
	return containsFold(value, f.Query)
}

func setIf(dst *string, src *string) {
	if src != nil {
		*dst = *src
	}
}

func stamp(b *Base, now time.Time) {
	b.CreatedAt = now
	b.UpdatedAt = now
}

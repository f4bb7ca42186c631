package model

import "time"

type DemographicRecord struct {
	Base
	PatientID             string `db:"patient_id" json:"patient_id"`
	OwnerID               string `db:"user_id" json:"user_id"`
	Address               string `db:"address" json:"address"`
	City                  string `db:"city" json:"city"`
	Country               string `db:"country" json:"country"`
	MaritalStatus         string `db:"marital_status" json:"marital_status"`
	Occupation            string `db:"occupation" json:"occupation"`
	EmergencyContactName  string `db:"emergency_contact_name" json:"emergency_contact_name"`
	EmergencyContactPhone string `db:"emergency_contact_phone" json:"emergency_contact_phone"`
}

func (r *DemographicRecord) GetOwnerID() string { return r.OwnerID }

type MedicalRecord struct {
	Base
	PatientID         string `db:"patient_id" json:"patient_id"`
	OwnerID           string `db:"user_id" json:"user_id"`
	BloodType         string `db:"blood_type" json:"blood_type"`
	Allergies         string `db:"allergies" json:"allergies"`
	ChronicConditions string `db:"chronic_conditions" json:"chronic_conditions"`
	Medications       string `db:"medications" json:"medications"`
	Notes             string `db:"notes" json:"notes"`
}

func (r *MedicalRecord) GetOwnerID() string { return r.OwnerID }

type DemographicRequest struct {
	Address               *string `json:"address"`
	City                  *string `json:"city"`
	Country               *string `json:"country"`
	MaritalStatus         *string `json:"marital_status"`
	Occupation            *string `json:"occupation"`
	EmergencyContactName  *string `json:"emergency_contact_name"`
	EmergencyContactPhone *string `json:"emergency_contact_phone"`
}

// ApplyTo merges the non-nil fields into rec.
func (r *DemographicRequest) ApplyTo(rec *DemographicRecord) {
	setIf(&rec.Address, r.Address)
	setIf(&rec.City, r.City)
	setIf(&rec.Country, r.Country)
	setIf(&rec.MaritalStatus, r.MaritalStatus)
	setIf(&rec.Occupation, r.Occupation)
	setIf(&rec.EmergencyContactName, r.EmergencyContactName)
	setIf(&rec.EmergencyContactPhone, r.EmergencyContactPhone)
}

type MedicalRequest struct {
	BloodType         *string `json:"blood_type" binding:"omitempty,blood_type"`
	Allergies         *string `json:"allergies"`
	ChronicConditions *string `json:"chronic_conditions"`
	Medications       *string `json:"medications"`
	Notes             *string `json:"notes"`
}

// ApplyTo merges the non-nil fields into rec.
func (r *MedicalRequest) ApplyTo(rec *MedicalRecord) {
	setIf(&rec.BloodType, r.BloodType)
	setIf(&rec.Allergies, r.Allergies)
	setIf(&rec.ChronicConditions, r.ChronicConditions)
	setIf(&rec.Medications, r.Medications)
	setIf(&rec.Notes, r.Notes)
}

// NewDemographicRecord builds a fresh record for patient p from an optional payload.
func NewDemographicRecord(id string, p *Patient, req *DemographicRequest, now time.Time) *DemographicRecord {
	rec := &DemographicRecord{Base: Base{ID: id}, PatientID: p.ID, OwnerID: p.OwnerID}
	stamp(&rec.Base, now)
	if req != nil {
		req.ApplyTo(rec)
	}
	return rec
}

// NewMedicalRecord builds a fresh record for patient p from an optional payload.
func NewMedicalRecord(id string, p *Patient, req *MedicalRequest, now time.Time) *MedicalRecord {
	rec := &MedicalRecord{Base: Base{ID: id}, PatientID: p.ID, OwnerID: p.OwnerID}
	stamp(&rec.Base, now)
	if req != nil {
		req.ApplyTo(rec)
	}
	return rec
}

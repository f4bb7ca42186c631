package model

type Visit struct {
	Base
	PatientID string `db:"patient_id" json:"patient_id"`
	OwnerID   string `db:"user_id" json:"user_id"`
	Date      string `db:"date" json:"date"`
	Provider  string `db:"provider" json:"provider"`
	Purpose   string `db:"purpose" json:"purpose"`
	Status    string `db:"status" json:"status"`
}

func (v *Visit) GetOwnerID() string { return v.OwnerID }

type VisitFilters struct {
	OwnerID   string
	PatientID string
}

package model

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"
	PaymentStatusCompleted PaymentStatus = "completed"
	PaymentStatusRefunded  PaymentStatus = "refunded"
	PaymentStatusCancelled PaymentStatus = "cancelled"
)

type Payment struct {
	Base
	PatientID string  `db:"patient_id" json:"patient_id"`
	OwnerID   string  `db:"user_id" json:"user_id"`
	Method    string  `db:"method" json:"method"`
	Amount    float64 `db:"amount" json:"amount"`
	Date      string  `db:"date" json:"date"`
	Status    string  `db:"status" json:"status"`
	Notes     string  `db:"notes" json:"notes"`
}

func (p *Payment) GetOwnerID() string { return p.OwnerID }

type CreatePaymentRequest struct {
	PatientID string  `json:"patient_id" binding:"required"`
	Method    string  `json:"method" binding:"required,payment_method"`
	Amount    float64 `json:"amount" binding:"required,gt=0"`
	Date      string  `json:"date" binding:"required,datetime=2006-01-02"`
	Status    string  `json:"status" binding:"omitempty,oneof=pending completed refunded cancelled"`
	Notes     string  `json:"notes"`
}

type UpdatePaymentRequest struct {
	Method *string  `json:"method" binding:"omitempty,payment_method"`
	Amount *float64 `json:"amount" binding:"omitempty,gt=0"`
	Date   *string  `json:"date" binding:"omitempty,datetime=2006-01-02"`
	Status *string  `json:"status" binding:"omitempty,oneof=pending completed refunded cancelled"`
	Notes  *string  `json:"notes"`
}

// ApplyTo merges the non-nil fields into p.
func (r *UpdatePaymentRequest) ApplyTo(p *Payment) {
	setIf(&p.Method, r.Method)
	if r.Amount != nil {
		p.Amount = *r.Amount
	}
	setIf(&p.Date, r.Date)
	setIf(&p.Status, r.Status)
	setIf(&p.Notes, r.Notes)
}

type PaymentFilters struct {
	OwnerID   string
	PatientID string
}

package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
)

// ErrNotFound is returned by every backend when the addressed record does not exist.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		// CreateWithRecords writes the patient and its optional records as one
		// all-or-nothing operation.
		CreateWithRecords(ctx context.Context, patient *model.Patient, demographic *model.DemographicRecord, medical *model.MedicalRecord) error
		Get(ctx context.Context, id string) (*model.Patient, error)
		List(ctx context.Context, filters *model.PatientFilters) ([]*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
		// Delete removes the patient together with its records, payments and visits.
		Delete(ctx context.Context, id string) error
	}

	RecordRepository interface {
		GetDemographic(ctx context.Context, patientID string) (*model.DemographicRecord, error)
		UpsertDemographic(ctx context.Context, record *model.DemographicRecord) error
		GetMedical(ctx context.Context, patientID string) (*model.MedicalRecord, error)
		UpsertMedical(ctx context.Context, record *model.MedicalRecord) error
	}

	PaymentRepository interface {
		Create(ctx context.Context, payment *model.Payment) error
		Get(ctx context.Context, id string) (*model.Payment, error)
		List(ctx context.Context, filters *model.PaymentFilters) ([]*model.Payment, error)
		Update(ctx context.Context, payment *model.Payment) error
		Delete(ctx context.Context, id string) error
	}

	VisitRepository interface {
		Get(ctx context.Context, id string) (*model.Visit, error)
		List(ctx context.Context, filters *model.VisitFilters) ([]*model.Visit, error)
	}

	OutboxRepository interface {
		Create(ctx context.Context, event *model.OutboxEvent) error
		GetPendingEventsWithLock(ctx context.Context, limit int, reclaimAfter time.Duration) ([]*model.OutboxEvent, error)
		UpdateStatus(ctx context.Context, id string, status model.OutboxStatus, errMsg *string) error
	}

	// HealthChecker reports whether the backing store is reachable.
	HealthChecker interface {
		Ping(ctx context.Context) error
	}
)

// Store bundles the repositories of one backend.
type Store struct {
	Patients PatientRepository
	Records  RecordRepository
	Payments PaymentRepository
	Visits   VisitRepository
	Health   HealthChecker
}

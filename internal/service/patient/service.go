package patient

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type PatientService interface {
	CreatePatient(ctx context.Context, p *model.Principal, req *model.CreatePatientRequest) (*model.PatientDetails, error)
	GetPatient(ctx context.Context, p *model.Principal, id string) (*model.PatientDetails, error)
	ListPatients(ctx context.Context, p *model.Principal) ([]*model.Patient, error)
	SearchPatients(ctx context.Context, p *model.Principal, query, field string) ([]*model.Patient, error)
	UpdatePatient(ctx context.Context, p *model.Principal, id string, req *model.UpdatePatientRequest) (*model.Patient, error)
	DeletePatient(ctx context.Context, p *model.Principal, id string) error

	GetDemographic(ctx context.Context, p *model.Principal, patientID string) (*model.DemographicRecord, error)
	UpdateDemographic(ctx context.Context, p *model.Principal, patientID string, req *model.DemographicRequest) (*model.DemographicRecord, error)
	GetMedical(ctx context.Context, p *model.Principal, patientID string) (*model.MedicalRecord, error)
	UpdateMedical(ctx context.Context, p *model.Principal, patientID string, req *model.MedicalRequest) (*model.MedicalRecord, error)
}

type Service struct {
	repo      repository.PatientRepository
	records   repository.RecordRepository
	payments  repository.PaymentRepository
	visits    repository.VisitRepository
	publisher messaging.Publisher

	now   func() time.Time
	newID func() string
}

// NewService builds the patient service. publisher may be nil.
func NewService(store *repository.Store, publisher messaging.Publisher) *Service {
	return &Service{
		repo:      store.Patients,
		records:   store.Records,
		payments:  store.Payments,
		visits:    store.Visits,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

var _ PatientService = (*Service)(nil)

// NormalizeSearchField maps the query-string field onto a searchable field.
// An empty field searches by name.
func NormalizeSearchField(field string) (string, error) {
	switch strings.TrimSpace(field) {
	case "", model.SearchFieldName:
		return model.SearchFieldName, nil
	case model.SearchFieldID:
		return model.SearchFieldID, nil
	case model.SearchFieldPhone:
		return model.SearchFieldPhone, nil
	case model.SearchFieldIDNumber, "idNumber":
		return model.SearchFieldIDNumber, nil
	}
	return "", apperrors.BadRequest(fmt.Sprintf("unsupported search field %q", field), nil)
}

func (s *Service) CreatePatient(ctx context.Context, p *model.Principal, req *model.CreatePatientRequest) (*model.PatientDetails, error) {
	if err := authz.RequirePrincipal(p); err != nil {
		return nil, err
	}

	now := s.now()
	patient := req.Patient()
	patient.ID = s.newID()
	patient.OwnerID = p.ID
	patient.CreatedAt = now
	patient.UpdatedAt = now

	details := &model.PatientDetails{
		Patient:  patient,
		Visits:   []*model.Visit{},
		Payments: []*model.Payment{},
	}
	if req.Demographic != nil {
		details.Demographic = model.NewDemographicRecord(s.newID(), patient, req.Demographic, now)
	}
	if req.Medical != nil {
		details.Medical = model.NewMedicalRecord(s.newID(), patient, req.Medical, now)
	}

	if err := s.repo.CreateWithRecords(ctx, patient, details.Demographic, details.Medical); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	s.publish(ctx, model.EventPatientCreate, patient)
	return details, nil
}

func (s *Service) GetPatient(ctx context.Context, p *model.Principal, id string) (*model.PatientDetails, error) {
	patient, err := s.authorized(ctx, p, id)
	if err != nil {
		return nil, err
	}

	details := &model.PatientDetails{Patient: patient}

	if details.Demographic, err = s.records.GetDemographic(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get demographic record: %w", err)
	}
	if details.Medical, err = s.records.GetMedical(ctx, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}
	if details.Visits, err = s.visits.List(ctx, &model.VisitFilters{PatientID: id}); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	if details.Payments, err = s.payments.List(ctx, &model.PaymentFilters{PatientID: id}); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}

	return details, nil
}

func (s *Service) ListPatients(ctx context.Context, p *model.Principal) ([]*model.Patient, error) {
	patients, err := s.repo.List(ctx, &model.PatientFilters{OwnerID: authz.OwnerFilter(p)})
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (s *Service) SearchPatients(ctx context.Context, p *model.Principal, query, field string) ([]*model.Patient, error) {
	normalized, err := NormalizeSearchField(field)
	if err != nil {
		return nil, err
	}

	filters := &model.PatientFilters{
		OwnerID: authz.OwnerFilter(p),
		Query:   strings.TrimSpace(query),
		Field:   normalized,
	}
	patients, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to search patients: %w", err)
	}
	return patients, nil
}

func (s *Service) UpdatePatient(ctx context.Context, p *model.Principal, id string, req *model.UpdatePatientRequest) (*model.Patient, error) {
	patient, err := s.authorized(ctx, p, id)
	if err != nil {
		return nil, err
	}

	req.ApplyTo(patient)
	patient.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, patient); err != nil {
		return nil, translate(err, "failed to update patient")
	}

	s.publish(ctx, model.EventPatientUpdate, patient)
	return patient, nil
}

func (s *Service) DeletePatient(ctx context.Context, p *model.Principal, id string) error {
	patient, err := s.authorized(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err, "failed to delete patient")
	}

	s.publish(ctx, model.EventPatientDelete, patient)
	return nil
}

// authorized fetches the patient and applies the ownership rule to it.
func (s *Service) authorized(ctx context.Context, p *model.Principal, id string) (*model.Patient, error) {
	patient, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to get patient")
	}
	if err := authz.Check(p, patient); err != nil {
		return nil, err
	}
	return patient, nil
}

func (s *Service) publish(ctx context.Context, eventType string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, eventType, payload); err != nil {
		log.Error().Err(err).Str("event_type", eventType).Msg("Failed to publish event")
	}
}

// translate turns a missing record into the 404 callers expect and wraps
// everything else.
func translate(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound("Patient", err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
	"github.com/jwalitptl/clinic-api/pkg/messaging"
)

type PaymentService interface {
	CreatePayment(ctx context.Context, p *model.Principal, req *model.CreatePaymentRequest) (*model.Payment, error)
	GetPayment(ctx context.Context, p *model.Principal, id string) (*model.Payment, error)
	ListPayments(ctx context.Context, p *model.Principal) ([]*model.Payment, error)
	ListPatientPayments(ctx context.Context, p *model.Principal, patientID string) ([]*model.Payment, error)
	UpdatePayment(ctx context.Context, p *model.Principal, id string, req *model.UpdatePaymentRequest) (*model.Payment, error)
	DeletePayment(ctx context.Context, p *model.Principal, id string) error
}

type Service struct {
	repo      repository.PaymentRepository
	patients  repository.PatientRepository
	publisher messaging.Publisher

	now   func() time.Time
	newID func() string
}

// NewService builds the payment service. publisher may be nil.
func NewService(store *repository.Store, publisher messaging.Publisher) *Service {
	return &Service{
		repo:      store.Payments,
		patients:  store.Patients,
		publisher: publisher,
		now:       func() time.Time { return time.Now().UTC() },
		newID:     uuid.NewString,
	}
}

var _ PaymentService = (*Service)(nil)

// CreatePayment attaches a payment to a patient the caller may access. The
// payment takes its owner from the patient, not from the caller.
func (s *Service) CreatePayment(ctx context.Context, p *model.Principal, req *model.CreatePaymentRequest) (*model.Payment, error) {
	if err := authz.RequirePrincipal(p); err != nil {
		return nil, err
	}

	patient, err := s.patient(ctx, p, req.PatientID)
	if err != nil {
		return nil, err
	}

	status := req.Status
	if status == "" {
		status = string(model.PaymentStatusPending)
	}

	now := s.now()
	payment := &model.Payment{
		Base:      model.Base{ID: s.newID(), CreatedAt: now, UpdatedAt: now},
		PatientID: patient.ID,
		OwnerID:   patient.OwnerID,
		Method:    req.Method,
		Amount:    req.Amount,
		Date:      req.Date,
		Status:    status,
		Notes:     req.Notes,
	}

	if err := s.repo.Create(ctx, payment); err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	s.publish(ctx, model.EventPaymentCreate, payment)
	return payment, nil
}

func (s *Service) GetPayment(ctx context.Context, p *model.Principal, id string) (*model.Payment, error) {
	return s.authorized(ctx, p, id)
}

func (s *Service) ListPayments(ctx context.Context, p *model.Principal) ([]*model.Payment, error) {
	payments, err := s.repo.List(ctx, &model.PaymentFilters{OwnerID: authz.OwnerFilter(p)})
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *Service) ListPatientPayments(ctx context.Context, p *model.Principal, patientID string) ([]*model.Payment, error) {
	if _, err := s.patient(ctx, p, patientID); err != nil {
		return nil, err
	}

	payments, err := s.repo.List(ctx, &model.PaymentFilters{PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (s *Service) UpdatePayment(ctx context.Context, p *model.Principal, id string, req *model.UpdatePaymentRequest) (*model.Payment, error) {
	payment, err := s.authorized(ctx, p, id)
	if err != nil {
		return nil, err
	}

	req.ApplyTo(payment)
	payment.UpdatedAt = s.now()

	if err := s.repo.Update(ctx, payment); err != nil {
		return nil, translate(err, "Payment", "failed to update payment")
	}

	s.publish(ctx, model.EventPaymentUpdate, payment)
	return payment, nil
}

func (s *Service) DeletePayment(ctx context.Context, p *model.Principal, id string) error {
	payment, err := s.authorized(ctx, p, id)
	if err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return translate(err, "Payment", "failed to delete payment")
	}

	s.publish(ctx, model.EventPaymentDelete, payment)
	return nil
}

func (s *Service) authorized(ctx context.Context, p *model.Principal, id string) (*model.Payment, error) {
	payment, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "Payment", "failed to get payment")
	}
	if err := authz.Check(p, payment); err != nil {
		return nil, err
	}
	return payment, nil
}

func (s *Service) patient(ctx context.Context, p *model.Principal, id string) (*model.Patient, error) {
	patient, err := s.patients.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "Patient", "failed to get patient")
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

func translate(err error, resource, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return fmt.Errorf("%s: %w", msg, err)
}

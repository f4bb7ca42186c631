// Package visit exposes the read-only visit history.
package visit

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/internal/service/authz"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

type VisitService interface {
	GetVisit(ctx context.Context, p *model.Principal, id string) (*model.Visit, error)
	ListVisits(ctx context.Context, p *model.Principal) ([]*model.Visit, error)
	ListPatientVisits(ctx context.Context, p *model.Principal, patientID string) ([]*model.Visit, error)
}

type Service struct {
	repo     repository.VisitRepository
	patients repository.PatientRepository
}

func NewService(store *repository.Store) *Service {
	return &Service{repo: store.Visits, patients: store.Patients}
}

var _ VisitService = (*Service)(nil)

func (s *Service) GetVisit(ctx context.Context, p *model.Principal, id string) (*model.Visit, error) {
	visit, err := s.repo.Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Visit", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get visit: %w", err)
	}
	if err := authz.Check(p, visit); err != nil {
		return nil, err
	}
	return visit, nil
}

func (s *Service) ListVisits(ctx context.Context, p *model.Principal) ([]*model.Visit, error) {
	visits, err := s.repo.List(ctx, &model.VisitFilters{OwnerID: authz.OwnerFilter(p)})
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}

func (s *Service) ListPatientVisits(ctx context.Context, p *model.Principal, patientID string) ([]*model.Visit, error) {
	patient, err := s.patients.Get(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Patient", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	if err := authz.Check(p, patient); err != nil {
		return nil, err
	}

	visits, err := s.repo.List(ctx, &model.VisitFilters{PatientID: patientID})
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}

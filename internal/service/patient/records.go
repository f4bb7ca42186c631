package patient

import (
	"context"
	"errors"
	"fmt"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

// Demographic and medical records are authorized through their patient.

func (s *Service) GetDemographic(ctx context.Context, p *model.Principal, patientID string) (*model.DemographicRecord, error) {
	if _, err := s.authorized(ctx, p, patientID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetDemographic(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Demographic record", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get demographic record: %w", err)
	}
	return rec, nil
}

// UpdateDemographic merges req into the existing record, creating it on first write.
func (s *Service) UpdateDemographic(ctx context.Context, p *model.Principal, patientID string, req *model.DemographicRequest) (*model.DemographicRecord, error) {
	patient, err := s.authorized(ctx, p, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec, err := s.records.GetDemographic(ctx, patientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		rec = model.NewDemographicRecord(s.newID(), patient, req, now)
	case err != nil:
		return nil, fmt.Errorf("failed to get demographic record: %w", err)
	default:
		req.ApplyTo(rec)
		rec.UpdatedAt = now
	}

	if err := s.records.UpsertDemographic(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save demographic record: %w", err)
	}
	return rec, nil
}

func (s *Service) GetMedical(ctx context.Context, p *model.Principal, patientID string) (*model.MedicalRecord, error) {
	if _, err := s.authorized(ctx, p, patientID); err != nil {
		return nil, err
	}

	rec, err := s.records.GetMedical(ctx, patientID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.NotFound("Medical record", err)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	}
	return rec, nil
}

// UpdateMedical merges req into the existing record, creating it on first write.
func (s *Service) UpdateMedical(ctx context.Context, p *model.Principal, patientID string, req *model.MedicalRequest) (*model.MedicalRecord, error) {
	patient, err := s.authorized(ctx, p, patientID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rec, err := s.records.GetMedical(ctx, patientID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		rec = model.NewMedicalRecord(s.newID(), patient, req, now)
	case err != nil:
		return nil, fmt.Errorf("failed to get medical record: %w", err)
	default:
		req.ApplyTo(rec)
		rec.UpdatedAt = now
	}

	if err := s.records.UpsertMedical(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save medical record: %w", err)
	}
	return rec, nil
}

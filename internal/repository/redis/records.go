package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Records are keyed by patient id; each patient has at most one of each kind.
type recordStore struct {
	*baseStore
}

func (s *recordStore) GetDemographic(ctx context.Context, patientID string) (_ *model.DemographicRecord, err error) {
	start := time.Now()
	defer func() { s.observe("get_demographic", start, err) }()

	var rec model.DemographicRecord
	if err = s.getDoc(ctx, s.keys.doc(collDemographics, patientID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *recordStore) UpsertDemographic(ctx context.Context, record *model.DemographicRecord) (err error) {
	start := time.Now()
	defer func() { s.observe("upsert_demographic", start, err) }()

	err = s.put(ctx, s.keys.doc(collDemographics, record.PatientID), record)
	return err
}

func (s *recordStore) GetMedical(ctx context.Context, patientID string) (_ *model.MedicalRecord, err error) {
	start := time.Now()
	defer func() { s.observe("get_medical", start, err) }()

	var rec model.MedicalRecord
	if err = s.getDoc(ctx, s.keys.doc(collMedical, patientID), &rec); err != nil {
		return nil, err
	}
	return &rec, nil
}

func (s *recordStore) UpsertMedical(ctx context.Context, record *model.MedicalRecord) (err error) {
	start := time.Now()
	defer func() { s.observe("upsert_medical", start, err) }()

	err = s.put(ctx, s.keys.doc(collMedical, record.PatientID), record)
	return err
}

func (s *recordStore) put(ctx context.Context, key string, doc interface{}) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode record: %w", err)
	}
	if err := s.client.Set(ctx, key, raw, 0).Err(); err != nil {
		return fmt.Errorf("failed to save record: %w", err)
	}
	return nil
}

var _ repository.RecordRepository = (*recordStore)(nil)

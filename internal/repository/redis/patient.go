package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// maxTxAttempts bounds optimistic retries when a watched key changes.
const maxTxAttempts = 5

type patientStore struct {
	*baseStore
	// beforeExec runs between the watched reads and EXEC. Tests only.
	beforeExec func()
}

func (s *patientStore) Create(ctx context.Context, patient *model.Patient) error {
	return s.CreateWithRecords(ctx, patient, nil, nil)
}

// CreateWithRecords writes everything inside one MULTI/EXEC block.
func (s *patientStore) CreateWithRecords(ctx context.Context, patient *model.Patient, demographic *model.DemographicRecord, medical *model.MedicalRecord) (err error) {
	start := time.Now()
	defer func() { s.observe("create_patient", start, err) }()

	docs := map[string]interface{}{s.keys.doc(collPatients, patient.ID): patient}
	if demographic != nil {
		docs[s.keys.doc(collDemographics, patient.ID)] = demographic
	}
	if medical != nil {
		docs[s.keys.doc(collMedical, patient.ID)] = medical
	}

	encoded := make(map[string][]byte, len(docs))
	for key, doc := range docs {
		raw, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to encode document: %w", err)
		}
		encoded[key] = raw
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for key, raw := range encoded {
			pipe.Set(ctx, key, raw, 0)
		}
		pipe.SAdd(ctx, s.keys.all(collPatients), patient.ID)
		pipe.SAdd(ctx, s.keys.byOwner(collPatients, patient.OwnerID), patient.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (s *patientStore) Get(ctx context.Context, id string) (_ *model.Patient, err error) {
	start := time.Now()
	defer func() { s.observe("get_patient", start, err) }()

	var patient model.Patient
	if err = s.getDoc(ctx, s.keys.doc(collPatients, id), &patient); err != nil {
		return nil, err
	}
	return &patient, nil
}

func (s *patientStore) List(ctx context.Context, filters *model.PatientFilters) (_ []*model.Patient, err error) {
	start := time.Now()
	defer func() { s.observe("list_patients", start, err) }()

	if filters == nil {
		filters = &model.PatientFilters{}
	}
	index := s.keys.all(collPatients)
	if filters.OwnerID != "" {
		index = s.keys.byOwner(collPatients, filters.OwnerID)
	}

	all, err := loadDocs[model.Patient](ctx, s.baseStore, collPatients, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}

	patients := make([]*model.Patient, 0, len(all))
	for _, p := range all {
		if filters.Matches(p) {
			patients = append(patients, p)
		}
	}
	sortByCreated(patients, func(p *model.Patient) time.Time { return p.CreatedAt })
	return patients, nil
}

func (s *patientStore) Update(ctx context.Context, patient *model.Patient) (err error) {
	start := time.Now()
	defer func() { s.observe("update_patient", start, err) }()

	raw, err := json.Marshal(patient)
	if err != nil {
		return fmt.Errorf("failed to encode patient: %w", err)
	}
	ok, err := s.client.SetXX(ctx, s.keys.doc(collPatients, patient.ID), raw, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	if !ok {
		err = repository.ErrNotFound
		return err
	}
	return nil
}

// Delete removes the patient, its records, payments and visits, and every
// index entry pointing at them. The per-patient indexes are watched, so a
// payment or visit written concurrently aborts the transaction and the
// cascade is recomputed.
func (s *patientStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete_patient", start, err) }()

	watched := []string{
		s.keys.doc(collPatients, id),
		s.keys.byPatient(collPayments, id),
		s.keys.byPatient(collVisits, id),
	}
	for attempt := 0; attempt < maxTxAttempts; attempt++ {
		err = s.client.Watch(ctx, func(tx *redis.Tx) error {
			return s.deleteTx(ctx, tx, id)
		}, watched...)
		if !errors.Is(err, redis.TxFailedErr) {
			break
		}
	}
	if errors.Is(err, repository.ErrNotFound) {
		return err
	}
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	return nil
}

func (s *patientStore) deleteTx(ctx context.Context, tx *redis.Tx, id string) error {
	var patient model.Patient
	if err := readDoc(ctx, tx, s.keys.doc(collPatients, id), &patient); err != nil {
		return err
	}

	payments, err := loadDocsFrom[model.Payment](ctx, tx, s.keys, collPayments, s.keys.byPatient(collPayments, id))
	if err != nil {
		return fmt.Errorf("failed to load patient payments: %w", err)
	}
	visits, err := loadDocsFrom[model.Visit](ctx, tx, s.keys, collVisits, s.keys.byPatient(collVisits, id))
	if err != nil {
		return fmt.Errorf("failed to load patient visits: %w", err)
	}

	if s.beforeExec != nil {
		s.beforeExec()
	}

	_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx,
			s.keys.doc(collPatients, id),
			s.keys.doc(collDemographics, id),
			s.keys.doc(collMedical, id),
			s.keys.byPatient(collPayments, id),
			s.keys.byPatient(collVisits, id),
		)
		pipe.SRem(ctx, s.keys.all(collPatients), id)
		pipe.SRem(ctx, s.keys.byOwner(collPatients, patient.OwnerID), id)

		for _, pay := range payments {
			pipe.Del(ctx, s.keys.doc(collPayments, pay.ID))
			pipe.SRem(ctx, s.keys.all(collPayments), pay.ID)
			pipe.SRem(ctx, s.keys.byOwner(collPayments, pay.OwnerID), pay.ID)
		}
		for _, v := range visits {
			pipe.Del(ctx, s.keys.doc(collVisits, v.ID))
			pipe.SRem(ctx, s.keys.all(collVisits), v.ID)
			pipe.SRem(ctx, s.keys.byOwner(collVisits, v.OwnerID), v.ID)
		}
		return nil
	})
	return err
}

var _ repository.PatientRepository = (*patientStore)(nil)

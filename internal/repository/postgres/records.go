package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Each patient has at most one record of each kind; patient_id is unique.
const upsertDemographicQuery = `
	INSERT INTO demographic_records (
		id, patient_id, user_id, address, city, country, marital_status, occupation,
		emergency_contact_name, emergency_contact_phone, created_at, updated_at
	) VALUES (
		:id, :patient_id, :user_id, :address, :city, :country, :marital_status, :occupation,
		:emergency_contact_name, :emergency_contact_phone, :created_at, :updated_at
	)
	ON CONFLICT (patient_id) DO UPDATE SET
		address = EXCLUDED.address,
		city = EXCLUDED.city,
		country = EXCLUDED.country,
		marital_status = EXCLUDED.marital_status,
		occupation = EXCLUDED.occupation,
		emergency_contact_name = EXCLUDED.emergency_contact_name,
		emergency_contact_phone = EXCLUDED.emergency_contact_phone,
		updated_at = EXCLUDED.updated_at
`

const upsertMedicalQuery = `
	INSERT INTO medical_records (
		id, patient_id, user_id, blood_type, allergies, chronic_conditions,
		medications, notes, created_at, updated_at
	) VALUES (
		:id, :patient_id, :user_id, :blood_type, :allergies, :chronic_conditions,
		:medications, :notes, :created_at, :updated_at
	)
	ON CONFLICT (patient_id) DO UPDATE SET
		blood_type = EXCLUDED.blood_type,
		allergies = EXCLUDED.allergies,
		chronic_conditions = EXCLUDED.chronic_conditions,
		medications = EXCLUDED.medications,
		notes = EXCLUDED.notes,
		updated_at = EXCLUDED.updated_at
`

type recordRepository struct {
	BaseRepository
}

func NewRecordRepository(base BaseRepository) repository.RecordRepository {
	return &recordRepository{base}
}

func (r *recordRepository) GetDemographic(ctx context.Context, patientID string) (_ *model.DemographicRecord, err error) {
	start := time.Now()
	defer func() { r.observe("get_demographic", start, err) }()

	var rec model.DemographicRecord
	query := `
		SELECT id, patient_id, user_id, address, city, country, marital_status, occupation,
			emergency_contact_name, emergency_contact_phone, created_at, updated_at
		FROM demographic_records WHERE patient_id = $1
	`
	if err = r.db.GetContext(ctx, &rec, query, patientID); err != nil {
		err = notFound(err)
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) UpsertDemographic(ctx context.Context, record *model.DemographicRecord) (err error) {
	start := time.Now()
	defer func() { r.observe("upsert_demographic", start, err) }()

	if _, err = r.db.NamedExecContext(ctx, upsertDemographicQuery, record); err != nil {
		return fmt.Errorf("failed to save demographic record: %w", err)
	}
	return nil
}

func (r *recordRepository) GetMedical(ctx context.Context, patientID string) (_ *model.MedicalRecord, err error) {
	start := time.Now()
	defer func() { r.observe("get_medical", start, err) }()

	var rec model.MedicalRecord
	query := `
		SELECT id, patient_id, user_id, blood_type, allergies, chronic_conditions,
			medications, notes, created_at, updated_at
		FROM medical_records WHERE patient_id = $1
	`
	if err = r.db.GetContext(ctx, &rec, query, patientID); err != nil {
		err = notFound(err)
		return nil, err
	}
	return &rec, nil
}

func (r *recordRepository) UpsertMedical(ctx context.Context, record *model.MedicalRecord) (err error) {
	start := time.Now()
	defer func() { r.observe("upsert_medical", start, err) }()

	if _, err = r.db.NamedExecContext(ctx, upsertMedicalQuery, record); err != nil {
		return fmt.Errorf("failed to save medical record: %w", err)
	}
	return nil
}

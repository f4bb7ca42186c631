package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const patientColumns = `id, user_id, name, phone, id_number, email, date_of_birth, gender, address, notes, created_at, updated_at`

// searchColumns whitelists the columns a search may target.
var searchColumns = map[string]string{
	model.SearchFieldID:       "id",
	model.SearchFieldName:     "name",
	model.SearchFieldPhone:    "phone",
	model.SearchFieldIDNumber: "id_number",
}

type patientRepository struct {
	BaseRepository
}

func NewPatientRepository(base BaseRepository) repository.PatientRepository {
	return &patientRepository{base}
}

const insertPatientQuery = `
	INSERT INTO patients (` + patientColumns + `)
	VALUES (:id, :user_id, :name, :phone, :id_number, :email, :date_of_birth, :gender, :address, :notes, :created_at, :updated_at)
`

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) (err error) {
	start := time.Now()
	defer func() { r.observe("create_patient", start, err) }()

	if _, err = r.db.NamedExecContext(ctx, insertPatientQuery, patient); err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) CreateWithRecords(ctx context.Context, patient *model.Patient, demographic *model.DemographicRecord, medical *model.MedicalRecord) (err error) {
	start := time.Now()
	defer func() { r.observe("create_patient_with_records", start, err) }()

	err = r.WithTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.NamedExecContext(ctx, insertPatientQuery, patient); err != nil {
			return fmt.Errorf("failed to create patient: %w", err)
		}
		if demographic != nil {
			if _, err := tx.NamedExecContext(ctx, upsertDemographicQuery, demographic); err != nil {
				return fmt.Errorf("failed to create demographic record: %w", err)
			}
		}
		if medical != nil {
			if _, err := tx.NamedExecContext(ctx, upsertMedicalQuery, medical); err != nil {
				return fmt.Errorf("failed to create medical record: %w", err)
			}
		}
		return nil
	})
	return err
}

func (r *patientRepository) Get(ctx context.Context, id string) (_ *model.Patient, err error) {
	start := time.Now()
	defer func() { r.observe("get_patient", start, err) }()

	var patient model.Patient
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	if err = r.db.GetContext(ctx, &patient, query, id); err != nil {
		err = notFound(err)
		return nil, err
	}
	return &patient, nil
}

func (r *patientRepository) List(ctx context.Context, filters *model.PatientFilters) (_ []*model.Patient, err error) {
	start := time.Now()
	defer func() { r.observe("list_patients", start, err) }()

	var (
		conds []string
		args  []interface{}
	)
	if filters != nil {
		if filters.OwnerID != "" {
			args = append(args, filters.OwnerID)
			conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
		}
		if filters.Query != "" {
			column, ok := searchColumns[filters.Field]
			if !ok {
				column = "name"
			}
			args = append(args, likePattern(filters.Query))
			conds = append(conds, fmt.Sprintf("%s ILIKE $%d", column, len(args)))
		}
	}

	query := `SELECT ` + patientColumns + ` FROM patients`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`

	patients := []*model.Patient{}
	if err = r.db.SelectContext(ctx, &patients, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	return patients, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) (err error) {
	start := time.Now()
	defer func() { r.observe("update_patient", start, err) }()

	query := `
		UPDATE patients
		SET name = :name, phone = :phone, id_number = :id_number, email = :email,
			date_of_birth = :date_of_birth, gender = :gender, address = :address,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, patient)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	err = expectAffected(res)
	return err
}

// Delete relies on ON DELETE CASCADE for the dependent tables.
func (r *patientRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { r.observe("delete_patient", start, err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	err = expectAffected(res)
	return err
}

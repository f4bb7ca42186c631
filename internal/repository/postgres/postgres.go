package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/jwalitptl/clinic-api/internal/repository"
	"github.com/jwalitptl/clinic-api/pkg/metrics"
)

//go:embed schema.sql
var schema string

// Migrate applies the embedded schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}

// NewStore wires every relational repository onto one connection pool.
func NewStore(db *sqlx.DB, m *metrics.Metrics) *repository.Store {
	base := NewBaseRepository(db, m)
	return &repository.Store{
		Patients: NewPatientRepository(base),
		Records:  NewRecordRepository(base),
		Payments: NewPaymentRepository(base),
		Visits:   NewVisitRepository(base),
		Health:   &base,
	}
}

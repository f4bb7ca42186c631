package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const paymentColumns = `id, patient_id, user_id, method, amount, date, status, notes, created_at, updated_at`

type paymentRepository struct {
	BaseRepository
}

func NewPaymentRepository(base BaseRepository) repository.PaymentRepository {
	return &paymentRepository{base}
}

func (r *paymentRepository) Create(ctx context.Context, payment *model.Payment) (err error) {
	start := time.Now()
	defer func() { r.observe("create_payment", start, err) }()

	query := `
		INSERT INTO payments (` + paymentColumns + `)
		VALUES (:id, :patient_id, :user_id, :method, :amount, :date, :status, :notes, :created_at, :updated_at)
	`
	if _, err = r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *paymentRepository) Get(ctx context.Context, id string) (_ *model.Payment, err error) {
	start := time.Now()
	defer func() { r.observe("get_payment", start, err) }()

	var payment model.Payment
	query := `SELECT ` + paymentColumns + ` FROM payments WHERE id = $1`
	if err = r.db.GetContext(ctx, &payment, query, id); err != nil {
		err = notFound(err)
		return nil, err
	}
	return &payment, nil
}

func (r *paymentRepository) List(ctx context.Context, filters *model.PaymentFilters) (_ []*model.Payment, err error) {
	start := time.Now()
	defer func() { r.observe("list_payments", start, err) }()

	var (
		conds []string
		args  []interface{}
	)
	if filters != nil {
		if filters.OwnerID != "" {
			args = append(args, filters.OwnerID)
			conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
		}
		if filters.PatientID != "" {
			args = append(args, filters.PatientID)
			conds = append(conds, fmt.Sprintf("patient_id = $%d", len(args)))
		}
	}

	query := `SELECT ` + paymentColumns + ` FROM payments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC, created_at DESC`

	payments := []*model.Payment{}
	if err = r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	return payments, nil
}

func (r *paymentRepository) Update(ctx context.Context, payment *model.Payment) (err error) {
	start := time.Now()
	defer func() { r.observe("update_payment", start, err) }()

	query := `
		UPDATE payments
		SET method = :method, amount = :amount, date = :date, status = :status,
			notes = :notes, updated_at = :updated_at
		WHERE id = :id
	`
	res, err := r.db.NamedExecContext(ctx, query, payment)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	err = expectAffected(res)
	return err
}

func (r *paymentRepository) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { r.observe("delete_payment", start, err) }()

	res, err := r.db.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete payment: %w", err)
	}
	err = expectAffected(res)
	return err
}

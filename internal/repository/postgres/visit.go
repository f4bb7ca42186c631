package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

const visitColumns = `id, patient_id, user_id, date, provider, purpose, status, created_at, updated_at`

type visitRepository struct {
	BaseRepository
}

func NewVisitRepository(base BaseRepository) repository.VisitRepository {
	return &visitRepository{base}
}

func (r *visitRepository) Get(ctx context.Context, id string) (_ *model.Visit, err error) {
	start := time.Now()
	defer func() { r.observe("get_visit", start, err) }()

	var visit model.Visit
	query := `SELECT ` + visitColumns + ` FROM visits WHERE id = $1`
	if err = r.db.GetContext(ctx, &visit, query, id); err != nil {
		err = notFound(err)
		return nil, err
	}
	return &visit, nil
}

func (r *visitRepository) List(ctx context.Context, filters *model.VisitFilters) (_ []*model.Visit, err error) {
	start := time.Now()
	defer func() { r.observe("list_visits", start, err) }()

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

	query := `SELECT ` + visitColumns + ` FROM visits`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY date DESC`

	visits := []*model.Visit{}
	if err = r.db.SelectContext(ctx, &visits, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	return visits, nil
}

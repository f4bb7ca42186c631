package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

// Visits are written by the scheduling front-end; the API only reads them.
type visitStore struct {
	*baseStore
}

func (s *visitStore) Get(ctx context.Context, id string) (_ *model.Visit, err error) {
	start := time.Now()
	defer func() { s.observe("get_visit", start, err) }()

	var visit model.Visit
	if err = s.getDoc(ctx, s.keys.doc(collVisits, id), &visit); err != nil {
		return nil, err
	}
	return &visit, nil
}

func (s *visitStore) List(ctx context.Context, filters *model.VisitFilters) (_ []*model.Visit, err error) {
	start := time.Now()
	defer func() { s.observe("list_visits", start, err) }()

	if filters == nil {
		filters = &model.VisitFilters{}
	}
	index := s.keys.all(collVisits)
	switch {
	case filters.PatientID != "":
		index = s.keys.byPatient(collVisits, filters.PatientID)
	case filters.OwnerID != "":
		index = s.keys.byOwner(collVisits, filters.OwnerID)
	}

	all, err := loadDocs[model.Visit](ctx, s.baseStore, collVisits, index)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}

	visits := make([]*model.Visit, 0, len(all))
	for _, v := range all {
		if filters.OwnerID != "" && v.OwnerID != filters.OwnerID {
			continue
		}
		visits = append(visits, v)
	}
	sortByCreated(visits, func(v *model.Visit) time.Time { return v.CreatedAt })
	return visits, nil
}

var _ repository.VisitRepository = (*visitStore)(nil)

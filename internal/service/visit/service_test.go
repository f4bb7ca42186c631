package visit

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	redisstore "github.com/jwalitptl/clinic-api/internal/repository/redis"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

func setup(t *testing.T) *Service {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redisstore.NewStore(client, "test", nil)
	ctx := context.Background()
	require.NoError(t, store.Patients.Create(ctx, &model.Patient{Base: model.Base{ID: "pa", CreatedAt: time.Now()}, OwnerID: "user-a"}))

	for _, v := range []*model.Visit{
		{Base: model.Base{ID: "v1"}, PatientID: "pa", OwnerID: "user-a", Date: "2024-01-10", Purpose: "checkup"},
		{Base: model.Base{ID: "v2"}, PatientID: "pb", OwnerID: "user-b", Date: "2024-01-11"},
	} {
		raw, err := json.Marshal(v)
		require.NoError(t, err)
		require.NoError(t, client.Set(ctx, "test:visits:"+v.ID, raw, 0).Err())
		require.NoError(t, client.SAdd(ctx, "test:visits", v.ID).Err())
		require.NoError(t, client.SAdd(ctx, "test:visits:owner:"+v.OwnerID, v.ID).Err())
		require.NoError(t, client.SAdd(ctx, "test:visits:patient:"+v.PatientID, v.ID).Err())
	}
	return NewService(store)
}

func TestVisitAccess(t *testing.T) {
	s := setup(t)
	ctx := context.Background()
	userA := &model.Principal{ID: "user-a"}
	admin := &model.Principal{ID: "root", IsAdmin: true}

	v, err := s.GetVisit(ctx, userA, "v1")
	require.NoError(t, err)
	assert.Equal(t, "checkup", v.Purpose)

	_, err = s.GetVisit(ctx, userA, "v2")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = s.GetVisit(ctx, admin, "v404")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	mine, err := s.ListVisits(ctx, userA)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := s.ListVisits(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	forPatient, err := s.ListPatientVisits(ctx, userA, "pa")
	require.NoError(t, err)
	assert.Len(t, forPatient, 1)

	_, err = s.ListPatientVisits(ctx, &model.Principal{ID: "user-b"}, "pa")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = s.ListPatientVisits(ctx, admin, "nobody")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

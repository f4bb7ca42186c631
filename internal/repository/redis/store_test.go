package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/config"
	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
)

func setupTestStore(t *testing.T) (*miniredis.Miniredis, *redis.Client, *repository.Store) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return mr, client, NewStore(client, "clinic", nil)
}

func newPatient(id, owner, name string, created time.Time) *model.Patient {
	return &model.Patient{
		Base:     model.Base{ID: id, CreatedAt: created, UpdatedAt: created},
		OwnerID:  owner,
		Name:     name,
		Phone:    "555-" + id,
		IDNumber: "ID-" + id,
	}
}

// seedVisit writes a visit the way the scheduling front-end does.
func seedVisit(t *testing.T, client *redis.Client, v *model.Visit) {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	ctx := context.Background()
	require.NoError(t, client.Set(ctx, "clinic:visits:"+v.ID, raw, 0).Err())
	require.NoError(t, client.SAdd(ctx, "clinic:visits", v.ID).Err())
	require.NoError(t, client.SAdd(ctx, "clinic:visits:owner:"+v.OwnerID, v.ID).Err())
	require.NoError(t, client.SAdd(ctx, "clinic:visits:patient:"+v.PatientID, v.ID).Err())
}

func TestPatientRoundTrip(t *testing.T) {
	mr, _, store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Second)

	p := newPatient("p1", "u1", "Ana", now)
	demo := model.NewDemographicRecord("d1", p, nil, now)
	demo.City = "Porto"
	require.NoError(t, store.Patients.CreateWithRecords(ctx, p, demo, nil))

	got, err := store.Patients.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, p, got)

	gotDemo, err := store.Records.GetDemographic(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "Porto", gotDemo.City)

	_, err = store.Records.GetMedical(ctx, "p1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	ok, err := mr.SIsMember("clinic:patients:owner:u1", "p1")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestGetMissingPatient(t *testing.T) {
	_, _, store := setupTestStore(t)

	_, err := store.Patients.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestListPatientsByOwnerAndSearch(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()
	base := time.Now().UTC()

	require.NoError(t, store.Patients.Create(ctx, newPatient("p1", "u1", "Ana Lima", base)))
	require.NoError(t, store.Patients.Create(ctx, newPatient("p2", "u1", "Bruno Costa", base.Add(time.Minute))))
	require.NoError(t, store.Patients.Create(ctx, newPatient("p3", "u2", "Ana Souza", base.Add(2*time.Minute))))

	mine, err := store.Patients.List(ctx, &model.PatientFilters{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "p2", mine[0].ID, "newest first")

	all, err := store.Patients.List(ctx, &model.PatientFilters{Query: "ana", Field: model.SearchFieldName})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	scoped, err := store.Patients.List(ctx, &model.PatientFilters{OwnerID: "u1", Query: "ana", Field: model.SearchFieldName})
	require.NoError(t, err)
	require.Len(t, scoped, 1)
	assert.Equal(t, "p1", scoped[0].ID)

	empty, err := store.Patients.List(ctx, &model.PatientFilters{OwnerID: "nobody"})
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)
}

func TestUpdateMissingPatient(t *testing.T) {
	_, _, store := setupTestStore(t)

	err := store.Patients.Update(context.Background(), newPatient("ghost", "u1", "X", time.Now()))
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestDeletePatientCascades(t *testing.T) {
	mr, client, store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := newPatient("p1", "u1", "Ana", now)
	require.NoError(t, store.Patients.CreateWithRecords(ctx, p,
		model.NewDemographicRecord("d1", p, nil, now),
		model.NewMedicalRecord("m1", p, nil, now)))
	require.NoError(t, store.Payments.Create(ctx, &model.Payment{Base: model.Base{ID: "pay1"}, PatientID: "p1", OwnerID: "u1", Amount: 10}))
	seedVisit(t, client, &model.Visit{Base: model.Base{ID: "v1"}, PatientID: "p1", OwnerID: "u1", Date: "2024-01-01"})

	require.NoError(t, store.Patients.Delete(ctx, "p1"))

	for _, key := range []string{
		"clinic:patients:p1", "clinic:demographics:p1", "clinic:medical:p1",
		"clinic:payments:pay1", "clinic:visits:v1",
	} {
		assert.False(t, mr.Exists(key), key)
	}
	members, _ := mr.Members("clinic:payments")
	assert.Empty(t, members)

	assert.ErrorIs(t, store.Patients.Delete(ctx, "p1"), repository.ErrNotFound)
}

func TestDeletePatientRetriesOnConcurrentPayment(t *testing.T) {
	mr, _, store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	p := newPatient("p1", "u1", "Ana", now)
	require.NoError(t, store.Patients.CreateWithRecords(ctx, p, nil, nil))
	require.NoError(t, store.Payments.Create(ctx, &model.Payment{Base: model.Base{ID: "pay1"}, PatientID: "p1", OwnerID: "u1", Amount: 10}))

	patients := store.Patients.(*patientStore)
	calls := 0
	patients.beforeExec = func() {
		calls++
		if calls == 1 {
			require.NoError(t, store.Payments.Create(ctx, &model.Payment{Base: model.Base{ID: "pay2"}, PatientID: "p1", OwnerID: "u1", Amount: 20}))
		}
	}

	require.NoError(t, patients.Delete(ctx, "p1"))
	assert.Equal(t, 2, calls, "the interleaved write forces a second pass")

	for _, key := range []string{"clinic:patients:p1", "clinic:payments:pay1", "clinic:payments:pay2"} {
		assert.False(t, mr.Exists(key), key)
	}
	members, _ := mr.Members("clinic:payments")
	assert.Empty(t, members)
}

func TestPaymentsLifecycle(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	pay := &model.Payment{Base: model.Base{ID: "pay1", CreatedAt: now}, PatientID: "p1", OwnerID: "u1", Method: "cash", Amount: 30, Status: "pending"}
	require.NoError(t, store.Payments.Create(ctx, pay))
	require.NoError(t, store.Payments.Create(ctx, &model.Payment{Base: model.Base{ID: "pay2", CreatedAt: now}, PatientID: "p2", OwnerID: "u2", Amount: 5}))

	byPatient, err := store.Payments.List(ctx, &model.PaymentFilters{PatientID: "p1"})
	require.NoError(t, err)
	require.Len(t, byPatient, 1)

	crossOwner, err := store.Payments.List(ctx, &model.PaymentFilters{PatientID: "p1", OwnerID: "u2"})
	require.NoError(t, err)
	assert.Empty(t, crossOwner)

	pay.Status = "completed"
	require.NoError(t, store.Payments.Update(ctx, pay))
	got, err := store.Payments.Get(ctx, "pay1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)

	require.NoError(t, store.Payments.Delete(ctx, "pay1"))
	_, err = store.Payments.Get(ctx, "pay1")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, store.Payments.Delete(ctx, "pay1"), repository.ErrNotFound)
}

func TestVisitsList(t *testing.T) {
	_, client, store := setupTestStore(t)
	ctx := context.Background()

	seedVisit(t, client, &model.Visit{Base: model.Base{ID: "v1"}, PatientID: "p1", OwnerID: "u1"})
	seedVisit(t, client, &model.Visit{Base: model.Base{ID: "v2"}, PatientID: "p2", OwnerID: "u2"})

	mine, err := store.Visits.List(ctx, &model.VisitFilters{OwnerID: "u1"})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "v1", mine[0].ID)

	all, err := store.Visits.List(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = store.Visits.Get(ctx, "v9")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestUpsertRecords(t *testing.T) {
	_, _, store := setupTestStore(t)
	ctx := context.Background()
	p := newPatient("p1", "u1", "Ana", time.Now())

	rec := model.NewMedicalRecord("m1", p, nil, time.Now())
	rec.BloodType = "A+"
	require.NoError(t, store.Records.UpsertMedical(ctx, rec))
	rec.BloodType = "B-"
	require.NoError(t, store.Records.UpsertMedical(ctx, rec))

	got, err := store.Records.GetMedical(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "B-", got.BloodType)
}

func TestNewClient(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClient(context.Background(), config.RedisConfig{URL: "redis://" + mr.Addr() + "/0", PoolSize: 4})
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, NewStore(client, "clinic", nil).Health.Ping(context.Background()))

	_, err = NewClient(context.Background(), config.RedisConfig{URL: "not a url"})
	assert.Error(t, err)
}

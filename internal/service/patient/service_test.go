package patient

import (
	"context"
	"errors"
	"testing"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/clinic-api/internal/model"
	"github.com/jwalitptl/clinic-api/internal/repository"
	redisstore "github.com/jwalitptl/clinic-api/internal/repository/redis"
	apperrors "github.com/jwalitptl/clinic-api/pkg/errors"
)

var (
	userA = &model.Principal{ID: "user-a"}
	userB = &model.Principal{ID: "user-b"}
	admin = &model.Principal{ID: "admin-1", IsAdmin: true}
)

type publisherFunc func(ctx context.Context, eventType string, payload interface{}) error

func (f publisherFunc) Publish(ctx context.Context, eventType string, payload interface{}) error {
	return f(ctx, eventType, payload)
}

type recorder struct {
	events []string
}

func (r *recorder) Publish(_ context.Context, eventType string, _ interface{}) error {
	r.events = append(r.events, eventType)
	return nil
}

func newTestService(t *testing.T) (*Service, *repository.Store, *recorder) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := redisstore.NewStore(client, "test", nil)
	rec := &recorder{}
	return NewService(store, rec), store, rec
}

func strPtr(s string) *string { return &s }

func createFor(t *testing.T, s *Service, p *model.Principal, name string) *model.PatientDetails {
	t.Helper()
	created, err := s.CreatePatient(context.Background(), p, &model.CreatePatientRequest{Name: name, Phone: "555-0100", IDNumber: "ID-" + name})
	require.NoError(t, err)
	return created
}

func TestCreatePatientStampsOwner(t *testing.T) {
	s, _, rec := newTestService(t)

	created := createFor(t, s, userA, "Ana")
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "user-a", created.OwnerID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.Equal(t, created.CreatedAt, created.UpdatedAt)
	assert.Equal(t, []string{model.EventPatientCreate}, rec.events)

	got, err := s.GetPatient(context.Background(), userA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name)
	assert.Equal(t, "user-a", got.OwnerID)
	assert.Nil(t, got.Demographic)
	assert.Empty(t, got.Visits)
	assert.Empty(t, got.Payments)
}

func TestCreatePatientWithRecords(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()

	created, err := s.CreatePatient(ctx, userA, &model.CreatePatientRequest{
		Name:        "Ana",
		Demographic: &model.DemographicRequest{City: strPtr("Braga")},
		Medical:     &model.MedicalRequest{BloodType: strPtr("AB+")},
	})
	require.NoError(t, err)
	require.NotNil(t, created.Demographic)
	assert.Equal(t, created.ID, created.Demographic.PatientID)
	assert.Equal(t, "user-a", created.Medical.OwnerID)

	got, err := s.GetPatient(ctx, userA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Braga", got.Demographic.City)
	assert.Equal(t, "AB+", got.Medical.BloodType)
}

func TestCreatePatientRequiresPrincipal(t *testing.T) {
	s, _, _ := newTestService(t)

	_, err := s.CreatePatient(context.Background(), nil, &model.CreatePatientRequest{Name: "X"})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrUnauthorized))
}

func TestOwnershipEnforced(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	created := createFor(t, s, userA, "Ana")

	_, err := s.GetPatient(ctx, userB, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = s.UpdatePatient(ctx, userB, created.ID, &model.UpdatePatientRequest{Name: strPtr("Hijacked")})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	err = s.DeletePatient(ctx, userB, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = s.GetDemographic(ctx, userB, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	_, err = s.UpdateMedical(ctx, userB, created.ID, &model.MedicalRequest{})
	assert.True(t, apperrors.HasCode(err, apperrors.ErrForbidden))

	got, err := s.GetPatient(ctx, userA, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.Name, "denied update must not mutate")
}

func TestAdminBypassesOwnership(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	created := createFor(t, s, userA, "Ana")

	updated, err := s.UpdatePatient(ctx, admin, created.ID, &model.UpdatePatientRequest{Notes: strPtr("reviewed")})
	require.NoError(t, err)
	assert.Equal(t, "reviewed", updated.Notes)
	assert.Equal(t, "user-a", updated.OwnerID, "admin edits keep the owner")
	assert.False(t, updated.UpdatedAt.Before(updated.CreatedAt))

	require.NoError(t, s.DeletePatient(ctx, admin, created.ID))
	_, err = s.GetPatient(ctx, userA, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
}

func TestListFiltersByOwner(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	createFor(t, s, userA, "Ana")
	createFor(t, s, userA, "Alice")
	createFor(t, s, userB, "Bruno")

	mine, err := s.ListPatients(ctx, userA)
	require.NoError(t, err)
	assert.Len(t, mine, 2)
	for _, p := range mine {
		assert.Equal(t, "user-a", p.OwnerID)
	}

	all, err := s.ListPatients(ctx, admin)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	none, err := s.ListPatients(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestSearchPatients(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	createFor(t, s, userA, "Ana")
	createFor(t, s, userA, "Bruno")
	createFor(t, s, userB, "Anabela")

	byName, err := s.SearchPatients(ctx, userA, "an", "")
	require.NoError(t, err)
	require.Len(t, byName, 1)
	assert.Equal(t, "Ana", byName[0].Name)

	byAlias, err := s.SearchPatients(ctx, admin, "id-an", "idNumber")
	require.NoError(t, err)
	assert.Len(t, byAlias, 2)

	everything, err := s.SearchPatients(ctx, userA, "  ", "phone")
	require.NoError(t, err)
	assert.Len(t, everything, 2)

	_, err = s.SearchPatients(ctx, userA, "x", "email")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrBadRequest))
}

func TestNormalizeSearchField(t *testing.T) {
	cases := map[string]string{
		"":          model.SearchFieldName,
		"name":      model.SearchFieldName,
		"id":        model.SearchFieldID,
		"phone":     model.SearchFieldPhone,
		"id_number": model.SearchFieldIDNumber,
		"idNumber":  model.SearchFieldIDNumber,
	}
	for in, want := range cases {
		got, err := NormalizeSearchField(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := NormalizeSearchField("address")
	assert.Error(t, err)
}

func TestDeleteMissingPatient(t *testing.T) {
	s, _, _ := newTestService(t)

	err := s.DeletePatient(context.Background(), admin, "does-not-exist")
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))
	assert.Equal(t, "Patient not found", apperrors.As(err).Message)
}

func TestDeletePatientRemovesRecords(t *testing.T) {
	s, store, rec := newTestService(t)
	ctx := context.Background()
	created := createFor(t, s, userA, "Ana")
	_, err := s.UpdateMedical(ctx, userA, created.ID, &model.MedicalRequest{Allergies: strPtr("penicillin")})
	require.NoError(t, err)

	require.NoError(t, s.DeletePatient(ctx, userA, created.ID))

	_, err = store.Records.GetMedical(ctx, created.ID)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, []string{model.EventPatientCreate, model.EventPatientDelete}, rec.events)
}

func TestRecordUpsert(t *testing.T) {
	s, _, _ := newTestService(t)
	ctx := context.Background()
	created := createFor(t, s, userA, "Ana")

	_, err := s.GetDemographic(ctx, userA, created.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrNotFound))

	first, err := s.UpdateDemographic(ctx, userA, created.ID, &model.DemographicRequest{City: strPtr("Faro"), Occupation: strPtr("nurse")})
	require.NoError(t, err)
	assert.Equal(t, "user-a", first.OwnerID)

	second, err := s.UpdateDemographic(ctx, userA, created.ID, &model.DemographicRequest{City: strPtr("Évora")})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Évora", second.City)
	assert.Equal(t, "nurse", second.Occupation)

	got, err := s.GetDemographic(ctx, admin, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Évora", got.City)
}

func TestPublishFailureDoesNotFailRequest(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	s := NewService(redisstore.NewStore(client, "test", nil), publisherFunc(func(context.Context, string, interface{}) error {
		return errors.New("broker down")
	}))

	created, err := s.CreatePatient(context.Background(), userA, &model.CreatePatientRequest{Name: "Ana"})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
}

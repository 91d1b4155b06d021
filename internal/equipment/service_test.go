package equipment

import (
	"context"
	"testing"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/dbtest"
)

func newService(t *testing.T) *Service {
	t.Helper()
	conn := dbtest.Open(t)
	return NewService(conn, NewRegister(nil))
}

func createRequest(serial string) CreateEquipmentRequest {
	loc := "Lab " + gofakeit.LetterN(2)
	return CreateEquipmentRequest{
		SerialNumber: serial,
		Brand:        gofakeit.Company(),
		Model:        gofakeit.Word(),
		Type:         " Notebook ",
		Location:     &loc,
	}
}

func TestService_Create(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	acquired := "2025-04-01"
	in := createRequest("sn-001")
	in.AcquiredOn = &acquired

	res, err := s.Create(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, "SN-001", res.SerialNumber)
	assert.Equal(t, "notebook", res.Type)
	assert.Equal(t, Available, res.Availability)
	assert.True(t, res.CanBeBorrow)
	require.NotNil(t, res.AcquiredOn)
	assert.Equal(t, acquired, *res.AcquiredOn)

	// 全角でも同じシリアル扱い
	_, err = s.Create(ctx, createRequest("ｓｎ－００１"))
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), err)
}

func TestService_CreateValidation(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	in := createRequest("SN-9")
	in.Brand = "  "
	_, err := s.Create(ctx, in)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	bad := "01/04/2025"
	in = createRequest("SN-9")
	in.AcquiredOn = &bad
	_, err = s.Create(ctx, in)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))
}

func TestService_ChangeAvailability(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	res, err := s.Create(ctx, createRequest("SN-CA"))
	require.NoError(t, err)

	res, err = s.ChangeAvailability(ctx, res.ID, Maintenance)
	require.NoError(t, err)
	assert.Equal(t, Maintenance, res.Availability)
	assert.False(t, res.CanBeBorrow)

	res, err = s.ChangeAvailability(ctx, res.ID, Available)
	require.NoError(t, err)
	assert.Equal(t, Available, res.Availability)

	// booking states are not reachable administratively
	_, err = s.ChangeAvailability(ctx, res.ID, Loaned)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	require.NoError(t, s.Register().Transition(ctx, s.db, res.ID, Loaned, Available))
	_, err = s.ChangeAvailability(ctx, res.ID, Maintenance)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

func TestService_ListAndDelete(t *testing.T) {
	s := newService(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := s.Create(ctx, createRequest("SN-L"+gofakeit.DigitN(6)))
		require.NoError(t, err)
	}
	last, err := s.Create(ctx, createRequest("SN-LAST"))
	require.NoError(t, err)
	_, err = s.ChangeAvailability(ctx, last.ID, Inactive)
	require.NoError(t, err)

	out, err := s.List(ctx, Filter{}, Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(4), out.Total)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 2, out.NextOffset)

	inactive := Inactive
	out, err = s.List(ctx, Filter{Availability: &inactive}, Page{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	assert.Equal(t, "SN-LAST", out.Items[0].SerialNumber)
	assert.Equal(t, 0, out.NextOffset)

	require.NoError(t, s.Delete(ctx, last.ID))
	assert.True(t, apperr.IsCode(s.Delete(ctx, last.ID), apperr.CodeNotFound))
}

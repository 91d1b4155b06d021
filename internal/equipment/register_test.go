package equipment

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/dbtest"
)

func TestRegister_TransitionCAS(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	reg := NewRegister(clock.Real())
	id := dbtest.SeedEquipment(t, conn, "available")

	require.NoError(t, reg.Transition(ctx, conn, id, Loaned, Borrowable...))
	assert.Equal(t, "loaned", dbtest.Availability(t, conn, id))

	// 二回目は CAS に負ける
	err := reg.Transition(ctx, conn, id, Loaned, Borrowable...)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), err)

	u, err := reg.Get(ctx, conn, id)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), u.Revision)
}

func TestRegister_TryReserveBumpsRevisionOnly(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	reg := NewRegister(nil)
	id := dbtest.SeedEquipment(t, conn, "reserved")

	require.NoError(t, reg.TryReserve(ctx, conn, id, Borrowable...))
	u, err := reg.Get(ctx, conn, id)
	require.NoError(t, err)
	assert.Equal(t, Reserved, u.Availability)
	assert.Equal(t, uint64(1), u.Revision)

	blocked := dbtest.SeedEquipment(t, conn, "maintenance")
	err = reg.TryReserve(ctx, conn, blocked, Borrowable...)
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))

	err = reg.TryReserve(ctx, conn, 9999, Borrowable...)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))

	err = reg.TryReserve(ctx, conn, id)
	assert.True(t, apperr.IsCode(err, apperr.CodeInternal))
}

func TestRegister_ReleaseHonoursOutstandingReservations(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	reg := NewRegister(nil)
	id := dbtest.SeedEquipment(t, conn, "loaned")

	to, err := reg.Release(ctx, conn, id, Loaned)
	require.NoError(t, err)
	assert.Equal(t, Available, to)

	require.NoError(t, reg.Transition(ctx, conn, id, Loaned, Available))
	seedReservation(t, conn, id, "active")

	to, err = reg.Release(ctx, conn, id, Loaned)
	require.NoError(t, err)
	assert.Equal(t, Reserved, to)
	assert.Equal(t, "reserved", dbtest.Availability(t, conn, id))
}

func TestRegister_SetStatus(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	reg := NewRegister(nil)
	id := dbtest.SeedEquipment(t, conn, "available")

	u, err := reg.SetStatus(ctx, conn, id, Inactive)
	require.NoError(t, err)
	assert.Equal(t, Inactive, u.Availability)

	_, err = reg.SetStatus(ctx, conn, id, Availability("lost"))
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	_, err = reg.SetStatus(ctx, conn, 404, Available)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

func TestRegister_RollbackLeavesUnitAlone(t *testing.T) {
	conn := dbtest.Open(t)
	ctx := context.Background()
	reg := NewRegister(nil)
	id := dbtest.SeedEquipment(t, conn, "available")

	err := db.RunInTx(ctx, conn, nil, func(ctx context.Context, tx db.DBTX) error {
		if err := reg.Transition(ctx, tx, id, Loaned, Borrowable...); err != nil {
			return err
		}
		return apperr.Conflict("later step failed")
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
	assert.Equal(t, "available", dbtest.Availability(t, conn, id))
}

func seedReservation(t *testing.T, conn db.DBTX, equipmentID uint64, status string) {
	t.Helper()
	now := time.Now().UTC()
	day := clock.DateOf(now, time.UTC)
	_, err := conn.ExecContext(context.Background(), `
		INSERT INTO reservations (ulid, equipment_id, requester_id, created_by, status, reservation_date,
		                          expected_pickup_date, purpose, created_at, updated_at)
		VALUES (?, ?, 'lec-1', 'lec-1', ?, ?, ?, 'lab', ?, ?)`,
		"R"+now.Format("150405.000000000"), equipmentID, status, day, day.AddDate(0, 0, 3), now, now)
	require.NoError(t, err)
}

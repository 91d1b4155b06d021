package loans

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/equipment"
	"equipahub-backend/internal/events"
	"equipahub-backend/internal/platform/apperr"
	"equipahub-backend/internal/platform/auth"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/db"
	"equipahub-backend/internal/platform/dbtest"
)

var t0 = time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)

type fixture struct {
	conn  *sql.DB
	clock *clock.Fixed
	rec   *events.Recorder
	svc   *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	clk := clock.NewFixed(t0)
	rec := &events.Recorder{}
	svc := NewService(conn, equipment.NewRegister(clk), WithClock(clk), WithEmitter(rec))
	return &fixture{conn: conn, clock: clk, rec: rec, svc: svc}
}

func lecturer() auth.Actor   { return auth.Actor{ID: "lec-" + gofakeit.LetterN(6), Role: auth.RoleLecturer} }
func technician() auth.Actor { return auth.Actor{ID: "tech-" + gofakeit.LetterN(6), Role: auth.RoleTechnician} }

func createIn(equipmentID uint64, due string) CreateLoanRequest {
	return CreateLoanRequest{
		EquipmentID:        equipmentID,
		ExpectedReturnDate: due,
		Purpose:            gofakeit.Sentence(4),
	}
}

func TestCreate_PendingPickupLeavesUnitAlone(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")
	actor := lecturer()

	res, err := f.svc.Create(ctx, actor, createIn(unit, "2026-10-20"))
	require.NoError(t, err)

	assert.Equal(t, PendingPickup, res.Status)
	assert.Equal(t, actor.ID, res.BorrowerID)
	assert.Equal(t, "2026-10-16", res.StartDate)
	assert.False(t, res.PickupConfirmed)
	assert.Len(t, res.ULID, 26)
	assert.Equal(t, "available", dbtest.Availability(t, f.conn, unit))
	assert.Equal(t, []events.Type{events.LoanCreated}, f.rec.Types())
}

func TestCreate_Rejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	actor := lecturer()

	maint := dbtest.SeedEquipment(t, f.conn, "maintenance")
	_, err := f.svc.Create(ctx, actor, createIn(maint, "2026-10-20"))
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), err)

	unit := dbtest.SeedEquipment(t, f.conn, "available")
	_, err = f.svc.Create(ctx, actor, createIn(unit, "2026-10-15"))
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidReturnDate), err)

	_, err = f.svc.Create(ctx, actor, createIn(404, "2026-10-20"))
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound), err)

	in := createIn(unit, "2026-10-20")
	in.Purpose = " "
	_, err = f.svc.Create(ctx, actor, in)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	bad := "25:99"
	in = createIn(unit, "2026-10-20")
	in.ExpectedReturnTime = &bad
	_, err = f.svc.Create(ctx, actor, in)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidArgument))

	assert.Empty(t, f.rec.Events())
	assert.Equal(t, 0, dbtest.Count(t, f.conn, `SELECT COUNT(*) FROM loans`))
}

func TestCreate_SecondOpenLoanConflicts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")

	_, err := f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-21"))
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), err)
}

func TestCreate_ConcurrentRequestsOneWins(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
		}(i)
	}
	wg.Wait()

	var ok, conflicts int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.IsCode(err, apperr.CodeConflict):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, dbtest.Count(t, f.conn, `SELECT COUNT(*) FROM loans WHERE equipment_id = ?`, unit))
}

func TestConfirmPickup(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")
	tech := technician()

	loan, err := f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
	require.NoError(t, err)

	res, err := f.svc.ConfirmPickup(ctx, loan.ID, tech)
	require.NoError(t, err)
	assert.Equal(t, Active, res.Status)
	assert.True(t, res.PickupConfirmed)
	require.NotNil(t, res.PickupTechnicianID)
	assert.Equal(t, tech.ID, *res.PickupTechnicianID)
	assert.Equal(t, "loaned", dbtest.Availability(t, f.conn, unit))

	_, err = f.svc.ConfirmPickup(ctx, loan.ID, tech)
	assert.True(t, apperr.IsCode(err, apperr.CodeAlreadyConfirmed), err)
	assert.Equal(t, "loaned", dbtest.Availability(t, f.conn, unit))

	assert.Equal(t, []events.Type{events.LoanCreated, events.LoanPickupConfirmed}, f.rec.Types())
}

func TestConfirmPickup_UnitWentToMaintenance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")

	loan, err := f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
	require.NoError(t, err)
	_, err = f.conn.Exec(`UPDATE equipment SET availability = 'maintenance' WHERE id = ?`, unit)
	require.NoError(t, err)

	_, err = f.svc.ConfirmPickup(ctx, loan.ID, technician())
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict), err)

	got, err := f.svc.Get(ctx, loan.ID)
	require.NoError(t, err)
	assert.Equal(t, PendingPickup, got.Status)
	assert.False(t, got.PickupConfirmed)
}

func TestReturn(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")
	tech := technician()

	loan, err := f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
	require.NoError(t, err)

	_, err = f.svc.Return(ctx, loan.ID, tech, ReturnRequest{})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState), "pending loans cannot be returned")

	_, err = f.svc.ConfirmPickup(ctx, loan.ID, tech)
	require.NoError(t, err)

	f.clock.Advance(48 * time.Hour)
	notes := "returned with charger"
	res, err := f.svc.Return(ctx, loan.ID, tech, ReturnRequest{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
	require.NotNil(t, res.ActualReturnDate)
	assert.Equal(t, "2026-10-18", *res.ActualReturnDate)
	require.NotNil(t, res.Notes)
	assert.Equal(t, notes, *res.Notes)
	assert.Equal(t, "available", dbtest.Availability(t, f.conn, unit))

	_, err = f.svc.Return(ctx, loan.ID, tech, ReturnRequest{})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestReturn_RejectsDateBeforeStart(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")
	tech := technician()

	loan, err := f.svc.Create(ctx, lecturer(), createIn(unit, "2026-10-20"))
	require.NoError(t, err)
	_, err = f.svc.ConfirmPickup(ctx, loan.ID, tech)
	require.NoError(t, err)

	early := "2026-10-01"
	_, err = f.svc.Return(ctx, loan.ID, tech, ReturnRequest{ReturnDate: &early})
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidReturnDate))
	assert.Equal(t, "loaned", dbtest.Availability(t, f.conn, unit))
}

func TestCancel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	tech := technician()

	pendingUnit := dbtest.SeedEquipment(t, f.conn, "reserved")
	pending, err := f.svc.Create(ctx, lecturer(), createIn(pendingUnit, "2026-10-20"))
	require.NoError(t, err)
	res, err := f.svc.Cancel(ctx, pending.ID, tech)
	require.NoError(t, err)
	assert.Equal(t, Cancelled, res.Status)
	assert.Equal(t, "reserved", dbtest.Availability(t, f.conn, pendingUnit), "a pending loan never held the unit")

	activeUnit := dbtest.SeedEquipment(t, f.conn, "available")
	active, err := f.svc.Create(ctx, lecturer(), createIn(activeUnit, "2026-10-20"))
	require.NoError(t, err)
	_, err = f.svc.ConfirmPickup(ctx, active.ID, tech)
	require.NoError(t, err)
	_, err = f.svc.Cancel(ctx, active.ID, tech)
	require.NoError(t, err)
	assert.Equal(t, "available", dbtest.Availability(t, f.conn, activeUnit))

	_, err = f.svc.Cancel(ctx, active.ID, tech)
	assert.True(t, apperr.IsCode(err, apperr.CodeInvalidState))
}

func TestOverdueIsDerivedOnRead(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "available")
	tech := technician()

	at := "17:00"
	in := createIn(unit, "2026-10-16")
	in.ExpectedReturnTime = &at
	loan, err := f.svc.Create(ctx, lecturer(), in)
	require.NoError(t, err)
	_, err = f.svc.ConfirmPickup(ctx, loan.ID, tech)
	require.NoError(t, err)

	f.clock.Set(time.Date(2026, 10, 16, 17, 0, 1, 0, time.UTC))
	res, err := f.svc.GetByKey(ctx, loan.ULID)
	require.NoError(t, err)
	assert.Equal(t, Overdue, res.Status)
	assert.True(t, res.IsOverdue)

	var stored string
	require.NoError(t, f.conn.QueryRow(`SELECT status FROM loans WHERE id = ?`, loan.ID).Scan(&stored))
	assert.Equal(t, "active", stored, "reads never write")

	changed, err := f.svc.MarkOverdue(ctx, loan.ID)
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = f.svc.MarkOverdue(ctx, loan.ID)
	require.NoError(t, err)
	assert.False(t, changed)

	// overdue loans can still be returned
	res, err = f.svc.Return(ctx, loan.ID, tech, ReturnRequest{})
	require.NoError(t, err)
	assert.Equal(t, Completed, res.Status)
}

func TestCreateConfirmedTx(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	unit := dbtest.SeedEquipment(t, f.conn, "reserved")
	tech := technician()

	var serial string
	var loan *Loan
	err := db.RunInTx(ctx, f.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		var err error
		loan, serial, err = f.svc.CreateConfirmedTx(ctx, tx, HandOver{
			EquipmentID:        unit,
			BorrowerID:         "lec-1",
			TechnicianID:       tech.ID,
			StartDate:          clock.DateOf(t0, time.UTC),
			ExpectedReturnDate: clock.DateOf(t0, time.UTC).AddDate(0, 0, 7),
			Purpose:            "field trip",
		})
		return err
	})
	require.NoError(t, err)
	assert.NotEmpty(t, serial)
	assert.Equal(t, Active, loan.Status)
	assert.True(t, loan.PickupConfirmed)
	assert.Equal(t, "loaned", dbtest.Availability(t, f.conn, unit))

	err = db.RunInTx(ctx, f.conn, nil, func(ctx context.Context, tx db.DBTX) error {
		_, _, err := f.svc.CreateConfirmedTx(ctx, tx, HandOver{
			EquipmentID:        unit,
			BorrowerID:         "lec-2",
			StartDate:          clock.DateOf(t0, time.UTC),
			ExpectedReturnDate: clock.DateOf(t0, time.UTC),
			Purpose:            "again",
		})
		return err
	})
	assert.True(t, apperr.IsCode(err, apperr.CodeConflict))
}

func TestList(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	borrower := lecturer()

	for i := 0; i < 3; i++ {
		unit := dbtest.SeedEquipment(t, f.conn, "available")
		_, err := f.svc.Create(ctx, borrower, createIn(unit, "2026-10-20"))
		require.NoError(t, err)
	}
	other := dbtest.SeedEquipment(t, f.conn, "available")
	_, err := f.svc.Create(ctx, lecturer(), createIn(other, "2026-10-20"))
	require.NoError(t, err)

	out, err := f.svc.List(ctx, Filter{BorrowerID: &borrower.ID}, Page{Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.Total)
	assert.Len(t, out.Items, 2)
	assert.Equal(t, 2, out.NextOffset)
}

package notifications

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"equipahub-backend/internal/events"
	"equipahub-backend/internal/platform/auth"
	"equipahub-backend/internal/platform/clock"
	"equipahub-backend/internal/platform/dbtest"
)

type staticDirectory struct {
	ids []string
	err error
}

func (d staticDirectory) Coordinators(context.Context) ([]string, error) { return d.ids, d.err }

func envelope(t *testing.T, typ events.Type, payload any) events.Envelope {
	t.Helper()
	e, err := events.New(typ, t0, "actor", 1, payload)
	require.NoError(t, err)
	return e
}

func TestMapper_LoanEventsGoToBorrower(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, nil, nil)
	ctx := context.Background()

	p := events.LoanPayload{LoanID: 12, SerialNumber: "SN-1", BorrowerID: "u-borrower", ExpectedReturnDate: "2026-10-20"}
	cases := []struct {
		typ      events.Type
		topic    Topic
		category Category
	}{
		{events.LoanCreated, TopicLoanCreated, Success},
		{events.LoanPickupConfirmed, TopicLoanPickupConfirmed, Info},
		{events.LoanReturned, TopicLoanReturned, Success},
		{events.LoanCancelled, TopicLoanCancelled, Warning},
	}
	for _, tc := range cases {
		require.NoError(t, m.Emit(ctx, envelope(t, tc.typ, p)))

		res, err := svc.ListForRecipient(ctx, "u-borrower", false, 1, 0)
		require.NoError(t, err)
		require.NotEmpty(t, res.Items, tc.typ)
		got := res.Items[0]
		assert.Equal(t, tc.topic, got.Topic, tc.typ)
		assert.Equal(t, tc.category, got.Category, tc.typ)
		assert.Equal(t, uint64(12), got.SubjectID)
		assert.Contains(t, got.Message, "SN-1")
	}
}

func TestMapper_ReservationExpiredNeedsAction(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Emit(ctx, envelope(t, events.ReservationExpired, events.ReservationPayload{
		ReservationID: 4, SerialNumber: "SN-9", RequesterID: "u-req", PickupDate: "2026-10-20",
	})))

	res, err := svc.ListForRecipient(ctx, "u-req", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, TopicReservationExpired, res.Items[0].Topic)
	assert.True(t, res.Items[0].ActionRequired)
}

func TestMapper_RequestCreatedFansOutToCoordinators(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(conn, WithClock(clock.NewFixed(t0)))
	c1 := dbtest.SeedAccount(t, conn, "coordinator")
	c2 := dbtest.SeedAccount(t, conn, "coordinator")
	lec := dbtest.SeedAccount(t, conn, "lecturer")
	m := NewMapper(svc, auth.NewStore(conn), nil)
	ctx := context.Background()

	require.NoError(t, m.Emit(ctx, envelope(t, events.RequestCreated, events.RequestPayload{
		RequestID: 3, RequesterID: lec, Quantity: 8,
	})))

	for _, id := range []string{c1, c2} {
		res, err := svc.ListForRecipient(ctx, id, false, 10, 0)
		require.NoError(t, err)
		require.Len(t, res.Items, 1, id)
		assert.Equal(t, TopicRequestCreated, res.Items[0].Topic)
		assert.True(t, res.Items[0].ActionRequired)
		assert.Contains(t, res.Items[0].Message, "8 units")
	}
	unread, err := svc.UnreadCount(ctx, lec)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestMapper_RequestApprovedNotifiesTechnician(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Emit(ctx, envelope(t, events.RequestApproved, events.RequestPayload{
		RequestID: 5, RequesterID: "u-req", TechnicianID: "u-tech", Quantity: 6,
	})))

	res, err := svc.ListForRecipient(ctx, "u-req", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Contains(t, res.Items[0].Message, "Reason: Approved")

	res, err = svc.ListForRecipient(ctx, "u-tech", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.True(t, res.Items[0].ActionRequired)
}

func TestMapper_PickupMentionsSkipped(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, nil, nil)
	ctx := context.Background()

	require.NoError(t, m.Emit(ctx, envelope(t, events.RequestPickupConfirmed, events.RequestPayload{
		RequestID: 5, RequesterID: "u-req", Quantity: 8, LoansCreated: 7, Skipped: 1,
	})))

	res, err := svc.ListForRecipient(ctx, "u-req", false, 10, 0)
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Contains(t, res.Items[0].Message, "7 loan(s) created")
	assert.Contains(t, res.Items[0].Message, "1 unit(s) could not be handed over")
}

func TestMapper_DirectoryError(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, staticDirectory{err: errors.New("boom")}, nil)

	err := m.Emit(context.Background(), envelope(t, events.RequestCreated, events.RequestPayload{RequestID: 1, Quantity: 5}))
	assert.ErrorContains(t, err, "boom")
}

func TestMapper_UnknownEventIgnored(t *testing.T) {
	svc, _ := newService(t)
	m := NewMapper(svc, staticDirectory{}, nil)

	assert.NoError(t, m.Emit(context.Background(), envelope(t, events.Type("other.thing"), struct{}{})))
}

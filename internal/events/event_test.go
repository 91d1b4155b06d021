package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublish_BuildsEnvelope(t *testing.T) {
	rec := &Recorder{}
	at := time.Date(2026, 10, 16, 9, 0, 0, 0, time.FixedZone("JST", 9*3600))

	err := Publish(context.Background(), rec, ReservationConverted, at, "tech-1", 7, ReservationPayload{
		ReservationID: 7, EquipmentID: 3, SerialNumber: "SN-3", RequesterID: "lec-1", Status: "confirmed", LoanID: 12,
	})
	require.NoError(t, err)

	evs := rec.Events()
	require.Len(t, evs, 1)
	e := evs[0]
	assert.Equal(t, ReservationConverted, e.EventType)
	assert.Equal(t, Version, e.Version)
	assert.Equal(t, Producer, e.Producer)
	assert.Equal(t, "tech-1", e.ActorID)
	assert.Equal(t, uint64(7), e.SubjectID)
	assert.Equal(t, time.UTC, e.OccurredAt.Location())
	_, err = uuid.Parse(e.EventID)
	assert.NoError(t, err)

	var p ReservationPayload
	require.NoError(t, e.Decode(&p))
	assert.Equal(t, uint64(12), p.LoanID)
	assert.Equal(t, []Type{ReservationConverted}, rec.Types())
}

func TestPublish_NilEmitter(t *testing.T) {
	assert.NoError(t, Publish(context.Background(), nil, LoanCreated, time.Now(), "", 1, LoanPayload{}))
}

func TestMulti_DeliversToAllAndJoinsErrors(t *testing.T) {
	a, b := &Recorder{}, &Recorder{}
	boom := errors.New("broker down")
	failing := EmitterFunc(func(context.Context, Envelope) error { return boom })

	m := Multi{a, nil, failing, b}
	err := Publish(context.Background(), m, LoanReturned, time.Now(), "tech-1", 1, LoanPayload{LoanID: 1})

	assert.ErrorIs(t, err, boom)
	assert.Len(t, a.Events(), 1)
	assert.Len(t, b.Events(), 1)
}

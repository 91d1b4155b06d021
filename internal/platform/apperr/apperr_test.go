package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	assert.Equal(t, Code(""), CodeOf(nil))
	assert.Equal(t, CodeConflict, CodeOf(Conflict("unit %d taken", 3)))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))

	wrapped := fmt.Errorf("loans.Service.Create: %w", NoEquipmentSelected("none"))
	assert.Equal(t, CodeNoEquipmentSelected, CodeOf(wrapped))
	assert.True(t, IsCode(wrapped, CodeNoEquipmentSelected))
	assert.False(t, IsCode(nil, CodeNoEquipmentSelected))
}

func TestIs_MatchesByCode(t *testing.T) {
	err := fmt.Errorf("wrap: %w", Conflict("equipment SN-1 is loaned"))
	assert.ErrorIs(t, err, Conflict(""))
	assert.NotErrorIs(t, err, NotFound(""))
}

func TestToHTTPStatus(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{Invalid("x"), http.StatusBadRequest},
		{PermissionDenied("x"), http.StatusForbidden},
		{NotFound("x"), http.StatusNotFound},
		{Conflict("x"), http.StatusConflict},
		{InvalidState("x"), http.StatusConflict},
		{AlreadyConfirmed("x"), http.StatusConflict},
		{InvalidReturnDate("x"), http.StatusUnprocessableEntity},
		{InvalidPickupDate("x"), http.StatusUnprocessableEntity},
		{BelowBulkThreshold("x"), http.StatusUnprocessableEntity},
		{NoEquipmentSelected("x"), http.StatusUnprocessableEntity},
		{errors.New("db down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(CodeOf(tt.err)), func(t *testing.T) {
			assert.Equal(t, tt.want, ToHTTPStatus(tt.err))
		})
	}
}

func TestFromErr_HidesForeignErrors(t *testing.T) {
	body := FromErr(errors.New("dial tcp 10.0.0.3:3306: connection refused"))
	assert.Equal(t, CodeInternal, body.Error.Code)
	assert.Equal(t, "internal error", body.Error.Message)

	body = FromErr(InvalidPickupDate("pickup %s is not after %s", "2026-10-16", "2026-10-16"))
	assert.Equal(t, CodeInvalidPickupDate, body.Error.Code)
	assert.Equal(t, "pickup 2026-10-16 is not after 2026-10-16", body.Error.Message)
}

func TestNewf_KeepsPercentWithoutArgs(t *testing.T) {
	assert.Equal(t, "100% booked", Conflict("100% booked").Message)
}

package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFromErrorKeepsTypedErrors(t *testing.T) {
	wrapped := fmt.Errorf("coverage run cancelled: %w", Clone(ErrInputInvalid, "day type \"C\" must be A or B"))

	got := FromError(wrapped)
	assert.Equal(t, ErrInputInvalid.Code, got.Code)
	assert.Equal(t, http.StatusBadRequest, got.Status)
	assert.Contains(t, got.Message, "day type")
}

func TestFromErrorDefaultsToInternal(t *testing.T) {
	cause := errors.New("boom")
	got := FromError(cause)

	assert.Equal(t, ErrInternal.Code, got.Code)
	assert.ErrorIs(t, got, cause)
	assert.Nil(t, FromError(nil))
}

func TestCloneDoesNotMutateOriginal(t *testing.T) {
	clone := Clone(ErrConflict, "teacher already booked")

	assert.Equal(t, "teacher already booked", clone.Message)
	assert.Equal(t, "conflict", ErrConflict.Message)
	assert.Equal(t, ErrConflict.Message, Clone(ErrConflict, "").Message)
}

func TestErrorString(t *testing.T) {
	err := Wrap(errors.New("db down"), ErrInternal.Code, ErrInternal.Status, "failed to load roster")

	assert.Equal(t, "failed to load roster: db down", err.Error())
	assert.Equal(t, "<nil>", (*Error)(nil).Error())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("load plan: %w", Clone(ErrNotFound, "no committed coverage for date"))

	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConflict)
	assert.ErrorIs(t, Wrap(errors.New("x"), ErrConstraintConflict.Code, ErrConstraintConflict.Status, "double-booked"), ErrConstraintConflict)
}

package errorutil

import (
	"errors"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToDomainErrorPassthrough(t *testing.T) {
	original := NewForbidden("no")
	mapped := ToDomainError(original)
	require.NotNil(t, mapped)
	assert.Equal(t, "FORBIDDEN", mapped.Code)
	assert.Equal(t, http.StatusForbidden, mapped.HTTPStatus)
}

func TestToDomainErrorMapsNoRows(t *testing.T) {
	mapped := ToDomainError(pgx.ErrNoRows)
	require.NotNil(t, mapped)
	assert.Equal(t, "NOT_FOUND", mapped.Code)
}

func TestToDomainErrorWrapsUnknown(t *testing.T) {
	mapped := ToDomainError(errors.New("boom"))
	require.NotNil(t, mapped)
	assert.Equal(t, "INTERNAL_ERROR", mapped.Code)
	assert.Equal(t, http.StatusInternalServerError, mapped.HTTPStatus)
}

func TestInvalidTransitionDetails(t *testing.T) {
	err := NewInvalidTransition("closed", "sold")
	domainErr := ToDomainError(err)
	assert.Equal(t, "INVALID_TRANSITION", domainErr.Code)
	assert.Equal(t, http.StatusConflict, domainErr.HTTPStatus)
	assert.Equal(t, "closed", domainErr.Details["from"])
	assert.Equal(t, "sold", domainErr.Details["to"])
}

func TestIsCode(t *testing.T) {
	assert.True(t, IsCode(NewTicketNotOpen(), "TICKET_NOT_OPEN"))
	assert.False(t, IsCode(NewTicketNotOpen(), "CONFLICT"))
	assert.False(t, IsCode(nil, "CONFLICT"))
	assert.False(t, IsCode(errors.New("plain"), "CONFLICT"))
}

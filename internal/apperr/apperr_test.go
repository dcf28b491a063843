package apperr_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/heimgewebe/indexd/internal/apperr"
)

func TestCode_RecognizedSentinel(t *testing.T) {
	assert.Equal(t, "host_denied", apperr.Code(apperr.ErrHostDenied))
}

func TestCode_WrappedSentinel(t *testing.T) {
	wrapped := fmt.Errorf("ingest: %w", apperr.ErrMissingSourceRef)
	assert.Equal(t, "missing_source_ref", apperr.Code(wrapped))
}

func TestCode_UnrecognizedErrorFallsBackToInternal(t *testing.T) {
	assert.Equal(t, "internal", apperr.Code(fmt.Errorf("something else entirely")))
}

func TestHTTPStatus_MapsEachSentinel(t *testing.T) {
	assert.Equal(t, 422, apperr.HTTPStatus(apperr.ErrMissingSourceRef))
	assert.Equal(t, 400, apperr.HTTPStatus(apperr.ErrInvalidPayload))
	assert.Equal(t, 404, apperr.HTTPStatus(apperr.ErrDecisionNotFound))
	assert.Equal(t, 409, apperr.HTTPStatus(apperr.ErrOutcomeAlreadyRecorded))
	assert.Equal(t, 403, apperr.HTTPStatus(apperr.ErrHostDenied))
	assert.Equal(t, 500, apperr.HTTPStatus(fmt.Errorf("unknown")))
}

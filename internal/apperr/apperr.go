// Package apperr defines the sentinel error kinds shared across the index
// core and its HTTP surface. Callers should compare with errors.Is; the
// Code function recovers the stable string used in JSON error bodies.
package apperr

import "errors"

var (
	ErrMissingSourceRef       = errors.New("missing_source_ref")
	ErrInvalidPayload         = errors.New("invalid_payload")
	ErrInvalidFilter          = errors.New("invalid_filter")
	ErrDecisionNotFound       = errors.New("decision_not_found")
	ErrOutcomeAlreadyRecorded = errors.New("outcome_already_recorded")
	ErrHostDenied             = errors.New("host_denied")
	ErrConfigError            = errors.New("config_error")
	ErrInternal               = errors.New("internal")
)

var codes = map[error]string{
	ErrMissingSourceRef:       "missing_source_ref",
	ErrInvalidPayload:         "invalid_payload",
	ErrInvalidFilter:          "invalid_filter",
	ErrDecisionNotFound:       "decision_not_found",
	ErrOutcomeAlreadyRecorded: "outcome_already_recorded",
	ErrHostDenied:             "host_denied",
	ErrConfigError:            "config_error",
	ErrInternal:               "internal",
}

var statuses = map[error]int{
	ErrMissingSourceRef:       422,
	ErrInvalidPayload:         400,
	ErrInvalidFilter:          400,
	ErrDecisionNotFound:       404,
	ErrOutcomeAlreadyRecorded: 409,
	ErrHostDenied:             403,
	ErrConfigError:            500,
	ErrInternal:               500,
}

// Code returns the stable kind string for err, walking the wrap chain.
// Unrecognized errors report "internal".
func Code(err error) string {
	for sentinel, code := range codes {
		if errors.Is(err, sentinel) {
			return code
		}
	}
	return "internal"
}

// HTTPStatus returns the status code this repo's server layer maps err to.
func HTTPStatus(err error) int {
	for sentinel, status := range statuses {
		if errors.Is(err, sentinel) {
			return status
		}
	}
	return 500
}

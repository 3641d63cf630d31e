package api

import (
	"net/http"

	"github.com/jgirmay/cardstudy/pkg/study"
)

// ToAPIError translates a pkg/study error into the wire envelope. It is the
// one place that knows how the six domain error kinds map onto HTTP status
// codes: OwnershipError gets the exact same status and body as NotFound so
// existence is never disclosed to a caller who doesn't own the card.
func ToAPIError(err error) *APIError {
	kind, ok := study.KindOf(err)
	if !ok {
		return ErrInternalServer
	}

	switch kind {
	case study.KindValidation:
		return NewError(ErrCodeValidationFailed, err.Error(), http.StatusBadRequest)
	case study.KindNotFound, study.KindOwnership:
		return NewError(ErrCodeNotFound, MsgNotFound, http.StatusNotFound)
	case study.KindConflict:
		return NewError(ErrCodeConflict, err.Error(), http.StatusConflict)
	case study.KindStore:
		return NewError("STORE_UNAVAILABLE", "temporarily unable to reach the data store", http.StatusServiceUnavailable)
	default:
		return ErrInternalServer
	}
}

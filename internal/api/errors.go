package api

import (
	"errors"
	"net/http"

	"statcube/internal/domain"
)

// httpStatusFromDomainError maps domain errors to HTTP status codes.
// Binding failures are 422: the request was well-formed, the data was not.
func httpStatusFromDomainError(err error) int {
	var notFound *domain.NotFoundError
	var validation *domain.ValidationError
	var conflict *domain.ConflictError
	var transient *domain.TransientStorageError
	var failure *domain.BindingFailure

	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &failure):
		return http.StatusUnprocessableEntity
	case errors.As(err, &validation),
		errors.As(err, new(*domain.MissingParameterError)),
		errors.As(err, new(*domain.UnknownColumnError)),
		errors.As(err, new(*domain.DuplicateRoleError)),
		errors.As(err, new(*domain.IncompleteClassificationError)):
		return http.StatusBadRequest
	case errors.As(err, &conflict):
		return http.StatusConflict
	case errors.As(err, &transient):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON shape of every error response. Binding failures
// additionally carry the offending values from both sides of the join.
type errorBody struct {
	Error            string   `json:"error"`
	Code             string   `json:"code,omitempty"`
	TotalNonMatching int64    `json:"total_non_matching,omitempty"`
	FactValues       []string `json:"fact_values,omitempty"`
	ReferenceValues  []string `json:"reference_values,omitempty"`
}

func errorBodyFrom(err error) errorBody {
	body := errorBody{Error: err.Error()}
	var failure *domain.BindingFailure
	if errors.As(err, &failure) {
		body.Code = string(failure.Code)
		body.TotalNonMatching = failure.TotalNonMatching
		body.FactValues = failure.FactValues
		body.ReferenceValues = failure.ReferenceValues
	}
	return body
}

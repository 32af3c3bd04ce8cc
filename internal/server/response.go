package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/me/flowgraph/internal/batch"
	"github.com/me/flowgraph/internal/ordering"
	"github.com/me/flowgraph/internal/provenance"
	"github.com/me/flowgraph/pkg/model"
)

// requestID generates a unique request identifier.
func requestID() string {
	return "req_" + uuid.New().String()[:8]
}

// respondOK writes a success response with the standard envelope.
func respondOK(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusOK, reqID, data, nil, nil)
}

// respondCreated writes a 201 response with the standard envelope.
func respondCreated(w http.ResponseWriter, reqID string, data any) {
	respondJSON(w, http.StatusCreated, reqID, data, nil, nil)
}

// respondList writes a success response with pagination.
func respondList(w http.ResponseWriter, reqID string, data any, pg *model.Pagination) {
	respondJSON(w, http.StatusOK, reqID, data, pg, nil)
}

// respondError writes an error response with the standard envelope.
func respondError(w http.ResponseWriter, reqID string, status int, apiErr *model.APIError) {
	respondJSON(w, status, reqID, nil, nil, apiErr)
}

// respondErr maps an engine error to its API error and status.
func respondErr(w http.ResponseWriter, reqID string, err error) {
	status, apiErr := errorFor(err)
	respondError(w, reqID, status, apiErr)
}

// respondPartial writes the error for err with the data produced before it.
func respondPartial(w http.ResponseWriter, reqID string, data any, err error) {
	status, apiErr := errorFor(err)
	respondJSON(w, status, reqID, data, nil, apiErr)
}

func errorFor(err error) (int, *model.APIError) {
	var (
		apiErr    *model.APIError
		mismatch  *batch.MismatchedLengthError
		duplicate *model.DuplicateStepError
		unknown   *model.UnknownStepError
		cycle     *ordering.CycleError
		notLinked *provenance.JobNotConnectedError
		ambiguous *provenance.ProvenanceError
	)
	switch {
	case errors.As(err, &apiErr):
		return statusFor(apiErr.Code), apiErr
	case errors.As(err, &ambiguous):
		return http.StatusUnprocessableEntity, model.NewValidationError(err.Error())
	case errors.As(err, &mismatch), errors.As(err, &duplicate), errors.As(err, &unknown),
		errors.As(err, &cycle), errors.As(err, &notLinked):
		return http.StatusBadRequest, model.NewValidationError(err.Error())
	default:
		return http.StatusInternalServerError, &model.APIError{Code: model.ErrInternal, Message: err.Error()}
	}
}

func statusFor(code model.ErrorCode) int {
	switch code {
	case model.ErrValidation:
		return http.StatusBadRequest
	case model.ErrNotFound:
		return http.StatusNotFound
	case model.ErrConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func respondJSON(w http.ResponseWriter, status int, reqID string, data any, pg *model.Pagination, apiErr *model.APIError) {
	resp := model.Response{
		RequestID:  reqID,
		Timestamp:  time.Now().UTC(),
		Data:       data,
		Pagination: pg,
		Error:      apiErr,
	}
	if apiErr != nil {
		resp.Status = "error"
	} else {
		resp.Status = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(resp)
}

// readBody reads a bounded request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, *model.APIError) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, model.NewValidationError("Invalid request body: " + err.Error())
	}
	return data, nil
}

// decodeJSON decodes a bounded JSON request body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) *model.APIError {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v); err != nil {
		return model.NewValidationError("Invalid JSON body: " + err.Error())
	}
	return nil
}

// listOptions reads limit, offset and name from the query string.
func listOptions(r *http.Request) (model.ListOptions, *model.APIError) {
	opts := model.DefaultListOptions()
	q := r.URL.Query()
	for _, p := range []struct {
		name string
		dst  *int
	}{{"limit", &opts.Limit}, {"offset", &opts.Offset}} {
		v := q.Get(p.name)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return opts, model.NewValidationError("invalid query parameter",
				model.FieldError{Field: p.name, Message: fmt.Sprintf("%s must be an integer", p.name)})
		}
		*p.dst = n
	}
	opts.Name = q.Get("name")
	opts.Clamp()
	return opts, nil
}

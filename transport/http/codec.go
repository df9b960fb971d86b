package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/xraph/marketplace"
)

const maxBodyBytes = 1 << 20

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
	Field string `json:"field,omitempty"`
}

// requestError is a malformed request detected before the engine is called.
type requestError struct {
	msg string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(format string, args ...any) error {
	return &requestError{msg: fmt.Sprintf(format, args...)}
}

// statusOf maps an error to its HTTP status and kind label.
func statusOf(err error) (int, string) {
	var re *requestError
	switch {
	case errors.As(err, &re):
		return http.StatusBadRequest, "bad_request"
	case marketplace.IsValidation(err):
		return http.StatusBadRequest, "validation"
	case marketplace.IsNotFound(err):
		return http.StatusNotFound, "not_found"
	case marketplace.IsConflict(err):
		return http.StatusConflict, "conflict"
	case marketplace.IsUnauthorized(err):
		return http.StatusForbidden, "unauthorized"
	case marketplace.IsInvalidState(err):
		return http.StatusUnprocessableEntity, "invalid_state"
	case marketplace.IsInsufficientBalance(err):
		return http.StatusPaymentRequired, "insufficient_balance"
	default:
		return http.StatusInternalServerError, "internal"
	}
}

func writeError(w http.ResponseWriter, err error) {
	status, kind := statusOf(err)
	body := errorBody{Error: err.Error(), Kind: kind}
	var ve marketplace.ValidationError
	if errors.As(err, &ve) {
		body.Field = ve.Field
	}
	if status == http.StatusInternalServerError {
		body.Error = "internal error"
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// handle adapts an RPC-style function to an http.HandlerFunc answering
// 200. A nil result with no error answers 204.
func handle(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return respond(http.StatusOK, fn)
}

// create is handle for operations that create a record, answering 201.
func create(fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return respond(http.StatusCreated, fn)
}

func respond(status int, fn func(r *http.Request) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		v, err := fn(r)
		if err != nil {
			writeError(w, err)
			return
		}
		if v == nil {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, status, v)
	}
}

// decode reads a JSON body into v. Amount fields are unsigned integers, so
// negative or fractional values fail here.
func decode(r *http.Request, v any) error {
	return decodeBody(r, v, false)
}

// decodeOptional is decode for bodies that may be omitted entirely.
func decodeOptional(r *http.Request, v any) error {
	return decodeBody(r, v, true)
}

func decodeBody(r *http.Request, v any, optional bool) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	err := dec.Decode(v)
	if err == nil {
		return nil
	}

	var te *json.UnmarshalTypeError
	switch {
	case errors.Is(err, io.EOF):
		if optional {
			return nil
		}
		return badRequest("request body required")
	case errors.As(err, &te):
		return badRequest("field %s: expected %s", te.Field, te.Type)
	default:
		return badRequest("malformed body: %v", err)
	}
}

func pathUint(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		return 0, badRequest("%s must be a positive integer", name)
	}
	return n, nil
}

func queryUint(r *http.Request, name string) (uint64, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, badRequest("%s must be an unsigned integer", name)
	}
	return n, nil
}

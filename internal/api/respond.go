package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/safar/catalog-store/internal/domain"
	"github.com/safar/catalog-store/internal/store"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// ErrorResponse is the JSON body of every error reply.
type ErrorResponse struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		slog.Default().Error("encode response", slog.Any("error", err))
	}
}

// respondWithError maps err to a status code and logs server-side failures.
func (h *Handler) respondWithError(w http.ResponseWriter, r *http.Request, err error) {
	code := domain.ErrorCode(err)
	status := errorCodeToHTTPStatus(code)

	if status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("op", domain.ErrorOp(err)),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
	}

	respondWithJSON(w, status, ErrorResponse{
		Error:  domain.ErrorMessage(err),
		Code:   code,
		Fields: domain.GetValidationFields(err),
	})
}

func errorCodeToHTTPStatus(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.EFORBIDDEN:
		return http.StatusForbidden
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.ETRANSIENT:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a single JSON object into dst, rejecting unknown fields
// and trailing data.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return domain.Invalid("api.decode", "request body must not be empty")
		case errors.As(err, &syntaxErr):
			return domain.Invalid("api.decode", fmt.Sprintf("malformed JSON at position %d", syntaxErr.Offset))
		case errors.As(err, &typeErr):
			return domain.NewValidationError("api.decode", typeErr.Field, "has the wrong type")
		default:
			return domain.Invalid("api.decode", err.Error())
		}
	}

	if dec.More() {
		return domain.Invalid("api.decode", "request body must contain a single JSON object")
	}
	return nil
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError("api.pathID", name, "must be a positive integer")
	}
	return id, nil
}

// queryParams parses optional query values, collecting every failure into
// one validation error.
type queryParams struct {
	r   *http.Request
	err error
}

func newQueryParams(r *http.Request) *queryParams {
	return &queryParams{r: r}
}

func (q *queryParams) fail(name, msg string) {
	q.err = domain.AddFieldError(q.err, name, msg)
}

func (q *queryParams) String(name string) string {
	return q.r.URL.Query().Get(name)
}

func (q *queryParams) Int(name string) int {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		q.fail(name, "must be an integer")
		return 0
	}
	return v
}

func (q *queryParams) OptionalInt(name string) *int {
	if q.r.URL.Query().Get(name) == "" {
		return nil
	}
	v := q.Int(name)
	return &v
}

func (q *queryParams) OptionalInt64(name string) *int64 {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		q.fail(name, "must be an integer")
		return nil
	}
	return &v
}

func (q *queryParams) OptionalBool(name string) *bool {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		q.fail(name, "must be true or false")
		return nil
	}
	return &v
}

func (q *queryParams) OptionalDecimal(name string) *decimal.Decimal {
	raw := q.r.URL.Query().Get(name)
	if raw == "" {
		return nil
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		q.fail(name, "must be a decimal number")
		return nil
	}
	return &v
}

func (q *queryParams) Page() store.PageParams {
	return store.PageParams{Page: q.Int("page"), Limit: q.Int("limit")}
}

func (q *queryParams) Err() error {
	return q.err
}

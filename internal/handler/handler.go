// Package handler exposes the tracker services as a JSON HTTP API.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-retry"

	"github.com/dukerupert/cadence/internal/apperr"
	"github.com/dukerupert/cadence/internal/auth"
	"github.com/dukerupert/cadence/internal/metrics"
	"github.com/dukerupert/cadence/internal/websocket"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func init() {
	// Report JSON field names in validation messages.
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
}

// RetryPolicy bounds how often a handler re-runs an operation that lost an
// update race.
type RetryPolicy struct {
	MaxRetries uint64
	Base       time.Duration
}

// DefaultRetryPolicy retries three times starting at 10ms.
var DefaultRetryPolicy = RetryPolicy{MaxRetries: 3, Base: 10 * time.Millisecond}

// base carries what every API handler shares.
type base struct {
	hub    *websocket.Hub
	retry  RetryPolicy
	logger *slog.Logger
}

func (b base) publish(ctx context.Context, msg websocket.Message) {
	if b.hub != nil {
		b.hub.Publish(auth.UserID(ctx), msg)
	}
}

// fail writes the response for err. NotFound and Forbidden are
// indistinguishable to the client.
func (b base) fail(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case apperr.Hidden(err):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "not found"})
	case errors.Is(err, apperr.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: reason(err, apperr.ErrInvalidArgument)})
	case errors.Is(err, apperr.ErrInvalidState):
		writeJSON(w, http.StatusConflict, errorBody{Error: reason(err, apperr.ErrInvalidState), Code: "invalid_state"})
	case errors.Is(err, apperr.ErrAlreadyExists):
		writeJSON(w, http.StatusConflict, errorBody{Error: "already exists", Code: "already_exists"})
	case errors.Is(err, apperr.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Error: "concurrent update, try again", Code: "conflict"})
	default:
		b.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

// withRetry runs fn, retrying with exponential backoff while it reports a
// conflict. Other errors end the loop at once.
func withRetry[T any](ctx context.Context, p RetryPolicy, op string, fn func(context.Context) (T, error)) (T, error) {
	var out T
	backoff := retry.WithMaxRetries(p.MaxRetries, retry.NewExponential(p.Base))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		v, err := fn(ctx)
		if apperr.Retryable(err) {
			metrics.ConflictRetries.WithLabelValues(op).Inc()
			return retry.RetryableError(err)
		}
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	return out, err
}

type errorBody struct {
	Error  string   `json:"error"`
	Code   string   `json:"code,omitempty"`
	Fields []string `json:"fields,omitempty"`
}

// reason strips wrapping context and returns the text after the sentinel.
func reason(err, sentinel error) string {
	msg := err.Error()
	if i := strings.LastIndex(msg, sentinel.Error()+": "); i >= 0 {
		return msg[i+len(sentinel.Error())+2:]
	}
	return sentinel.Error()
}

// decode reads a JSON body into v and validates it. It writes the 400
// response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON"})
		return false
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s: %s", fieldPath(fe), fe.Tag()))
			}
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "validation failed", Fields: fields})
			return false
		}
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request"})
		return false
	}
	return true
}

// fieldPath drops the struct name from a validator namespace.
func fieldPath(fe validator.FieldError) string {
	_, path, ok := strings.Cut(fe.Namespace(), ".")
	if !ok {
		return fe.Field()
	}
	return path
}

func parseIDParam(r *http.Request) (int64, error) {
	return parsePathID(r, "id")
}

func parsePathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return id, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

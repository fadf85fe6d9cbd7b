package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/fastcrud/apiserver/internal/services"
	"github.com/fastcrud/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
)

const (
	maxEmailLength = 200
	maxPhoneLength = 15
	maxNameLength  = 80
	maxBodyBytes   = 1 << 20

	msgInvalidInput   = "invalid input"
	msgInternal       = "unexpected error, please try again later"
	msgBadCredentials = "incorrect email or password"
	msgNotAuth        = "not authenticated"
	msgForbidden      = "not allowed to act on another user"
	msgUserNotFound   = "user not found"
)

type contextKey string

const contextUserKey contextKey = "user"

// Response is the envelope wrapped around every JSON body except the
// login token.
type Response struct {
	Data       any    `json:"data"`
	Message    string `json:"message"`
	StatusCode int    `json:"status_code"`
	Error      string `json:"error,omitempty"`
}

// FieldError describes one rejected input field.
type FieldError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func withUser(ctx context.Context, user types.User) context.Context {
	return context.WithValue(ctx, contextUserKey, user)
}

func userFromContext(ctx context.Context) (types.User, bool) {
	user, ok := ctx.Value(contextUserKey).(types.User)
	return user, ok && user.ID != uuid.Nil
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeData(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{Data: data, Message: message, StatusCode: status})
}

func writeError(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{
		Data:       data,
		Message:    message,
		StatusCode: status,
		Error:      errorName(status),
	})
}

func errorName(status int) string {
	return strings.ReplaceAll(http.StatusText(status), " ", "")
}

// writeServiceError maps the service error taxonomy onto HTTP responses.
// Unexpected errors are logged with the request id and hidden from the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	var (
		validation *services.ValidationError
		conflict   *services.ConflictError
	)

	switch {
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, msgInvalidInput, []FieldError{{Field: validation.Field, Reason: validation.Reason}})
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error(), nil)
	case errors.Is(err, services.ErrAuthenticationFailed):
		writeError(w, http.StatusUnauthorized, msgBadCredentials, nil)
	case errors.Is(err, services.ErrNotAuthenticated):
		writeUnauthenticated(w)
	case errors.Is(err, services.ErrPermissionDenied):
		writeError(w, http.StatusForbidden, msgForbidden, nil)
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, msgUserNotFound, nil)
	default:
		logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err,
		)
		writeError(w, http.StatusInternalServerError, msgInternal, nil)
	}
}

func writeUnauthenticated(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	writeError(w, http.StatusUnauthorized, msgNotAuth, nil)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode body: %w", err)
	}
	return nil
}

func parseUserID(r *http.Request) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, "userID"))
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, errors.New("invalid user id")
	}
	return id, nil
}

type profileFields struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

func (p *profileFields) normalize() {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	p.Email = strings.TrimSpace(p.Email)
	p.Phone = strings.TrimSpace(p.Phone)
}

// validate checks the shape of the profile fields. Uniqueness is left to
// the services.
func (p profileFields) validate() []FieldError {
	var errs []FieldError
	errs = appendName(errs, "first_name", p.FirstName)
	errs = appendName(errs, "last_name", p.LastName)

	switch {
	case p.Email == "":
		errs = append(errs, FieldError{Field: "email", Reason: "is required"})
	case len(p.Email) > maxEmailLength:
		errs = append(errs, FieldError{Field: "email", Reason: fmt.Sprintf("must be at most %d characters", maxEmailLength)})
	case !validEmail(p.Email):
		errs = append(errs, FieldError{Field: "email", Reason: "must be a valid email address"})
	}

	switch {
	case p.Phone == "":
		errs = append(errs, FieldError{Field: "phone", Reason: "is required"})
	case len(p.Phone) > maxPhoneLength:
		errs = append(errs, FieldError{Field: "phone", Reason: fmt.Sprintf("must be at most %d characters", maxPhoneLength)})
	}
	return errs
}

func appendName(errs []FieldError, field, value string) []FieldError {
	switch {
	case value == "":
		return append(errs, FieldError{Field: field, Reason: "is required"})
	case len([]rune(value)) > maxNameLength:
		return append(errs, FieldError{Field: field, Reason: fmt.Sprintf("must be at most %d characters", maxNameLength)})
	}
	return errs
}

// validEmail accepts a bare addr-spec; display names and angle brackets
// are rejected.
func validEmail(email string) bool {
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Name == "" && addr.Address == email && strings.Contains(email[strings.LastIndex(email, "@")+1:], ".")
}

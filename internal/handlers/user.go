package handlers

import (
	"log/slog"
	"net/http"

	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/fastcrud/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// UserHandler provides registration and self-service account endpoints.
type UserHandler struct {
	users  *services.UserService
	logger *slog.Logger
}

func NewUserHandler(users *services.UserService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &UserHandler{users: users, logger: logger}
}

// UserRouter registers user routes. Everything below /{userID} requires
// authentication and is restricted to the caller's own account.
func UserRouter(r chi.Router, handler *UserHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Post("/", handler.Register)
	r.Route("/{userID}", func(r chi.Router) {
		r.Use(authMiddleware)
		r.Get("/", handler.GetUser)
		r.Put("/", handler.UpdateUser)
		r.Delete("/", handler.DeleteUser)
	})
}

func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput, nil)
		return
	}

	fields := req.profile()
	fields.normalize()
	errs := fields.validate()
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Reason: "is required"})
	}
	if len(errs) > 0 {
		writeError(w, http.StatusBadRequest, msgInvalidInput, errs)
		return
	}

	user, err := h.users.Register(r.Context(), services.RegisterInput{
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeData(w, http.StatusCreated, "user created", user.Response())
}

func (h *UserHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	user, err := h.users.Get(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "user found", user.Response())
}

func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	var req UpdateUserRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput, nil)
		return
	}
	fields := req.profile()
	fields.normalize()
	if errs := fields.validate(); len(errs) > 0 {
		writeError(w, http.StatusBadRequest, msgInvalidInput, errs)
		return
	}

	user, err := h.users.Update(r.Context(), id, services.UpdateInput{
		FirstName: fields.FirstName,
		LastName:  fields.LastName,
		Email:     fields.Email,
		Phone:     fields.Phone,
		Password:  req.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeData(w, http.StatusOK, "user updated", user.Response())
}

func (h *UserHandler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := h.authorize(w, r)
	if !ok {
		return
	}

	if err := h.users.Delete(r.Context(), id); err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// authorize parses the path id and checks it against the session user.
func (h *UserHandler) authorize(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	actor, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return uuid.Nil, false
	}

	target, err := parseUserID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil)
		return uuid.Nil, false
	}

	if err := services.RequireSelf(actor, target); err != nil {
		writeServiceError(w, r, h.logger, err)
		return uuid.Nil, false
	}
	return target, true
}

type RegisterRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
}

func (r RegisterRequest) profile() profileFields {
	return profileFields{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Phone: r.Phone}
}

// UpdateUserRequest replaces the profile. An empty password keeps the
// current one.
type UpdateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password,omitempty"`
}

func (r UpdateUserRequest) profile() profileFields {
	return profileFields{FirstName: r.FirstName, LastName: r.LastName, Email: r.Email, Phone: r.Phone}
}

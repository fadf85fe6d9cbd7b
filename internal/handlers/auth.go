package handlers

import (
	"errors"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/fastcrud/apiserver/internal/logging"
	"github.com/fastcrud/apiserver/internal/services"
	"github.com/go-chi/chi/v5"
)

// AuthHandler provides login and session endpoints.
type AuthHandler struct {
	auth   *services.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *services.AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = logging.Nop()
	}
	return &AuthHandler{auth: auth, logger: logger}
}

// AuthRouter registers auth routes on the given router.
func AuthRouter(r chi.Router, handler *AuthHandler) {
	r.Post("/login", handler.Login)
	r.With(handler.RequireAuth).Get("/me", handler.Me)
}

// RequireAuth resolves the bearer token into a user and stores it in the
// request context.
func (h *AuthHandler) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, err := bearerToken(r)
		if err != nil {
			writeUnauthenticated(w)
			return
		}

		user, err := h.auth.ResolveSession(r.Context(), token)
		if err != nil {
			if errors.Is(err, services.ErrNotAuthenticated) {
				h.logger.DebugContext(r.Context(), "session rejected", "path", r.URL.Path)
			}
			writeServiceError(w, r, h.logger, err)
			return
		}

		next.ServeHTTP(w, r.WithContext(withUser(r.Context(), user)))
	})
}

// Login accepts an OAuth2 password form (username carries the email) or a
// JSON body with email and password.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	req, err := readLoginRequest(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInput, nil)
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	var errs []FieldError
	if req.Email == "" {
		errs = append(errs, FieldError{Field: "email", Reason: "is required"})
	}
	if req.Password == "" {
		errs = append(errs, FieldError{Field: "password", Reason: "is required"})
	}
	if len(errs) > 0 {
		writeError(w, http.StatusBadRequest, msgInvalidInput, errs)
		return
	}

	token, err := h.auth.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, LoginResponse{
		AccessToken: token.AccessToken,
		TokenType:   token.TokenType,
	})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := userFromContext(r.Context())
	if !ok {
		writeUnauthenticated(w)
		return
	}
	writeData(w, http.StatusOK, "user found", user.Response())
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func readLoginRequest(w http.ResponseWriter, r *http.Request) (LoginRequest, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "application/x-www-form-urlencoded", "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			return LoginRequest{}, err
		}
		return LoginRequest{
			Email:    r.PostForm.Get("username"),
			Password: r.PostForm.Get("password"),
		}, nil
	default:
		var req LoginRequest
		if err := decodeJSON(w, r, &req); err != nil {
			return LoginRequest{}, err
		}
		return req, nil
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := strings.TrimSpace(r.Header.Get("Authorization"))
	if auth == "" {
		return "", errors.New("missing authorization")
	}
	parts := strings.SplitN(auth, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("invalid authorization")
	}
	return token, nil
}

// Package auth provides registration and login endpoints. Session design is
// deliberately minimal: a bcrypt-hashed password and a short-lived signed
// token, nothing more.
package auth

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/supportline/supportline/internal/api"
	"github.com/supportline/supportline/internal/domain"
	"github.com/supportline/supportline/internal/store"
	"golang.org/x/crypto/bcrypt"
)

const (
	bcryptCost = 10
	tokenTTL   = time.Hour
)

// Handler exposes the register and login endpoints.
type Handler struct {
	repo   store.Repository
	secret []byte
}

// NewHandler creates an auth handler signing tokens with the given secret.
func NewHandler(repo store.Repository, secret string) *Handler {
	return &Handler{
		repo:   repo,
		secret: []byte(secret),
	}
}

// RegisterRoutes registers the auth routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api/auth", func(r chi.Router) {
		r.Post("/register", h.Register)
		r.Post("/login", h.Login)
	})
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Mobile   string `json:"mobile"`
	Password string `json:"password"`
}

// Register creates a new user account.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var body registerRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))
	if body.Username == "" || body.Email == "" || body.Password == "" {
		api.Error(w, http.StatusBadRequest, "username, email, and password are required")
		return
	}

	existing, err := h.repo.GetUserByEmail(r.Context(), body.Email)
	if err != nil {
		slog.Error("Registration lookup failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if existing != nil {
		api.Error(w, http.StatusBadRequest, "user already exists")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcryptCost)
	if err != nil {
		slog.Error("Password hashing failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now()
	user := &domain.User{
		ID:           uuid.NewString(),
		Username:     body.Username,
		Email:        body.Email,
		Mobile:       body.Mobile,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := h.repo.CreateUser(r.Context(), user); err != nil {
		slog.Error("Failed to create user", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	api.JSON(w, http.StatusCreated, map[string]interface{}{
		"message": "user registered successfully",
		"user":    user,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies credentials and issues a signed token.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	body.Email = strings.TrimSpace(strings.ToLower(body.Email))

	user, err := h.repo.GetUserByEmail(r.Context(), body.Email)
	if err != nil {
		slog.Error("Login lookup failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if user == nil {
		api.Error(w, http.StatusNotFound, "user not found")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid credentials")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":    user.ID,
		"email": user.Email,
		"exp":   time.Now().Add(tokenTTL).Unix(),
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		slog.Error("Token signing failed", "error", err)
		api.Error(w, http.StatusInternalServerError, "internal server error")
		return
	}

	api.JSON(w, http.StatusOK, map[string]string{
		"message": "login successful",
		"token":   signed,
	})
}

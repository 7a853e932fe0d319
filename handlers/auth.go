package handlers

import (
	"errors"
	"log"
	"net/http"

	"hrms-service/config"
	"hrms-service/middleware"
	"hrms-service/models"
	"hrms-service/services"
	"hrms-service/telemetry"
	"hrms-service/utils"
)

var generateToken = utils.GenerateToken

type RegisterRequest struct {
	Email      string      `json:"email" validate:"required,email"`
	Password   string      `json:"password" validate:"required,min=6,max=72"`
	Name       string      `json:"name" validate:"required,min=1"`
	Role       models.Role `json:"role" validate:"omitempty,oneof=ADMIN EMPLOYEE"`
	Department string      `json:"department"`
	Position   string      `json:"position"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=1"`
}

type AuthHandler struct {
	cfg     config.AuthConfig
	creds   *services.Credentials
	metrics *telemetry.Metrics
}

func NewAuthHandler(cfg config.AuthConfig, creds *services.Credentials) *AuthHandler {
	return &AuthHandler{cfg: cfg, creds: creds}
}

func (h *AuthHandler) WithMetrics(metrics *telemetry.Metrics) *AuthHandler {
	h.metrics = metrics
	return h
}

func (h *AuthHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) error {
	var req RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.creds.Register(r.Context(), services.RegisterInput{
		Email:      req.Email,
		Password:   req.Password,
		Name:       req.Name,
		Role:       req.Role,
		Department: req.Department,
		Position:   req.Position,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrDuplicateEmail):
			return middleware.NewAppError(http.StatusBadRequest, "Email already registered", err)
		case errors.Is(err, services.ErrInvalidRole):
			return middleware.NewAppError(http.StatusBadRequest, "Invalid role", err)
		}
		return inputError(err)
	}

	token, err := h.issueToken(user)
	if err != nil {
		return internalError(err)
	}
	log.Printf("user registered: user_id=%s role=%s", user.ID, user.Role)
	middleware.WriteJSON(w, http.StatusCreated, JSONResponse{
		"message": "User registered successfully",
		"user":    user,
		"token":   token,
	})
	return nil
}

func (h *AuthHandler) LoginHandler(w http.ResponseWriter, r *http.Request) error {
	var req LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		return err
	}

	user, err := h.creds.Verify(r.Context(), req.Email, req.Password)
	h.metrics.RecordLogin(r.Context(), err == nil)
	if err != nil {
		if errors.Is(err, services.ErrInvalidCredentials) {
			return middleware.NewAppError(http.StatusUnauthorized, "Invalid credentials", err)
		}
		return internalError(err)
	}

	token, err := h.issueToken(user)
	if err != nil {
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{
		"message": "Login successful",
		"user":    user,
		"token":   token,
	})
	return nil
}

func (h *AuthHandler) MeHandler(w http.ResponseWriter, r *http.Request) error {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		return notAuthenticated()
	}

	user, err := h.creds.FindByID(r.Context(), claims.UserID)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return middleware.NewAppError(http.StatusNotFound, "User not found", err)
		}
		return internalError(err)
	}
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"user": user})
	return nil
}

func (h *AuthHandler) issueToken(user models.User) (string, error) {
	return generateToken(utils.Claims{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
	}, h.cfg.TokenTTL, h.cfg.Issuer, h.cfg.TokenSecret)
}

func HealthHandler(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, JSONResponse{"status": "ok"})
}

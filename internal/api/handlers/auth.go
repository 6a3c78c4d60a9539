package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/sentineld/avengine/internal/api/utils"
	"github.com/sentineld/avengine/internal/auth"
)

// AuthService fronts login and admin-account management.
type AuthService struct {
	svc *auth.Service
}

// NewAuthService builds an AuthService.
func NewAuthService(svc *auth.Service) *AuthService {
	return &AuthService{svc: svc}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginHandler authenticates a username/password pair and returns a
// signed JWT on success.
func (svc *AuthService) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendError(w, utils.NewAPIError("invalid request body", http.StatusBadRequest))
		return
	}

	user, err := svc.svc.AuthenticateUser(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			utils.SendError(w, utils.NewAPIError("account store unavailable", http.StatusServiceUnavailable))
			return
		}
		utils.SendError(w, utils.NewAPIError("invalid credentials", http.StatusUnauthorized))
		return
	}

	token, err := svc.svc.GenerateToken(user)
	if err != nil {
		utils.SendError(w, utils.NewAPIError("failed to issue token", http.StatusInternalServerError))
		return
	}
	utils.SendSuccess(w, map[string]string{"token": token, "role": user.Role})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// CreateUserHandler registers a new admin account. Only reachable via
// the role-gated /api/users route.
func (svc *AuthService) CreateUserHandler(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendError(w, utils.NewAPIError("invalid request body", http.StatusBadRequest))
		return
	}
	if req.Username == "" || req.Password == "" {
		utils.SendError(w, utils.NewAPIError("username and password are required", http.StatusBadRequest))
		return
	}
	if req.Role == "" {
		req.Role = "user"
	}

	user, err := svc.svc.CreateUser(r.Context(), req.Username, req.Password, req.Role)
	if err != nil {
		if errors.Is(err, auth.ErrStoreUnavailable) {
			utils.SendError(w, utils.NewAPIError("account store unavailable", http.StatusServiceUnavailable))
			return
		}
		if errors.Is(err, auth.ErrInvalidCredentials) {
			utils.SendError(w, utils.NewAPIError(err.Error(), http.StatusBadRequest))
			return
		}
		utils.SendError(w, utils.NewAPIError("failed to create user", http.StatusInternalServerError))
		return
	}
	utils.SendSuccessWithMessage(w, "user created", map[string]any{"id": user.ID, "username": user.Username})
}

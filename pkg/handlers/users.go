package handlers

import (
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/variantlab/variant-engine/pkg/models"
	"github.com/variantlab/variant-engine/pkg/services"
)

// UserHandler handles user and flag override endpoints.
type UserHandler struct {
	userService *services.UserService
	logger      *zap.Logger
}

// NewUserHandler creates a new user handler.
func NewUserHandler(userService *services.UserService, logger *zap.Logger) *UserHandler {
	return &UserHandler{
		userService: userService,
		logger:      logger.Named("user-handler"),
	}
}

// CreateUserRequest is the request body for creating a user.
type CreateUserRequest struct {
	ExternalID string          `json:"user_id"`
	Email      *string         `json:"email,omitempty"`
	Name       *string         `json:"name,omitempty"`
	Attributes models.JSONBMap `json:"attributes,omitempty"`
}

// UpdateUserRequest is the request body for updating a user.
type UpdateUserRequest struct {
	Email      *string         `json:"email,omitempty"`
	Name       *string         `json:"name,omitempty"`
	Attributes models.JSONBMap `json:"attributes,omitempty"`
}

// SetFlagOverrideRequest is the request body for setting a flag override.
type SetFlagOverrideRequest struct {
	Enabled bool `json:"enabled"`
}

// Create handles POST /api/users.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := &models.User{
		ExternalID: req.ExternalID,
		Email:      req.Email,
		Name:       req.Name,
		Attributes: req.Attributes,
	}

	if err := h.userService.CreateUser(r.Context(), user); err != nil {
		h.logger.Error("failed to create user", zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusCreated, user)
}

// List handles GET /api/users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.userService.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("failed to list users", zap.Error(err))
		HandleServiceError(w, err)
		return
	}
	if users == nil {
		users = []*models.User{}
	}

	SuccessResponse(w, http.StatusOK, users)
}

// Get handles GET /api/users/{userId}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	user, err := h.userService.GetUser(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, user)
}

// Update handles PUT /api/users/{userId}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	user := &models.User{
		ID:         userID,
		Email:      req.Email,
		Name:       req.Name,
		Attributes: req.Attributes,
	}

	if err := h.userService.UpdateUser(r.Context(), user); err != nil {
		h.logger.Error("failed to update user", zap.String("user_id", userID.String()), zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, user)
}

// Delete handles DELETE /api/users/{userId}.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.DeleteUser(r.Context(), userID); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "user deleted",
	})
}

// ListFlagOverrides handles GET /api/users/{userId}/flags.
func (h *UserHandler) ListFlagOverrides(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	overrides, err := h.userService.ListFlagOverrides(r.Context(), userID)
	if err != nil {
		HandleServiceError(w, err)
		return
	}
	if overrides == nil {
		overrides = []*models.UserFlagAssignment{}
	}

	SuccessResponse(w, http.StatusOK, overrides)
}

// SetFlagOverride handles POST /api/users/{userId}/flags/{flagId}.
func (h *UserHandler) SetFlagOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var req SetFlagOverrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	override, err := h.userService.SetFlagOverride(r.Context(), userID, flagID, req.Enabled)
	if err != nil {
		h.logger.Error("failed to set flag override",
			zap.String("user_id", userID.String()),
			zap.String("flag_id", flagID.String()),
			zap.Error(err))
		HandleServiceError(w, err)
		return
	}

	SuccessResponse(w, http.StatusOK, override)
}

// RemoveFlagOverride handles DELETE /api/users/{userId}/flags/{flagId}.
func (h *UserHandler) RemoveFlagOverride(w http.ResponseWriter, r *http.Request) {
	userID, err := ParseUserID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	flagID, err := ParseFlagID(r)
	if err != nil {
		ErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.userService.RemoveFlagOverride(r.Context(), userID, flagID); err != nil {
		HandleServiceError(w, err)
		return
	}

	WriteJSON(w, http.StatusOK, ApiResponse{
		Success: true,
		Message: "flag override removed",
	})
}

package handlers

import (
	"errors"
	"net/http"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

type UserHandler struct {
	registry *services.Registry
	log      logger.Logger
}

type RegisterUserRequest struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

type UserResponse struct {
	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

func NewUserHandler(registry *services.Registry, log logger.Logger) *UserHandler {
	return &UserHandler{registry: registry, log: log}
}

func (h *UserHandler) RegisterUser(c echo.Context) error {
	var req RegisterUserRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid_request"})
	}

	user, err := h.registry.RegisterUser(c.Request().Context(), req.Name, req.Email)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrMissingUserFields):
			return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
		case errors.Is(err, domain.ErrUserExists):
			return c.JSON(http.StatusConflict, map[string]string{"error": "user_exists"})
		default:
			h.log.Error("Failed to register user", "error", err)
			return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
		}
	}

	return c.JSON(http.StatusCreated, toUserResponse(user))
}

func (h *UserHandler) ListUsers(c echo.Context) error {
	users, err := h.registry.ListUsers(c.Request().Context())
	if err != nil {
		h.log.Error("Failed to list users", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "internal_error"})
	}

	out := make([]UserResponse, 0, len(users))
	for _, user := range users {
		out = append(out, toUserResponse(user))
	}
	return c.JSON(http.StatusOK, out)
}

func toUserResponse(user *domain.User) UserResponse {
	return UserResponse{
		UserID:    user.ID,
		Name:      user.Name,
		Email:     user.Email,
		CreatedAt: user.CreatedAt,
	}
}

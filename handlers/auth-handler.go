package handler

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/middleware"
	"github.com/krishkalaria12/snap-classify/models"
	"go.uber.org/zap"
)

type UserResponse struct {
	ID       uint   `json:"id"`
	Email    string `json:"email"`
	Username string `json:"username"`
	FullName string `json:"name"`
	Token    string `json:"token,omitempty"`
}

func newUserResponse(user *models.User, token string) UserResponse {
	return UserResponse{
		ID:       user.ID,
		Email:    user.Email,
		Username: user.Username,
		FullName: user.FullName,
		Token:    token,
	}
}

func (h *Handler) Register(c *fiber.Ctx) error {
	type RegisterData struct {
		Email    string `json:"email"`
		Username string `json:"username"`
		FullName string `json:"name"`
		Password string `json:"password"`
	}

	input := new(RegisterData)
	if err := c.BodyParser(input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, err := h.auth.Register(c.UserContext(), input.Email, input.Username, input.FullName, input.Password)
	switch {
	case errors.Is(err, auth.ErrInvalidInput):
		return failure(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, auth.ErrUserExists):
		return failure(c, fiber.StatusConflict, err.Error())
	case err != nil:
		logger.Error("failed to register user", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Failed to create user")
	}

	return success(c, fiber.StatusCreated, "User created successfully", newUserResponse(user, ""))
}

func (h *Handler) Login(c *fiber.Ctx) error {
	type LoginData struct {
		Identity string `json:"identity"`
		Password string `json:"password"`
	}

	input := new(LoginData)
	if err := c.BodyParser(input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}

	user, tokenStr, err := h.auth.Login(c.UserContext(), input.Identity, input.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		return failure(c, fiber.StatusUnauthorized, "Invalid identity or password")
	}
	if err != nil {
		logger.Error("failed to log in", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Failed to log in")
	}

	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    tokenStr,
		Expires:  time.Now().Add(h.cookieDuration),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
	})

	return success(c, fiber.StatusOK, "Login successful", newUserResponse(user, tokenStr))
}

func (h *Handler) Logout(c *fiber.Ctx) error {
	c.Cookie(&fiber.Cookie{
		Name:     middleware.CookieName,
		Value:    "",
		Expires:  time.Now().Add(-time.Hour),
		HTTPOnly: true,
		Secure:   h.secureCookie,
		SameSite: "Lax",
	})

	return success(c, fiber.StatusOK, "Logout successful", nil)
}

// Me returns the logged-in user, or null data for anonymous callers.
func (h *Handler) Me(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return success(c, fiber.StatusOK, "Not logged in", nil)
	}

	user, err := h.auth.User(c.UserContext(), userID)
	if err != nil {
		logger.Error("failed to load user", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Database error")
	}
	if user == nil {
		return success(c, fiber.StatusOK, "Not logged in", nil)
	}

	return success(c, fiber.StatusOK, "User found", newUserResponse(user, ""))
}

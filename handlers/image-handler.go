package handler

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/images"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/middleware"
	"go.uber.org/zap"
)

func (h *Handler) SaveImage(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return failure(c, fiber.StatusUnauthorized, "User not logged in")
	}

	type SaveImageRequest struct {
		StorageID string `json:"storageId"`
		Prompt    string `json:"prompt"`
	}

	var input SaveImageRequest
	if err := c.BodyParser(&input); err != nil {
		return failure(c, fiber.StatusBadRequest, "Invalid request body")
	}
	if input.StorageID == "" {
		return failure(c, fiber.StatusBadRequest, "storageId is required")
	}

	prompt := input.Prompt
	if strings.TrimSpace(prompt) == "" {
		prompt = h.defaultPrompt
	}

	imageID, err := h.images.Create(c.UserContext(), input.StorageID, prompt, userID)
	if errors.Is(err, images.ErrInvalidStorageID) {
		return failure(c, fiber.StatusBadRequest, err.Error())
	}
	if err != nil {
		logger.Error("failed to save image", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Error saving to database")
	}

	return success(c, fiber.StatusCreated, "Image saved", fiber.Map{"id": imageID})
}

// ListImages returns the caller's images; anonymous callers get an empty list.
func (h *Handler) ListImages(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	list, err := h.images.ListByOwner(c.UserContext(), userID)
	if err != nil {
		logger.Error("failed to list images", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Database error")
	}

	return success(c, fiber.StatusOK, "Images found", list)
}

func (h *Handler) GetImage(c *fiber.Ctx) error {
	userID, _ := middleware.CurrentUserID(c)

	view, err := h.images.GetOne(c.UserContext(), c.Params("id"), userID)
	if errors.Is(err, images.ErrNotFound) {
		return failure(c, fiber.StatusNotFound, "Image not found")
	}
	if err != nil {
		logger.Error("failed to get image", logger.SourceHTTP, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Database error")
	}

	return success(c, fiber.StatusOK, "Image found", view)
}

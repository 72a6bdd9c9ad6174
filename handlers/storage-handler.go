package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/logger"
	"github.com/krishkalaria12/snap-classify/middleware"
	"github.com/krishkalaria12/snap-classify/storage"
	"go.uber.org/zap"
)

func (h *Handler) GenerateUploadURL(c *fiber.Ctx) error {
	userID, err := middleware.CurrentUserID(c)
	if err != nil {
		return failure(c, fiber.StatusUnauthorized, "User not logged in")
	}

	uploadURL, err := h.storage.GenerateUploadURL(c.UserContext(), userID)
	if err != nil {
		logger.Error("failed to generate upload url", logger.SourceStorage, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Failed to generate upload URL")
	}

	return success(c, fiber.StatusOK, "Upload URL generated", fiber.Map{"uploadUrl": uploadURL})
}

// Upload receives the raw file body posted to an issued upload URL. The token
// in the query string is the only credential.
func (h *Handler) Upload(c *fiber.Ctx) error {
	storageID, err := h.storage.Upload(c.UserContext(), c.Query("token"), c.Body(), c.Get(fiber.HeaderContentType))
	switch {
	case errors.Is(err, storage.ErrInvalidUploadURL):
		return failure(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, storage.ErrUploadURLUsed):
		return failure(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrEmptyUpload):
		return failure(c, fiber.StatusBadRequest, err.Error())
	case err != nil:
		logger.Error("failed to upload file", logger.SourceStorage, zap.Error(err))
		return failure(c, fiber.StatusInternalServerError, "Error uploading the file")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{"storageId": storageID})
}

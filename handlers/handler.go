package handler

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/krishkalaria12/snap-classify/auth"
	"github.com/krishkalaria12/snap-classify/events"
	"github.com/krishkalaria12/snap-classify/images"
	"github.com/krishkalaria12/snap-classify/storage"
)

// Handler holds the services behind the HTTP API.
type Handler struct {
	auth    *auth.Service
	storage *storage.Service
	images  *images.Store
	hub     *events.Hub

	defaultPrompt  string
	cookieDuration time.Duration
	secureCookie   bool
	eventsPing     time.Duration
}

type Options struct {
	DefaultPrompt  string
	CookieDuration time.Duration
	SecureCookie   bool
	EventsPing     time.Duration
}

func New(authService *auth.Service, storageService *storage.Service, store *images.Store, hub *events.Hub, opts Options) *Handler {
	if opts.EventsPing <= 0 {
		opts.EventsPing = 25 * time.Second
	}

	return &Handler{
		auth:           authService,
		storage:        storageService,
		images:         store,
		hub:            hub,
		defaultPrompt:  opts.DefaultPrompt,
		cookieDuration: opts.CookieDuration,
		secureCookie:   opts.SecureCookie,
		eventsPing:     opts.EventsPing,
	}
}

func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func success(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "success",
		"message": message,
		"data":    data,
	})
}

func failure(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"status":  "error",
		"message": message,
		"data":    nil,
	})
}

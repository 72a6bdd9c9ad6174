package router

import (
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/fiber/v2/middleware/recover"
	handler "github.com/krishkalaria12/snap-classify/handlers"
	"github.com/krishkalaria12/snap-classify/middleware"
	"github.com/krishkalaria12/snap-classify/storage"
	"github.com/krishkalaria12/snap-classify/web"
)

func SetupRoutes(app *fiber.App, h *handler.Handler, parser middleware.TokenParser, allowOrigins []string) {
	origins := strings.Join(allowOrigins, ",")
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowCredentials: origins != "*",
	}))

	app.Get("/healthz", h.Health)

	api := app.Group("/api", middleware.RequestLogger())

	// Auth
	auth := api.Group("/auth")
	auth.Post("/register", h.Register)
	auth.Post("/login", h.Login)
	auth.Post("/logout", h.Logout)
	auth.Get("/me", middleware.OptionalAuth(parser), h.Me)

	// Storage
	api.Post("/storage/upload-url", middleware.RequireAuth(parser), h.GenerateUploadURL)
	app.Post(storage.UploadRoute, h.Upload)

	// Images
	images := api.Group("/images")
	images.Get("/events", middleware.RequireAuth(parser), h.StreamEvents)
	images.Post("/", middleware.RequireAuth(parser), h.SaveImage)
	images.Get("/", middleware.OptionalAuth(parser), h.ListImages)
	images.Get("/:id", middleware.OptionalAuth(parser), h.GetImage)

	app.Use("/", filesystem.New(filesystem.Config{
		Root:       http.FS(web.Static),
		PathPrefix: "static",
		Index:      "index.html",
	}))
}

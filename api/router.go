package api

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"greenwave/services"
	"greenwave/storage"
)

// NewApp builds the fiber app with middleware and routes
func NewApp(dispatch *services.DispatchService, ops *services.OperationsService, devices DeviceHealthReader, repo storage.EpisodeRepository, corsOrigins string) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "Greenwave Dispatch API",
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          10 * time.Second,
		ErrorHandler:          ErrorHandler,
		DisableStartupMessage: true,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${method} ${path} (${latency})\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins,
		AllowMethods: "GET,POST,PUT,DELETE,OPTIONS",
		AllowHeaders: "Origin,Content-Type,Accept,Authorization",
	}))

	SetupRoutes(app, NewHandler(dispatch, ops, devices, repo))
	return app
}

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, handler *Handler) {
	app.Get("/health", handler.HealthCheck)

	api := app.Group("/api/v1")
	{
		// Map overlay
		api.Get("/overlay", handler.GetOverlay)
		api.Get("/overlay.geojson", handler.GetOverlayGeoJSON)
		api.Get("/overlay.kml", handler.GetOverlayKML)

		// Routing
		api.Get("/route", handler.GetRoute)
		api.Get("/hospitals/nearest", handler.GetNearestHospital)
		api.Post("/emergency", handler.RequestEmergency)
		api.Delete("/emergency", handler.CancelEmergency)
		api.Post("/dispatch", handler.StartDispatch)
		api.Delete("/dispatch", handler.CompleteDispatch)
		api.Get("/episodes", handler.GetEpisodes)

		// View state
		api.Put("/focus", handler.SetFocus)
		api.Put("/zone-filter", handler.SetZoneFilter)
		api.Put("/user-location", handler.SetUserLocation)

		// Fleet and zones
		api.Put("/ambulances/:id/status", handler.SetAmbulanceStatus)
		api.Put("/ambulances/:id/patient", handler.SavePatient)
		api.Put("/zones/:id/active", handler.SetZoneActive)
		api.Get("/devices/:id/health", handler.GetDeviceHealth)

		// Incidents and crew comms
		api.Get("/incidents", handler.GetIncidents)
		api.Post("/incidents", handler.CreateIncident)
		api.Put("/incidents/:id/status", handler.UpdateIncidentStatus)
		api.Get("/comms/:unit", handler.GetMessages)
		api.Post("/comms/:unit", handler.SendMessage)
	}
}

// ErrorHandler renders every error as {"error": true, "message": ...}
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}

package api

import (
	"errors"
	"strconv"

	"github.com/gofiber/fiber/v2"

	"greenwave/geo"
	"greenwave/models"
	"greenwave/overlay"
	"greenwave/services"
	"greenwave/storage"
)

const (
	contentTypeGeoJSON = "application/geo+json"
	contentTypeKML     = "application/vnd.google-earth.kml+xml"
)

// DeviceHealthReader looks up the tracked health of an IoT device
type DeviceHealthReader interface {
	GetDeviceHealth(deviceID string) (services.DeviceHealth, bool)
}

// Handler contains all HTTP handlers
type Handler struct {
	dispatch *services.DispatchService
	ops      *services.OperationsService
	devices  DeviceHealthReader
	repo     storage.EpisodeRepository
}

// NewHandler creates a new handler
func NewHandler(dispatch *services.DispatchService, ops *services.OperationsService, devices DeviceHealthReader, repo storage.EpisodeRepository) *Handler {
	return &Handler{
		dispatch: dispatch,
		ops:      ops,
		devices:  devices,
		repo:     repo,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	database := "ok"
	if err := h.repo.Health(c.UserContext()); err != nil {
		database = "unavailable"
	}

	_, routeActive := h.dispatch.ActiveRoute()
	return c.JSON(fiber.Map{
		"status":       "ok",
		"service":      "greenwave-dispatch",
		"database":     database,
		"emergency":    h.dispatch.Snapshot().Emergency,
		"route_active": routeActive,
		"generation":   h.dispatch.Surface().Generation(),
	})
}

// GetOverlay returns the latest overlay frame
func (h *Handler) GetOverlay(c *fiber.Ctx) error {
	return c.JSON(h.dispatch.Frame())
}

// GetOverlayGeoJSON returns the latest frame as a GeoJSON feature collection
func (h *Handler) GetOverlayGeoJSON(c *fiber.Ctx) error {
	body, err := overlay.EncodeGeoJSON(h.dispatch.Frame())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to encode overlay")
	}
	c.Set(fiber.HeaderContentType, contentTypeGeoJSON)
	return c.Send(body)
}

// GetOverlayKML returns the latest frame as a KML document
func (h *Handler) GetOverlayKML(c *fiber.Ctx) error {
	body, err := overlay.EncodeKML(h.dispatch.Frame())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to encode overlay")
	}
	c.Set(fiber.HeaderContentType, contentTypeKML)
	return c.Send(body)
}

// GetRoute returns the active route
func (h *Handler) GetRoute(c *fiber.Ctx) error {
	view, ok := h.dispatch.ActiveRoute()
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, services.ErrNoActiveRoute.Error())
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// GetNearestHospital returns the destination an emergency from lat/lng would be routed to
func (h *Handler) GetNearestHospital(c *fiber.Ctx) error {
	lat, errLat := strconv.ParseFloat(c.Query("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.Query("lng"), 64)
	if errLat != nil || errLng != nil {
		return fiber.NewError(fiber.StatusBadRequest, "lat and lng query parameters are required")
	}

	hospital, err := h.dispatch.NearestHospital(geo.NewPoint(lat, lng))
	if err != nil {
		return commandError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    hospital,
	})
}

// RequestEmergency creates an emergency route. The body is optional.
func (h *Handler) RequestEmergency(c *fiber.Ctx) error {
	cmd, err := parseCommand(c, models.CmdRequestEmergency)
	if err != nil {
		return err
	}

	view, err := h.dispatch.RequestEmergency(c.UserContext(), cmd.AmbulanceID, cmd.WaypointPoints())
	if err != nil {
		return commandError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// CancelEmergency clears the emergency route
func (h *Handler) CancelEmergency(c *fiber.Ctx) error {
	if err := h.dispatch.CancelEmergency(c.UserContext()); err != nil {
		return commandError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// StartDispatch routes an ambulance to a chosen hospital
func (h *Handler) StartDispatch(c *fiber.Ctx) error {
	cmd, err := parseCommand(c, models.CmdStartDispatch)
	if err != nil {
		return err
	}

	view, err := h.dispatch.StartDispatch(c.UserContext(), cmd.AmbulanceID, cmd.HospitalID, cmd.WaypointPoints())
	if err != nil {
		return commandError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    view,
	})
}

// CompleteDispatch ends the active route on arrival
func (h *Handler) CompleteDispatch(c *fiber.Ctx) error {
	if err := h.dispatch.CompleteDispatch(c.UserContext()); err != nil {
		return commandError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// SetFocus tracks an ambulance; an empty ambulance_id clears tracking
func (h *Handler) SetFocus(c *fiber.Ctx) error {
	return h.applyView(c, models.CmdTrack)
}

// SetZoneFilter filters the map by zone; an empty zone clears the filter
func (h *Handler) SetZoneFilter(c *fiber.Ctx) error {
	return h.applyView(c, models.CmdZoneFilter)
}

// SetUserLocation sets the operator position; omitting lat and lng clears it
func (h *Handler) SetUserLocation(c *fiber.Ctx) error {
	return h.applyView(c, models.CmdUserLocation)
}

// SetAmbulanceStatus changes a unit's status, e.g. to on-scene
func (h *Handler) SetAmbulanceStatus(c *fiber.Ctx) error {
	cmd, err := parseCommandWith(c, models.CmdAmbulanceStatus, func(cmd *models.Command) {
		cmd.AmbulanceID = c.Params("id")
	})
	if err != nil {
		return err
	}
	if err := h.dispatch.HandleCommand(c.UserContext(), cmd); err != nil {
		return commandError(err)
	}

	amb, _ := h.dispatch.Snapshot().FindAmbulance(cmd.AmbulanceID)
	return c.JSON(fiber.Map{
		"success": true,
		"data":    amb,
	})
}

// SetZoneActive activates or deactivates a zone
func (h *Handler) SetZoneActive(c *fiber.Ctx) error {
	cmd, err := parseCommandWith(c, models.CmdZoneActive, func(cmd *models.Command) {
		cmd.Zone = c.Params("id")
	})
	if err != nil {
		return err
	}
	if err := h.dispatch.HandleCommand(c.UserContext(), cmd); err != nil {
		return commandError(err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"zone":    cmd.Zone,
		"active":  *cmd.Active,
	})
}

// SavePatient attaches patient info to a unit
func (h *Handler) SavePatient(c *fiber.Ctx) error {
	var patient models.Patient
	if err := c.BodyParser(&patient); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.ops.SavePatient(c.UserContext(), c.Params("id"), patient); err != nil {
		return commandError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetIncidents lists incidents, newest first
func (h *Handler) GetIncidents(c *fiber.Ctx) error {
	incidents, err := h.ops.Incidents(c.UserContext())
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch incidents")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    incidents,
		"count":   len(incidents),
	})
}

// CreateIncident files a new incident
func (h *Handler) CreateIncident(c *fiber.Ctx) error {
	var incident models.Incident
	if err := c.BodyParser(&incident); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	created, err := h.ops.CreateIncident(c.UserContext(), incident)
	if err != nil {
		return commandError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    created,
	})
}

// UpdateIncidentStatus moves an incident to open, in-progress or resolved
func (h *Handler) UpdateIncidentStatus(c *fiber.Ctx) error {
	var req struct {
		Status models.IncidentStatus `json:"status"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	if err := h.ops.UpdateIncidentStatus(c.UserContext(), c.Params("id"), req.Status); err != nil {
		return commandError(err)
	}
	return c.JSON(fiber.Map{"success": true})
}

// GetMessages returns a unit's comms channel
func (h *Handler) GetMessages(c *fiber.Ctx) error {
	messages, err := h.ops.Messages(c.UserContext(), c.Params("unit"))
	if err != nil {
		return commandError(err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    messages,
		"count":   len(messages),
	})
}

// SendMessage posts to a unit's comms channel
func (h *Handler) SendMessage(c *fiber.Ctx) error {
	var req struct {
		From string `json:"from"`
		Text string `json:"text"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	msg, err := h.ops.SendMessage(c.UserContext(), c.Params("unit"), req.From, req.Text)
	if err != nil {
		return commandError(err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    msg,
	})
}

// GetDeviceHealth returns the ping-derived health of an IoT device
func (h *Handler) GetDeviceHealth(c *fiber.Ctx) error {
	health, ok := h.devices.GetDeviceHealth(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "unknown device")
	}
	return c.JSON(fiber.Map{
		"success": true,
		"data":    health,
	})
}

func (h *Handler) applyView(c *fiber.Ctx, typ models.CommandType) error {
	cmd, err := parseCommand(c, typ)
	if err != nil {
		return err
	}
	if err := h.dispatch.HandleCommand(c.UserContext(), cmd); err != nil {
		return commandError(err)
	}

	input := h.dispatch.RenderInput()
	return c.JSON(fiber.Map{
		"success":       true,
		"focus":         input.FocusAmbulanceID,
		"zone_filter":   input.ZoneFilter,
		"user_position": input.UserPosition,
	})
}

// GetEpisodes returns recent route episodes
func (h *Handler) GetEpisodes(c *fiber.Ctx) error {
	limit := c.QueryInt("limit", 20)
	if limit < 1 || limit > 200 {
		limit = 20
	}

	episodes, err := h.dispatch.Episodes(c.UserContext(), limit)
	if err != nil {
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch episodes")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    episodes,
		"count":   len(episodes),
	})
}

// parseCommand reads an optional JSON body into a command of the given type
func parseCommand(c *fiber.Ctx, typ models.CommandType) (models.Command, error) {
	return parseCommandWith(c, typ, nil)
}

// parseCommandWith is parseCommand with path parameters filled in by fill before validation
func parseCommandWith(c *fiber.Ctx, typ models.CommandType, fill func(*models.Command)) (models.Command, error) {
	var cmd models.Command
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&cmd); err != nil {
			return models.Command{}, fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	cmd.Type = typ
	if fill != nil {
		fill(&cmd)
	}
	if err := cmd.Validate(); err != nil {
		return models.Command{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return cmd, nil
}

// commandError maps dispatcher rejections to HTTP status codes
func commandError(err error) error {
	switch {
	case errors.Is(err, services.ErrUnknownAmbulance), errors.Is(err, services.ErrUnknownHospital),
		errors.Is(err, services.ErrUnknownZone), errors.Is(err, services.ErrUnknownIncident):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrNoActiveRoute), errors.Is(err, services.ErrNoAmbulances),
		errors.Is(err, services.ErrNoHospitals):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrUnknownCommand), errors.Is(err, services.ErrInvalidCommand):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Internal Server Error")
}

package http

import (
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/ecoshore/backend/internal/domain"
	"github.com/ecoshore/backend/internal/service"
)

// Handler contains all HTTP handlers
type Handler struct {
	heatmapSvc *service.HeatmapService
	validate   *validator.Validate
}

// objectIDPattern matches a 24 character hex beach id, without prefix
var objectIDPattern = regexp.MustCompile(`^[0-9a-fA-F]{24}$`)

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("objectid", func(fl validator.FieldLevel) bool {
		return objectIDPattern.MatchString(fl.Field().String())
	})
	return v
}

// NewHandler creates a new handler
func NewHandler(heatmapSvc *service.HeatmapService) *Handler {
	return &Handler{
		heatmapSvc: heatmapSvc,
		validate:   newValidator(),
	}
}

type beachParams struct {
	BeachID string `params:"beachId" validate:"required,objectid"`
}

// RefreshRequest is the optional body of POST /refresh
type RefreshRequest struct {
	BeachID string `json:"beachId" validate:"omitempty,objectid"`
}

func success(c *fiber.Ctx, data fiber.Map, message string) error {
	return c.JSON(fiber.Map{
		"success":   true,
		"message":   message,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": "ecoshore-backend",
		"version": "1.0.0",
	})
}

// GetHeatmap returns 7-day predictions for every active beach
func (h *Handler) GetHeatmap(c *fiber.Ctx) error {
	heatmap, err := h.heatmapSvc.GenerateHeatmapData(c.UserContext(), "")
	if err != nil {
		return heatmapError(err)
	}

	return success(c, fiber.Map{"heatmap": heatmap}, "Heatmap predictions retrieved successfully")
}

// GetBeachHeatmap returns 7-day predictions for a single beach
func (h *Handler) GetBeachHeatmap(c *fiber.Ctx) error {
	var params beachParams
	if err := c.ParamsParser(&params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid beach id")
	}
	if err := h.validate.Struct(params); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "beachId must be a 24 character hex id")
	}

	heatmap, err := h.heatmapSvc.GenerateHeatmapData(c.UserContext(), params.BeachID)
	if err != nil {
		return heatmapError(err)
	}

	return success(c, fiber.Map{"heatmap": heatmap}, "Pollution prediction for beach retrieved successfully")
}

// RefreshHeatmap drops and regenerates the cached heatmap
func (h *Handler) RefreshHeatmap(c *fiber.Ctx) error {
	var req RefreshRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
		}
	}
	if err := h.validate.Struct(req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "beachId must be a 24 character hex id")
	}

	heatmap, err := h.heatmapSvc.RefreshCache(c.UserContext(), req.BeachID)
	if err != nil {
		return heatmapError(err)
	}

	message := "Heatmap cache refreshed for all beaches"
	if req.BeachID != "" {
		message = "Cache refreshed for beach " + req.BeachID
	}
	return success(c, fiber.Map{"heatmap": heatmap}, message)
}

// GetHeatmapHealth reports ML service and beach store reachability
// together with cache counters
func (h *Handler) GetHeatmapHealth(c *fiber.Ctx) error {
	ctx := c.UserContext()
	mlHealth := h.heatmapSvc.CheckMLServiceHealth(ctx)

	store := domain.StoreHealth{Reachable: true}
	if err := h.heatmapSvc.CheckBeachStoreHealth(ctx); err != nil {
		store = domain.StoreHealth{Reachable: false, Error: err.Error()}
	}

	return success(c, fiber.Map{
		"mlService": mlHealth,
		"database":  store,
		"cache":     h.heatmapSvc.GetCacheStats(),
	}, "Heatmap service health retrieved")
}

func heatmapError(err error) error {
	if errors.Is(err, domain.ErrBeachNotFound) {
		return fiber.NewError(fiber.StatusNotFound, "Beach not found")
	}
	return fiber.NewError(fiber.StatusInternalServerError, "Failed to generate heatmap predictions")
}

// ErrorHandler renders fiber errors as JSON
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   true,
		"message": message,
	})
}

package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/trailwx/segment-weather/internal/availability"
	"github.com/trailwx/segment-weather/internal/weather"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *weather.Service, prober *availability.Prober, defaults weather.Thresholds) {
	v1 := app.Group("/api/v1")

	v1.Post("/trips/:tripId/report", func(c *fiber.Ctx) error {
		var req reportRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		thresholds := defaults
		if req.Thresholds != nil {
			thresholds = mergeThresholds(defaults, *req.Thresholds)
		}

		report, err := service.BuildReport(c.Context(), c.Params("tripId"), req.UserID, req.Segments, thresholds)
		if err != nil {
			var verr *weather.ValidationError
			if errors.As(err, &verr) {
				return fiber.NewError(fiber.StatusBadRequest, verr.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build weather report")
		}

		return c.JSON(report)
	})

	v1.Post("/trips/:tripId/delivered", func(c *fiber.Ctx) error {
		var req deliveredRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		if err := service.MarkDelivered(c.Params("tripId"), req.UserID, req.Summaries); err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to persist delivered baseline")
		}

		return c.JSON(fiber.Map{"status": "baseline saved"})
	})

	v1.Post("/availability/probe", func(c *fiber.Ctx) error {
		models, err := prober.Probe(c.Context())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "availability probe failed")
		}
		return c.JSON(fiber.Map{"models": models})
	})

	v1.Get("/availability", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"models": prober.Availability(),
			"stale":  prober.Stale(),
		})
	})
}

// mergeThresholds overlays the positive fields of a per-request override on
// the defaults. A request overriding only one metric must not zero the others,
// which would silently disable their change detection.
func mergeThresholds(base, override weather.Thresholds) weather.Thresholds {
	if override.Temperature > 0 {
		base.Temperature = override.Temperature
	}
	if override.Wind > 0 {
		base.Wind = override.Wind
	}
	if override.Gust > 0 {
		base.Gust = override.Gust
	}
	if override.Precipitation > 0 {
		base.Precipitation = override.Precipitation
	}
	return base
}

// reportRequest carries the segments of one trip to fetch and diff.
type reportRequest struct {
	UserID     string                `json:"user_id" validate:"required"`
	Segments   []weather.TripSegment `json:"segments" validate:"required,min=1"`
	Thresholds *weather.Thresholds   `json:"thresholds,omitempty"`
}

// deliveredRequest marks a report as delivered so its summaries become the
// new comparison baseline.
type deliveredRequest struct {
	UserID    string                                   `json:"user_id" validate:"required"`
	Summaries map[string]weather.SegmentWeatherSummary `json:"summaries" validate:"required"`
}

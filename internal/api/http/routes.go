package httpapi

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/river-hud/internal/conditions"
)

var validate = validator.New()

// RegisterRoutes wires the HTTP handlers into the Fiber app.
func RegisterRoutes(app *fiber.App, service *conditions.Service) {
	v1 := app.Group("/api/v1")

	v1.Get("/rivers", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"rivers": service.Sites(),
		})
	})

	v1.Get("/rivers/:river/snapshot", func(c *fiber.Ctx) error {
		req, err := parseRiverParam(c)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		snapshot, err := service.BuildSnapshot(c.UserContext(), req.River)
		if err != nil {
			if errors.Is(err, conditions.ErrUnknownSite) {
				return fiber.NewError(fiber.StatusNotFound, err.Error())
			}
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build snapshot")
		}

		return c.JSON(snapshot)
	})

	v1.Get("/snapshots", func(c *fiber.Ctx) error {
		snapshots, err := service.BuildAll(c.UserContext())
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "failed to build snapshots")
		}

		return c.JSON(fiber.Map{
			"snapshots": snapshots,
		})
	})
}

// riverParam holds the path parameter naming a river.
type riverParam struct {
	River string `validate:"required,max=32,alpha"`
}

func parseRiverParam(c *fiber.Ctx) (riverParam, error) {
	p := riverParam{River: c.Params("river")}
	if err := validate.Struct(p); err != nil {
		return p, err
	}
	return p, nil
}

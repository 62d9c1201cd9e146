package httpapi

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/i474232898/agri-scout/internal/advisory"
)

var validate = validator.New()

// maxUpload caps the bytes read from an uploaded image.
const maxUpload = 10 << 20

// Advisor is the application surface the routes expose.
type Advisor interface {
	Scout(ctx context.Context, req advisory.ScoutRequest) (advisory.AdvisoryResponse, error)
	Diagnose(ctx context.Context, req advisory.DiagnoseRequest) (advisory.DiagnoseResponse, error)
	Advise(ctx context.Context, req advisory.AdviceRequest) advisory.TreatmentPlan
}

// RegisterRoutes wires the HTTP handlers into the Fiber app. Every handler
// runs under requestTimeout.
func RegisterRoutes(app *fiber.App, service Advisor, requestTimeout time.Duration) {
	v1 := app.Group("/api/v1")

	v1.Post("/scout", func(c *fiber.Ctx) error {
		var req advisory.ScoutRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		resp, err := service.Scout(ctx, req)
		if err != nil {
			return err
		}
		return c.JSON(resp)
	})

	v1.Post("/diagnose", func(c *fiber.Ctx) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "multipart field \"file\" is required")
		}
		f, err := fh.Open()
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cannot open uploaded file")
		}
		defer f.Close()

		data, err := io.ReadAll(io.LimitReader(f, maxUpload+1))
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "cannot read uploaded file")
		}
		if len(data) > maxUpload {
			return fiber.NewError(fiber.StatusRequestEntityTooLarge, "uploaded file is too large")
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		resp, err := service.Diagnose(ctx, advisory.DiagnoseRequest{
			ImageBytes:  data,
			FieldHealth: c.FormValue("ndvi"),
		})
		if err != nil {
			return err
		}
		return c.JSON(resp)
	})

	v1.Post("/advice", func(c *fiber.Ctx) error {
		var req advisory.AdviceRequest
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
		}
		if err := validate.Struct(req); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}

		ctx, cancel := context.WithTimeout(c.UserContext(), requestTimeout)
		defer cancel()

		return c.JSON(service.Advise(ctx, req))
	})
}

// ErrorHandler renders every error as a JSON body and maps the advisory
// sentinels to client errors.
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		code = fe.Code
	case errors.Is(err, advisory.ErrNotFound):
		code = fiber.StatusNotFound
	case errors.Is(err, advisory.ErrInvalidCoordinate),
		errors.Is(err, advisory.ErrInvalidRequest),
		errors.Is(err, advisory.ErrUnreadableImage):
		code = fiber.StatusBadRequest
	}
	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": err.Error(),
	})
}

package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sifan077/LinkPulse/internal/app/service"
	"github.com/sifan077/LinkPulse/internal/http/middleware"
	"go.uber.org/zap"
)

var kindStatus = map[service.Kind]int{
	service.KindNotFound:           fiber.StatusNotFound,
	service.KindAlreadyExists:      fiber.StatusConflict,
	service.KindForbidden:          fiber.StatusForbidden,
	service.KindInvalid:            fiber.StatusBadRequest,
	service.KindStorageUnavailable: fiber.StatusServiceUnavailable,
}

var kindMessage = map[service.Kind]string{
	service.KindNotFound:           "short link not found",
	service.KindAlreadyExists:      "slug already taken",
	service.KindForbidden:          "you cannot manage this link",
	service.KindStorageUnavailable: "storage temporarily unavailable",
}

// writeError renders err as JSON with a status derived from its kind.
func writeError(c *fiber.Ctx, logger *zap.Logger, err error) error {
	kind := service.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		status = fiber.StatusInternalServerError
	}

	msg, ok := kindMessage[kind]
	switch {
	case kind == service.KindInvalid:
		msg = "invalid request"
		var se *service.Error
		if errors.As(err, &se) && se.Err != nil {
			msg = se.Err.Error()
		}
	case !ok:
		msg = "internal server error"
	}

	if status >= fiber.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.Error(err),
		)
	}
	return c.Status(status).JSON(fiber.Map{"error": msg})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
}

func validationFailed(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return badRequest(c, err.Error())
	}
	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = fe.Tag()
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error":  "validation failed",
		"fields": fields,
	})
}

package middleware

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

// CORS allows dashboard front ends on other origins to call the API.
func CORS() fiber.Handler {
	return cors.New(cors.Config{
		AllowOrigins: "*",
		AllowMethods: strings.Join([]string{
			fiber.MethodGet,
			fiber.MethodPost,
			fiber.MethodPatch,
			fiber.MethodDelete,
			fiber.MethodOptions,
		}, ","),
		AllowHeaders:  "Origin, Content-Type, Accept, Authorization, " + RequestIDHeader,
		ExposeHeaders: "Content-Length, Content-Type, " + RequestIDHeader,
		MaxAge:        86400,
	})
}

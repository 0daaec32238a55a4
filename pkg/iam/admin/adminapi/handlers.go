// Package adminapi exposes the emergency bypass login over HTTP.
package adminapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin/adminsrv"
)

type Handlers struct {
	service *adminsrv.Service
}

func NewHandlers(service *adminsrv.Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the bypass login under /admin/bypass-login. It is
// deliberately not behind the regular auth middleware: its whole purpose is
// to recover access when the primary identity provider is unavailable.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	router.Post("/admin/bypass-login", h.login)
}

type loginBody struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	token, err := h.service.Login(c.Context(), body.Email, body.Password)
	if err != nil {
		if e, ok := err.(*errx.Error); ok {
			return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": e.Message, "code": e.Code})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{"access_token": token, "token_type": "Bearer"})
}

// Package apikeyapi exposes apikey.Service over HTTP.
package apikeyapi

import (
	"github.com/gofiber/fiber/v2"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey/apikeysrv"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

type Handlers struct {
	service *apikeysrv.Service
}

func NewHandlers(service *apikeysrv.Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts API key management under /api/v1/api-keys, guarded
// by the caller-supplied authentication middleware.
func (h *Handlers) RegisterRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	group := router.Group("/api/v1/api-keys", authMiddleware)
	group.Post("/", h.create)
	group.Get("/", h.list)
	group.Get("/:id", h.get)
	group.Patch("/:id", h.update)
	group.Post("/:id/rotate", h.rotate)
	group.Delete("/:id", h.revoke)
}

func authContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ctx, ok := c.Locals("auth").(*kernel.AuthContext)
	return ctx, ok && ctx != nil
}

func (h *Handlers) create(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}

	var req apikey.CreateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	resp, err := h.service.Create(c.Context(), auth.OrganizationID, req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(resp)
}

func (h *Handlers) list(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	opts := kernel.PaginationOptions{
		Page:     c.QueryInt("page", 1),
		PageSize: c.QueryInt("page_size", 20),
	}
	resp, err := h.service.List(c.Context(), auth.OrganizationID, opts)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(resp)
}

func (h *Handlers) get(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	dto, err := h.service.Get(c.Context(), kernel.NewAPIKeyID(c.Params("id")), auth.OrganizationID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(dto)
}

func (h *Handlers) update(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var req apikey.UpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	dto, err := h.service.Update(c.Context(), kernel.NewAPIKeyID(c.Params("id")), auth.OrganizationID, req)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(dto)
}

func (h *Handlers) rotate(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	resp, err := h.service.Rotate(c.Context(), kernel.NewAPIKeyID(c.Params("id")), auth.OrganizationID)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(resp)
}

func (h *Handlers) revoke(c *fiber.Ctx) error {
	auth, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	if err := h.service.Revoke(c.Context(), kernel.NewAPIKeyID(c.Params("id")), auth.OrganizationID); err != nil {
		return writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// writeErr renders a domain error as JSON, using the status/code carried by
// errx.Error when present and falling back to 500 for anything unexpected.
func writeErr(c *fiber.Ctx, err error) error {
	if e, ok := err.(*errx.Error); ok {
		return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": e.Message, "code": e.Code})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

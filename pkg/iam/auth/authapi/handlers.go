// Package authapi exposes authsrv.Service's credential state machine over
// HTTP: login, one-time code exchange, refresh, logout.
package authapi

import (
	"net/url"

	"github.com/gofiber/fiber/v2"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authsrv"
)

type Handlers struct {
	service *authsrv.Service
}

func NewHandlers(service *authsrv.Service) *Handlers {
	return &Handlers{service: service}
}

// RegisterRoutes mounts the credential endpoints under /v1/auth. These
// precede any auth middleware: login and refresh are how a caller gets a
// token in the first place.
func (h *Handlers) RegisterRoutes(router fiber.Router) {
	group := router.Group("/v1/auth")
	group.Post("/login", h.login)
	group.Post("/exchange", h.exchange)
	group.Post("/refresh", h.refresh)
	group.Post("/logout", h.logout)
}

type loginBody struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	ProjectScope string `json:"project_scope"`
	RedirectTo   string `json:"redirect_to"`
	State        string `json:"state"`
}

func (h *Handlers) login(c *fiber.Ctx) error {
	var body loginBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	result, err := h.service.Login(c.Context(), authsrv.LoginRequest{
		Email:        body.Email,
		Password:     body.Password,
		ProjectScope: body.ProjectScope,
		RedirectTo:   body.RedirectTo,
		State:        body.State,
		IP:           c.IP(),
		UserAgent:    c.Get("User-Agent"),
	})
	if err != nil {
		return writeErr(c, err)
	}

	if result.RedirectURL != "" {
		target := result.RedirectURL + "?code=" + url.QueryEscape(result.OneTimeCode)
		if body.State != "" {
			target += "&state=" + url.QueryEscape(body.State)
		}
		return c.Redirect(target, fiber.StatusFound)
	}

	return c.JSON(result)
}

type exchangeBody struct {
	Code string `json:"code"`
}

func (h *Handlers) exchange(c *fiber.Ctx) error {
	var body exchangeBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result, err := h.service.Exchange(c.Context(), body.Code)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(result)
}

type refreshBody struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handlers) refresh(c *fiber.Ctx) error {
	var body refreshBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	result, err := h.service.Refresh(c.Context(), body.RefreshToken, c.IP())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(result)
}

func (h *Handlers) logout(c *fiber.Ctx) error {
	token := bearerToken(c)
	h.service.Logout(c.Context(), token, c.IP())
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"success": true})
}

func bearerToken(c *fiber.Ctx) string {
	header := c.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && header[:len(prefix)] == prefix {
		return header[len(prefix):]
	}
	return ""
}

func writeErr(c *fiber.Ctx, err error) error {
	if e, ok := err.(*errx.Error); ok {
		return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": e.Message, "code": e.Code})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

// Package oauthapi exposes the OAuth 2.1 Authorization Code + PKCE grant,
// the Device Code flow, and RFC 7662 introspection over HTTP.
package oauthapi

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lanonasis/auth-gateway/pkg/errx"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth/oauthsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

type Handlers struct {
	authorize  *oauthsrv.AuthorizeService
	tokens     *oauthsrv.TokenService
	devices    *oauthsrv.DeviceService
	introspect *oauthsrv.IntrospectService
	clients    *oauthsrv.ClientService
	users      user.Repository
}

func NewHandlers(
	authorize *oauthsrv.AuthorizeService,
	tokens *oauthsrv.TokenService,
	devices *oauthsrv.DeviceService,
	introspect *oauthsrv.IntrospectService,
	clients *oauthsrv.ClientService,
	users user.Repository,
) *Handlers {
	return &Handlers{authorize: authorize, tokens: tokens, devices: devices, introspect: introspect, clients: clients, users: users}
}

// RegisterRoutes mounts the OAuth endpoints. authMiddleware guards only
// /oauth/authorize and /oauth/device/verify, which act on behalf of a
// signed-in user; /oauth/token and /oauth/introspect authenticate the
// calling client or bearer token themselves.
func (h *Handlers) RegisterRoutes(router fiber.Router, authMiddleware fiber.Handler) {
	group := router.Group("/oauth")
	group.Get("/authorize", authMiddleware, h.authorizeHandler)
	group.Post("/token", h.token)
	group.Post("/introspect", h.introspectHandler)
	group.Post("/device/code", h.startDevice)
	group.Post("/device/verify", authMiddleware, h.verifyDevice)

	admin := router.Group("/admin/oauth/clients", authMiddleware)
	admin.Post("/", h.registerClient)
	admin.Get("/", h.listClients)
	admin.Delete("/:id", h.deleteClient)
}

func authContext(c *fiber.Ctx) (*kernel.AuthContext, bool) {
	ctx, ok := c.Locals("auth").(*kernel.AuthContext)
	return ctx, ok && ctx != nil && ctx.UserID != nil
}

func (h *Handlers) authorizeHandler(c *fiber.Ctx) error {
	authCtx, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	u, err := h.users.FindByID(c.Context(), *authCtx.UserID)
	if err != nil {
		return writeErr(c, err)
	}

	req := oauthsrv.AuthorizeRequest{
		ClientID:            kernel.NewClientID(c.Query("client_id")),
		RedirectURI:         c.Query("redirect_uri"),
		CodeChallenge:       c.Query("code_challenge"),
		CodeChallengeMethod: oauth.CodeChallengeMethod(c.Query("code_challenge_method")),
	}
	if scope := c.Query("scope"); scope != "" {
		req.Scope = strings.Fields(scope)
	}

	code, err := h.authorize.Authorize(c.Context(), req, u)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(fiber.Map{"code": code})
}

func (h *Handlers) token(c *fiber.Ctx) error {
	grantType := c.FormValue("grant_type")
	switch grantType {
	case "authorization_code":
		pair, err := h.tokens.ExchangeAuthorizationCode(c.Context(), oauthsrv.ExchangeAuthorizationCodeRequest{
			Code:         c.FormValue("code"),
			RedirectURI:  c.FormValue("redirect_uri"),
			ClientID:     kernel.NewClientID(c.FormValue("client_id")),
			ClientSecret: c.FormValue("client_secret"),
			CodeVerifier: c.FormValue("code_verifier"),
			IP:           c.IP(),
			UserAgent:    c.Get("User-Agent"),
		})
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(pair)

	case "urn:ietf:params:oauth:grant-type:device_code":
		pair, err := h.devices.Poll(c.Context(), oauthsrv.PollRequest{
			DeviceCode: c.FormValue("device_code"),
			ClientID:   kernel.NewClientID(c.FormValue("client_id")),
			IP:         c.IP(),
			UserAgent:  c.Get("User-Agent"),
		})
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(pair)

	case "refresh_token":
		pair, err := h.tokens.ExchangeRefreshToken(c.Context(), oauthsrv.ExchangeRefreshTokenRequest{
			RefreshToken: c.FormValue("refresh_token"),
			IP:           c.IP(),
			UserAgent:    c.Get("User-Agent"),
		})
		if err != nil {
			return writeErr(c, err)
		}
		return c.JSON(pair)

	default:
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "unsupported_grant_type"})
	}
}

func (h *Handlers) introspectHandler(c *fiber.Ctx) error {
	result := h.introspect.Introspect(c.Context(), c.FormValue("token"))
	return c.JSON(result)
}

func (h *Handlers) startDevice(c *fiber.Ctx) error {
	var scope []string
	if s := c.FormValue("scope"); s != "" {
		scope = strings.Fields(s)
	}
	result, err := h.devices.StartDeviceAuthorization(c.Context(), kernel.NewClientID(c.FormValue("client_id")), scope)
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(result)
}

type verifyBody struct {
	UserCode string `json:"user_code"`
	Approve  bool   `json:"approve"`
}

func (h *Handlers) verifyDevice(c *fiber.Ctx) error {
	authCtx, ok := authContext(c)
	if !ok {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": "unauthorized"})
	}
	var body verifyBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	var err error
	if body.Approve {
		err = h.devices.Approve(c.Context(), body.UserCode, *authCtx.UserID)
	} else {
		err = h.devices.Deny(c.Context(), body.UserCode)
	}
	if err != nil {
		return writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type registerClientBody struct {
	ClientName          string   `json:"client_name"`
	ClientType          string   `json:"client_type"`
	ClientSecret        string   `json:"client_secret"`
	AllowedRedirectURIs []string `json:"allowed_redirect_uris"`
	AllowedScopes       []string `json:"allowed_scopes"`
	DefaultScopes       []string `json:"default_scopes"`
}

func (h *Handlers) registerClient(c *fiber.Ctx) error {
	var body registerClientBody
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}
	client, err := h.clients.Register(c.Context(), oauthsrv.RegisterRequest{
		ClientName:          body.ClientName,
		ClientType:          oauth.ClientType(body.ClientType),
		ClientSecret:        body.ClientSecret,
		AllowedRedirectURIs: body.AllowedRedirectURIs,
		AllowedScopes:       body.AllowedScopes,
		DefaultScopes:       body.DefaultScopes,
	})
	if err != nil {
		return writeErr(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(client)
}

func (h *Handlers) listClients(c *fiber.Ctx) error {
	clients, err := h.clients.List(c.Context())
	if err != nil {
		return writeErr(c, err)
	}
	return c.JSON(clients)
}

func (h *Handlers) deleteClient(c *fiber.Ctx) error {
	if err := h.clients.Delete(c.Context(), kernel.NewClientID(c.Params("id"))); err != nil {
		return writeErr(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func writeErr(c *fiber.Ctx, err error) error {
	if e, ok := err.(*errx.Error); ok {
		return c.Status(e.HTTPStatus).JSON(fiber.Map{"error": e.Message, "code": e.Code})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
}

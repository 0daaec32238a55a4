package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lanonasis/auth-gateway/pkg/iam"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// APIKeyValidator is the narrow slice of apikey.Service that middleware
// needs, kept here to avoid an import cycle between auth and apikey.
type APIKeyValidator interface {
	ValidateAPIKey(c *fiber.Ctx, rawKey string) (*kernel.AuthContext, error)
}

// SSOCookieValidator resolves a session cookie to an AuthContext.
type SSOCookieValidator interface {
	ValidateCookie(c *fiber.Ctx, cookieValue string) (*kernel.AuthContext, error)
}

// SessionRevocationChecker closes the gap between logout and a JWT's own
// expiry: a structurally valid access token is rejected once its bound
// session has been revoked.
type SessionRevocationChecker interface {
	IsRevoked(ctx context.Context, id kernel.SessionID) (bool, error)
}

// TokenMiddleware implements the gateway's three-tier credential chain: SSO
// cookie, then Bearer JWT, then API key. The first credential present that
// resolves successfully wins; later tiers are not consulted after that.
type TokenMiddleware struct {
	tokenService TokenService
	apiKeys      APIKeyValidator
	sso          SSOCookieValidator
	sessions     SessionRevocationChecker
	cookieName   string
}

func NewAuthMiddleware(tokenService TokenService, apiKeys APIKeyValidator, sso SSOCookieValidator, sessions SessionRevocationChecker, cookieName string) *TokenMiddleware {
	if cookieName == "" {
		cookieName = "lano_sso"
	}
	return &TokenMiddleware{tokenService: tokenService, apiKeys: apiKeys, sso: sso, sessions: sessions, cookieName: cookieName}
}

// Authenticate resolves whichever credential the caller presented and stores
// the resulting kernel.AuthContext in c.Locals("auth").
func (am *TokenMiddleware) Authenticate() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if cookieVal := c.Cookies(am.cookieName); cookieVal != "" && am.sso != nil {
			if authCtx, err := am.sso.ValidateCookie(c, cookieVal); err == nil {
				c.Locals("auth", authCtx)
				return c.Next()
			}
		}

		if authHeader := c.Get("Authorization"); authHeader != "" {
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) == 2 && parts[0] == "Bearer" && parts[1] != "" {
				if claims, err := am.tokenService.ValidateAccessToken(parts[1]); err == nil && !am.sessionRevoked(c.Context(), claims.SessionID) {
					authCtx := &kernel.AuthContext{
						UserID:          &claims.UserID,
						OrganizationID:  claims.OrganizationID,
						UniversalID:     claims.UniversalID,
						Email:           claims.Email,
						Name:            claims.Name,
						Role:            claims.Role,
						Plan:            claims.Plan,
						Platform:        claims.Platform,
						ProjectScope:    claims.ProjectScope,
						Scopes:          claims.Scopes,
						BypassAllChecks: claims.BypassAllChecks,
						IsAPIKey:        false,
					}
					c.Locals("auth", authCtx)
					return c.Next()
				}
			}
		}

		if rawKey := extractAPIKey(c); rawKey != "" && am.apiKeys != nil {
			if authCtx, err := am.apiKeys.ValidateAPIKey(c, rawKey); err == nil {
				c.Locals("auth", authCtx)
				return c.Next()
			}
		}

		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"error": iam.ErrUnauthorized().Error(),
		})
	}
}

// sessionRevoked reports whether a JWT's bound session has been revoked.
// Tokens minted without a session claim (e.g. admin bypass) skip the check.
func (am *TokenMiddleware) sessionRevoked(ctx context.Context, id kernel.SessionID) bool {
	if am.sessions == nil || id.IsEmpty() {
		return false
	}
	revoked, err := am.sessions.IsRevoked(ctx, id)
	if err != nil {
		logx.WithError(err).Warn("auth: session revocation check failed, denying")
		return true
	}
	return revoked
}

// extractAPIKey reads the API key from X-API-Key, falling back to the
// Authorization header when it wasn't already consumed as a Bearer JWT.
func extractAPIKey(c *fiber.Ctx) string {
	if key := c.Get("X-API-Key"); key != "" {
		return key
	}
	if authHeader := c.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	return ""
}

// RequireAdmin requires the resolved identity to have unrestricted access.
func (am *TokenMiddleware) RequireAdmin() fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := c.Locals("auth").(*kernel.AuthContext)
		if !ok || authContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": iam.ErrUnauthorized().Error()})
		}
		if !authContext.IsAdmin() {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": iam.ErrAccessDenied().Error()})
		}
		return c.Next()
	}
}

// RequireScope requires the resolved identity to authorize scope, honoring
// the wildcard and legacy-access rules defined on kernel.AuthContext.
func RequireScope(scope string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		authContext, ok := c.Locals("auth").(*kernel.AuthContext)
		if !ok || authContext == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"error": iam.ErrUnauthorized().Error()})
		}
		if !authContext.HasScope(scope) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{"error": iam.ErrAccessDenied().Error()})
		}
		return c.Next()
	}
}

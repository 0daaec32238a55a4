package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

// JWTService issues and validates access tokens.
type JWTService struct {
	secretKey       []byte
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
	issuer          string
}

func NewJWTService(secretKey string, accessTokenTTL, refreshTokenTTL time.Duration, issuer string) *JWTService {
	if accessTokenTTL == 0 {
		accessTokenTTL = 15 * time.Minute
	}
	if refreshTokenTTL == 0 {
		refreshTokenTTL = 7 * 24 * time.Hour
	}
	if issuer == "" {
		issuer = "lanonasis-auth-gateway"
	}
	return &JWTService{
		secretKey:       []byte(secretKey),
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
		issuer:          issuer,
	}
}

// JWTClaims mirrors the access token shape: sub, email, role, plan,
// organization_id, platform, project_scope, exp, iat, jti, plus scopes.
type JWTClaims struct {
	OrganizationID  kernel.OrganizationID `json:"organization_id,omitempty"`
	SessionID       kernel.SessionID      `json:"session_id,omitempty"`
	UniversalID     kernel.UniversalID    `json:"universal_id,omitempty"`
	Email           string                `json:"email"`
	Name            string                `json:"name,omitempty"`
	Role            string                `json:"role"`
	Plan            string                `json:"plan,omitempty"`
	Platform        kernel.Platform       `json:"platform"`
	ProjectScope    string                `json:"project_scope,omitempty"`
	Scopes          []string              `json:"scopes"`
	BypassAllChecks bool                  `json:"bypass_all_checks,omitempty"`
	ClientID        string                `json:"client_id,omitempty"`
	jwt.RegisteredClaims
}

// IssueParams carries everything needed to mint an access token.
type IssueParams struct {
	UserID          kernel.UserID
	OrganizationID  kernel.OrganizationID
	SessionID       kernel.SessionID
	UniversalID     kernel.UniversalID
	Email           string
	Name            string
	Role            string
	Plan            string
	Platform        kernel.Platform
	ProjectScope    string
	Scopes          []string
	BypassAllChecks bool
	ClientID        string
}

// GenerateAccessToken mints a signed access token for the given identity.
func (j *JWTService) GenerateAccessToken(p IssueParams) (string, error) {
	return j.GenerateAccessTokenWithTTL(p, j.accessTokenTTL)
}

// GenerateAccessTokenWithTTL mints a signed access token with a caller-chosen
// lifetime, used by the admin bypass path's 24h token instead of the
// standard access token TTL.
func (j *JWTService) GenerateAccessTokenWithTTL(p IssueParams, ttl time.Duration) (string, error) {
	now := time.Now()
	scopes := p.Scopes
	if scopes == nil {
		scopes = []string{}
	}

	claims := JWTClaims{
		OrganizationID:  p.OrganizationID,
		SessionID:       p.SessionID,
		UniversalID:     p.UniversalID,
		Email:           p.Email,
		Name:            p.Name,
		Role:            p.Role,
		Plan:            p.Plan,
		Platform:        p.Platform,
		ProjectScope:    p.ProjectScope,
		Scopes:          scopes,
		BypassAllChecks: p.BypassAllChecks,
		ClientID:        p.ClientID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   p.UserID.String(),
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrTokenGenerationFailed().WithDetail("error", err.Error())
	}
	return tokenString, nil
}

// ValidateAccessToken parses and verifies a signed access token.
func (j *JWTService) ValidateAccessToken(tokenString string) (*TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil {
		return nil, ErrTokenValidationFailed().WithDetail("error", err.Error())
	}
	if !token.Valid {
		return nil, ErrTokenValidationFailed().WithDetail("error", "token is invalid")
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrTokenValidationFailed().WithDetail("error", "invalid claims type")
	}

	return &TokenClaims{
		UserID:          kernel.NewUserID(claims.Subject),
		OrganizationID:  claims.OrganizationID,
		SessionID:       claims.SessionID,
		UniversalID:     claims.UniversalID,
		Email:           claims.Email,
		Name:            claims.Name,
		Role:            claims.Role,
		Plan:            claims.Plan,
		Platform:        claims.Platform,
		ProjectScope:    claims.ProjectScope,
		Scopes:          claims.Scopes,
		BypassAllChecks: claims.BypassAllChecks,
		ClientID:        claims.ClientID,
		IssuedAt:        claims.IssuedAt.Time,
		ExpiresAt:       claims.ExpiresAt.Time,
		JTI:             claims.ID,
	}, nil
}

// GenerateRefreshToken returns a raw refresh token value; callers persist
// only its SHA-256 hash, never the value itself.
func (j *JWTService) GenerateRefreshToken() string {
	return uuid.New().String() + uuid.New().String()
}

// RefreshTokenTTL returns the configured refresh token lifetime.
func (j *JWTService) RefreshTokenTTL() time.Duration { return j.refreshTokenTTL }

// AccessTokenTTL returns the configured access token lifetime.
func (j *JWTService) AccessTokenTTL() time.Duration { return j.accessTokenTTL }

package oauthsrv

import (
	"context"
	"time"

	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

const (
	deviceGrantTTL      = 10 * time.Minute
	deviceGrantInterval = 5
)

// DeviceService implements the Device Code flow: a CLI starts the grant,
// a human approves the displayed user_code in a browser, and the CLI polls
// /oauth/token until the grant resolves.
type DeviceService struct {
	clients oauth.ClientRepository
	devices oauth.DeviceRepository
	tokens  *TokenService
}

func NewDeviceService(clients oauth.ClientRepository, devices oauth.DeviceRepository, tokens *TokenService) *DeviceService {
	return &DeviceService{clients: clients, devices: devices, tokens: tokens}
}

// StartResult is returned from the device authorization bootstrap endpoint.
type StartResult struct {
	DeviceCode string
	UserCode   string
	Interval   int
	ExpiresIn  int
}

// StartDeviceAuthorization issues a new device/user code pair for client_id.
func (s *DeviceService) StartDeviceAuthorization(ctx context.Context, clientID kernel.ClientID, scope []string) (*StartResult, error) {
	client, err := s.clients.FindByID(ctx, clientID)
	if err != nil {
		return nil, oauth.ErrClientNotFound()
	}
	if !client.IsActive() {
		return nil, oauth.ErrClientDisabled()
	}

	deviceCode, err := oauth.GenerateDeviceCode()
	if err != nil {
		return nil, err
	}
	userCode, err := oauth.GenerateUserCode()
	if err != nil {
		return nil, err
	}

	grant := oauth.DeviceGrant{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		ClientID:   clientID,
		Scope:      scope,
		Status:     oauth.DeviceStatusPending,
		Interval:   deviceGrantInterval,
		CreatedAt:  time.Now(),
		ExpiresAt:  time.Now().Add(deviceGrantTTL),
	}
	if err := s.devices.Save(ctx, grant); err != nil {
		return nil, err
	}

	return &StartResult{
		DeviceCode: deviceCode,
		UserCode:   userCode,
		Interval:   deviceGrantInterval,
		ExpiresIn:  int(deviceGrantTTL / time.Second),
	}, nil
}

// Approve records that the signed-in user at the verification page approved
// the grant identified by its short user_code.
func (s *DeviceService) Approve(ctx context.Context, userCode string, userID kernel.UserID) error {
	grant, err := s.devices.FindByUserCode(ctx, userCode)
	if err != nil {
		return oauth.ErrDeviceNotFound()
	}
	if grant.IsExpired() {
		return oauth.ErrExpiredToken()
	}
	return s.devices.Approve(ctx, userCode, userID)
}

// Deny records that the user rejected the grant.
func (s *DeviceService) Deny(ctx context.Context, userCode string) error {
	return s.devices.Deny(ctx, userCode)
}

// PollRequest mirrors grant_type=urn:ietf:params:oauth:grant-type:device_code.
type PollRequest struct {
	DeviceCode string
	ClientID   kernel.ClientID
	IP         string
	UserAgent  string
}

// Poll is called repeatedly by the CLI client; it returns authorization_pending
// until the grant is approved/denied/expired. Once approved, every poll made
// outside the polling interval issues a new token pair: issuing a pair does
// not consume the grant.
func (s *DeviceService) Poll(ctx context.Context, req PollRequest) (*TokenPair, error) {
	grant, err := s.devices.FindByDeviceCode(ctx, req.DeviceCode)
	if err != nil {
		return nil, oauth.ErrDeviceNotFound()
	}
	if grant.ClientID != req.ClientID {
		return nil, oauth.ErrInvalidGrant()
	}
	if grant.IsExpired() {
		return nil, oauth.ErrExpiredToken()
	}

	if grant.LastPolledAt != nil && time.Since(*grant.LastPolledAt) < time.Duration(grant.Interval)*time.Second {
		return nil, oauth.ErrSlowDown()
	}
	_ = s.devices.UpdateLastPolled(ctx, req.DeviceCode)

	switch grant.Status {
	case oauth.DeviceStatusPending:
		return nil, oauth.ErrAuthorizationPending()
	case oauth.DeviceStatusDenied:
		return nil, oauth.ErrAccessDenied()
	case oauth.DeviceStatusExpired:
		return nil, oauth.ErrExpiredToken()
	}

	if grant.UserID == nil {
		return nil, oauth.ErrAuthorizationPending()
	}
	u, err := s.tokens.users.FindByID(ctx, *grant.UserID)
	if err != nil {
		return nil, oauth.ErrInvalidGrant()
	}
	return s.tokens.issueTokenPair(ctx, u, grant.Scope, grant.ClientID, kernel.PlatformCLI, req.IP, req.UserAgent)
}

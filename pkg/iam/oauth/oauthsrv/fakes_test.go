package oauthsrv

import (
	"context"
	"crypto/sha256"
	"encoding/base64"

	"github.com/lanonasis/auth-gateway/pkg/iam/oauth"
	"github.com/lanonasis/auth-gateway/pkg/kernel"
)

func sha256Challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

type fakeClientRepo struct {
	byID map[kernel.ClientID]*oauth.Client
}

func newFakeClientRepo() *fakeClientRepo {
	return &fakeClientRepo{byID: map[kernel.ClientID]*oauth.Client{}}
}

func (f *fakeClientRepo) Save(ctx context.Context, client oauth.Client) error {
	f.byID[client.ClientID] = &client
	return nil
}

func (f *fakeClientRepo) FindByID(ctx context.Context, id kernel.ClientID) (*oauth.Client, error) {
	c, ok := f.byID[id]
	if !ok {
		return nil, oauth.ErrClientNotFound()
	}
	return c, nil
}

func (f *fakeClientRepo) List(ctx context.Context) ([]*oauth.Client, error) {
	out := make([]*oauth.Client, 0, len(f.byID))
	for _, c := range f.byID {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeClientRepo) Delete(ctx context.Context, id kernel.ClientID) error {
	delete(f.byID, id)
	return nil
}

type fakeCodeRepo struct {
	codes map[string]*oauth.AuthorizationCode
}

func newFakeCodeRepo() *fakeCodeRepo {
	return &fakeCodeRepo{codes: map[string]*oauth.AuthorizationCode{}}
}

func (f *fakeCodeRepo) Save(ctx context.Context, code oauth.AuthorizationCode) error {
	f.codes[code.Code] = &code
	return nil
}

func (f *fakeCodeRepo) FindAndConsume(ctx context.Context, code string) (*oauth.AuthorizationCode, error) {
	c, ok := f.codes[code]
	if !ok || c.Used {
		return nil, oauth.ErrInvalidGrant()
	}
	c.Used = true
	return c, nil
}

func (f *fakeCodeRepo) CleanExpired(ctx context.Context) error { return nil }

type fakeDeviceRepo struct {
	byDeviceCode map[string]*oauth.DeviceGrant
	byUserCode   map[string]string
}

func newFakeDeviceRepo() *fakeDeviceRepo {
	return &fakeDeviceRepo{byDeviceCode: map[string]*oauth.DeviceGrant{}, byUserCode: map[string]string{}}
}

func (f *fakeDeviceRepo) Save(ctx context.Context, grant oauth.DeviceGrant) error {
	f.byDeviceCode[grant.DeviceCode] = &grant
	f.byUserCode[grant.UserCode] = grant.DeviceCode
	return nil
}

func (f *fakeDeviceRepo) FindByDeviceCode(ctx context.Context, deviceCode string) (*oauth.DeviceGrant, error) {
	g, ok := f.byDeviceCode[deviceCode]
	if !ok {
		return nil, oauth.ErrDeviceNotFound()
	}
	return g, nil
}

func (f *fakeDeviceRepo) FindByUserCode(ctx context.Context, userCode string) (*oauth.DeviceGrant, error) {
	dc, ok := f.byUserCode[userCode]
	if !ok {
		return nil, oauth.ErrDeviceNotFound()
	}
	return f.byDeviceCode[dc], nil
}

func (f *fakeDeviceRepo) Approve(ctx context.Context, userCode string, userID kernel.UserID) error {
	dc, ok := f.byUserCode[userCode]
	if !ok {
		return oauth.ErrDeviceNotFound()
	}
	g := f.byDeviceCode[dc]
	g.Status = oauth.DeviceStatusApproved
	g.UserID = &userID
	return nil
}

func (f *fakeDeviceRepo) Deny(ctx context.Context, userCode string) error {
	dc, ok := f.byUserCode[userCode]
	if !ok {
		return oauth.ErrDeviceNotFound()
	}
	f.byDeviceCode[dc].Status = oauth.DeviceStatusDenied
	return nil
}

func (f *fakeDeviceRepo) UpdateLastPolled(ctx context.Context, deviceCode string) error { return nil }

func (f *fakeDeviceRepo) CleanExpired(ctx context.Context) error { return nil }

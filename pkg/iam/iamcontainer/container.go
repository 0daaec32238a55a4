// Package iamcontainer wires the IAM bounded context's full dependency
// graph: repositories, domain services, HTTP handlers, and middleware.
package iamcontainer

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"

	"github.com/lanonasis/auth-gateway/pkg/config"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin/adminapi"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin/admininfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/admin/adminsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey/apikeyapi"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey/apikeyinfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/apikey/apikeysrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authapi"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authinfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/auth/authsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode/onetimeinfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/onetimecode/onetimesrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth/oauthapi"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth/oauthinfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/oauth/oauthsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/session/sessioninfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/session/sessionsrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/uai/uaiinfra"
	"github.com/lanonasis/auth-gateway/pkg/iam/uai/uaisrv"
	"github.com/lanonasis/auth-gateway/pkg/iam/user"
	"github.com/lanonasis/auth-gateway/pkg/iam/user/userinfra"
	"github.com/lanonasis/auth-gateway/pkg/logx"
	"github.com/lanonasis/auth-gateway/pkg/outbox"
	"github.com/lanonasis/auth-gateway/pkg/outbox/outboxinfra"
	"github.com/lanonasis/auth-gateway/pkg/ratelimit"
	"github.com/lanonasis/auth-gateway/pkg/realtime"
)

// ---------------------------------------------------------------------------
// Deps: explicit external dependencies this bounded context requires.
// No hidden globals, no ambient state — everything comes through here.
// ---------------------------------------------------------------------------

type Deps struct {
	DB    *sqlx.DB
	Redis *redis.Client
	Cfg   *config.Config

	// RealtimeCtx bounds the realtime hub's lifetime; callers cancel it to
	// tear down every open websocket connection.
	RealtimeCtx context.Context
}

// ---------------------------------------------------------------------------
// Container: the public surface of the IAM module.
// Only expose what cmd/ actually needs; repos and infra stay private.
// ---------------------------------------------------------------------------

type Container struct {
	// Services — available for cross-module consumption via interfaces
	UserRepo     user.Repository
	SessionSvc   *sessionsrv.Service
	APIKeySvc    *apikeysrv.Service
	OnetimeSvc   *onetimesrv.Service
	UAISvc       *uaisrv.Service
	AdminSvc     *adminsrv.Service
	AuthSvc      *authsrv.Service
	TokenSvc     auth.TokenService
	RateLimiter  *ratelimit.Limiter
	RealtimeHub  *realtime.Hub
	OutboxWorker *outbox.Worker

	// HTTP handlers — needed by cmd/ to register routes
	AuthHandlers    *authapi.Handlers
	APIKeyHandlers  *apikeyapi.Handlers
	OAuthHandlers   *oauthapi.Handlers
	AdminHandlers   *adminapi.Handlers
	RealtimeHandler *realtime.Handler

	// Middleware — needed by cmd/ to protect route groups
	AuthMiddleware *auth.TokenMiddleware

	// cleanupSweeps are the expired-record purges run by the background
	// sweep loop: one closure per repository that owns a CleanExpired
	// (or equivalently named) method.
	cleanupSweeps   []cleanupTarget
	cleanupInterval time.Duration
}

// cleanupTarget names a single repository's expiry sweep for logging.
type cleanupTarget struct {
	name string
	run  func(context.Context) error
}

// ---------------------------------------------------------------------------
// New: constructs the entire IAM dependency graph.
// Order matters: repos → infra services → domain services → handlers →
// middleware → background workers.
// ---------------------------------------------------------------------------

func New(deps Deps) *Container {
	logx.Info("initializing IAM container")

	c := &Container{}

	// ── Repositories ─────────────────────────────────────────────────────

	userRepo := userinfra.NewPostgresRepository(deps.DB)
	sessionRepo := sessioninfra.NewPostgresRepository(deps.DB)
	apiKeyRepo := apikeyinfra.NewPostgresRepository(deps.DB)
	onetimeRepo := onetimeinfra.NewPostgresRepository(deps.DB)
	uaiRepo := uaiinfra.NewPostgresRepository(deps.DB)
	adminRepo := admininfra.NewPostgresRepository(deps.DB)
	tokenRepo := authinfra.NewPostgresTokenRepository(deps.DB)
	oauthClientRepo := oauthinfra.NewClientPostgresRepository(deps.DB)
	oauthCodeRepo := oauthinfra.NewCodePostgresRepository(deps.DB)
	oauthDeviceRepo := oauthinfra.NewDevicePostgresRepository(deps.DB)
	outboxStore := outboxinfra.NewPostgresStore(deps.DB)

	// ── Infrastructure services ──────────────────────────────────────────

	c.TokenSvc = auth.NewJWTService(deps.Cfg.JWT.SecretKey, deps.Cfg.JWT.AccessTokenTTL, deps.Cfg.JWT.RefreshTokenTTL, deps.Cfg.JWT.Issuer)
	jwtSvc := c.TokenSvc.(*auth.JWTService)

	c.RealtimeHub = realtime.NewHub(deps.RealtimeCtx)
	go c.RealtimeHub.Run()

	c.RateLimiter = ratelimit.NewLimiter(deps.Redis, deps.Cfg.RateLimit)

	idp := authinfra.NewHTTPIdentityProvider(deps.Cfg.IdP.Issuer)
	auditSvc := authinfra.NewLogxAuditService()

	cipher, err := onetimecode.NewCipher(deps.Cfg.Onetime.EncKeyB64)
	if err != nil {
		logx.WithError(err).Warn("onetime code cipher key missing or invalid; cross-origin handoff codes are disabled")
	}

	// ── Domain services ──────────────────────────────────────────────────

	c.UserRepo = userRepo

	c.SessionSvc = sessionsrv.NewService(sessionRepo, c.RealtimeHub, deps.Cfg.JWT.RefreshTokenTTL)

	c.APIKeySvc = apikeysrv.NewService(apiKeyRepo, userRepo)

	if cipher != nil {
		c.OnetimeSvc = onetimesrv.NewService(onetimeRepo, cipher, deps.Cfg.Onetime.TTL)
	}

	c.UAISvc = uaisrv.NewService(uaiRepo, outboxStore)

	c.AdminSvc = adminsrv.NewService(adminRepo, jwtSvc, outboxStore)

	c.AuthSvc = authsrv.NewService(idp, userRepo, c.SessionSvc, tokenRepo, jwtSvc, auditSvc, outboxStore)
	if c.OnetimeSvc != nil {
		c.AuthSvc.WithOnetimeCode(c.OnetimeSvc.Issue, c.OnetimeSvc.Exchange)
	}
	c.AuthSvc.WithUAIResolver(c.UAISvc)

	// ── OAuth services ───────────────────────────────────────────────────

	clientSvc := oauthsrv.NewClientService(oauthClientRepo)
	authorizeSvc := oauthsrv.NewAuthorizeService(oauthClientRepo, oauthCodeRepo)
	tokenSvc := oauthsrv.NewTokenService(clientSvc, oauthCodeRepo, oauthDeviceRepo, userRepo, c.SessionSvc, tokenRepo, jwtSvc)
	deviceSvc := oauthsrv.NewDeviceService(oauthClientRepo, oauthDeviceRepo, tokenSvc)
	introspectSvc := oauthsrv.NewIntrospectService(jwtSvc, c.SessionSvc)

	// ── HTTP handlers ────────────────────────────────────────────────────

	c.AuthHandlers = authapi.NewHandlers(c.AuthSvc)
	c.APIKeyHandlers = apikeyapi.NewHandlers(c.APIKeySvc)
	c.OAuthHandlers = oauthapi.NewHandlers(authorizeSvc, tokenSvc, deviceSvc, introspectSvc, clientSvc, userRepo)
	c.AdminHandlers = adminapi.NewHandlers(c.AdminSvc)
	c.RealtimeHandler = realtime.NewHandler(c.RealtimeHub, c.TokenSvc)

	// ── Middleware ───────────────────────────────────────────────────────

	// No SSO cookie validator is wired in-tree: production deployments that
	// front this gateway with a cookie-based session layer supply their own.
	c.AuthMiddleware = auth.NewAuthMiddleware(c.TokenSvc, c.APIKeySvc, nil, c.SessionSvc, deps.Cfg.Cookie.Name)

	// ── Background workers ───────────────────────────────────────────────

	c.OutboxWorker = outbox.NewWorker(
		outboxStore,
		outboxinfra.NewWebhookPublisher(),
		outbox.WithBatchSize(deps.Cfg.Outbox.BatchSize),
		outbox.WithPollInterval(deps.Cfg.Outbox.PollInterval),
		outbox.WithMaxBackoff(deps.Cfg.Outbox.MaxBackoff),
		outbox.WithMaxAttempts(deps.Cfg.Outbox.MaxAttempts),
	)

	c.cleanupInterval = deps.Cfg.Cleanup.Interval
	c.cleanupSweeps = []cleanupTarget{
		{name: "sessions", run: sessionRepo.CleanExpired},
		{name: "oauth_codes", run: oauthCodeRepo.CleanExpired},
		{name: "oauth_devices", run: oauthDeviceRepo.CleanExpired},
		{name: "onetime_codes", run: onetimeRepo.CleanExpired},
		{name: "refresh_tokens", run: tokenRepo.CleanExpiredTokens},
	}

	// ── Admin bootstrap seeding ──────────────────────────────────────────

	seedBootstrapAccounts(context.Background(), adminRepo, deps.Cfg.Admin)

	logx.Info("IAM container initialized")
	return c
}

// seedBootstrapAccounts inserts the admin bypass accounts named by
// ADMIN_BOOTSTRAP_EMAILS / ADMIN_BOOTSTRAP_PASSWORD_HASHES. The lists are
// parallel and pre-hashed: this gateway never hashes a bootstrap password
// itself, it only persists what operators already generated out-of-band.
func seedBootstrapAccounts(ctx context.Context, repo admin.Repository, cfg config.AdminConfig) {
	n := len(cfg.BootstrapEmails)
	if len(cfg.BootstrapPasswordHashes) < n {
		n = len(cfg.BootstrapPasswordHashes)
	}
	for i := 0; i < n; i++ {
		account := admin.BypassAccount{
			Email:        cfg.BootstrapEmails[i],
			PasswordHash: cfg.BootstrapPasswordHashes[i],
		}
		if err := repo.Seed(ctx, account); err != nil {
			logx.WithError(err).Warn("failed to seed bootstrap admin account")
		}
	}
}

// StartBackgroundServices starts IAM-specific background workers.
func (c *Container) StartBackgroundServices(ctx context.Context) {
	go func() {
		if err := c.OutboxWorker.Start(ctx); err != nil {
			logx.WithError(err).Warn("outbox delivery worker stopped")
		}
	}()
	logx.Info("outbox delivery worker started")

	go c.runCleanupSweep(ctx)
	logx.Info("expired-record cleanup sweep started")
}

// runCleanupSweep periodically purges expired sessions, OAuth authorization
// codes and device codes, one-time handoff codes, and expired refresh
// tokens. It runs until ctx is cancelled.
func (c *Container) runCleanupSweep(ctx context.Context) {
	interval := c.cleanupInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, target := range c.cleanupSweeps {
				if err := target.run(ctx); err != nil {
					logx.WithError(err).WithField("target", target.name).Warn("cleanup sweep failed")
				}
			}
		}
	}
}

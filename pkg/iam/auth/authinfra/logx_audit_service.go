package authinfra

import (
	"context"

	"github.com/lanonasis/auth-gateway/pkg/kernel"
	"github.com/lanonasis/auth-gateway/pkg/logx"
)

// LogxAuditService implements auth.AuditService by writing structured log
// entries. Audit logging is best-effort: nothing here returns an error, and
// a logging failure never blocks the authentication flow it describes.
type LogxAuditService struct{}

func NewLogxAuditService() *LogxAuditService {
	return &LogxAuditService{}
}

func (s *LogxAuditService) LogLoginAttempt(_ context.Context, userID kernel.UserID, method string, success bool, ip, userAgent string) {
	logx.WithFields(logx.Fields{
		"audit_event": "login_attempt",
		"user_id":     userID,
		"method":      method,
		"success":     success,
		"ip":          ip,
		"user_agent":  userAgent,
	}).Info("audit: login attempt")
}

func (s *LogxAuditService) LogLogout(_ context.Context, userID kernel.UserID, ip string) {
	logx.WithFields(logx.Fields{
		"audit_event": "logout",
		"user_id":     userID,
		"ip":          ip,
	}).Info("audit: logout")
}

func (s *LogxAuditService) LogTokenRefresh(_ context.Context, userID kernel.UserID, ip string) {
	logx.WithFields(logx.Fields{
		"audit_event": "token_refresh",
		"user_id":     userID,
		"ip":          ip,
	}).Info("audit: token refresh")
}

func (s *LogxAuditService) LogAdminBypass(_ context.Context, adminEmail string, ip string) {
	logx.WithFields(logx.Fields{
		"audit_event": "admin_bypass",
		"admin_email": adminEmail,
		"ip":          ip,
	}).Warn("audit: emergency admin bypass used")
}

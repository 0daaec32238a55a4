package ratelimit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/lanonasis/auth-gateway/pkg/config"
)

func TestLimiter_LimitFor(t *testing.T) {
	l := NewLimiter(nil, config.RateLimitConfig{
		LoginPerMinute:      10,
		TokenPerMinute:      60,
		IntrospectPerMinute: 600,
		GenericPerMinute:    500,
	})

	assert.Equal(t, 10, l.limitFor(ClassLogin))
	assert.Equal(t, 60, l.limitFor(ClassToken))
	assert.Equal(t, 600, l.limitFor(ClassIntrospect))
	assert.Equal(t, 500, l.limitFor(ClassGeneric))
	assert.Equal(t, 500, l.limitFor(RouteClass("unknown")))
}

func TestErrExceeded(t *testing.T) {
	err := ErrExceeded()
	assert.Equal(t, "RATELIMIT_EXCEEDED", err.Code)
	assert.Equal(t, 429, err.HTTPStatus)
}
